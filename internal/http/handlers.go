package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"budgetbook/internal/core"
	"budgetbook/internal/importer"
	"budgetbook/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the profile store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}
	if names, err := s.profiles.List(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = map[string]any{"status": "ok", "profiles": len(names)}
	}
	stats := s.profiles.CacheStats()
	checks["cache"] = map[string]any{"status": "ok", "entries": stats.Size}
	checks["rate_limiter"] = map[string]any{"status": "ok", "active_clients": s.rateLimiter.ActiveClients()}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	stats := s.profiles.CacheStats()
	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", atomic.LoadInt64(&s.requests))
	metric("report_cache_hits_total", "Month report cache hits", "counter", stats.Hits)
	metric("report_cache_misses_total", "Month report cache misses", "counter", stats.Misses)
	metric("report_cache_entries", "Current month report cache entries", "gauge", stats.Size)
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", s.rateLimiter.Hits())
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", atomic.LoadInt64(&s.security.suspiciousRequests))
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", s.rateLimiter.ActiveClients())
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}

type accountView struct {
	Name                 string                     `json:"name"`
	Institution          string                     `json:"institution"`
	Number               string                     `json:"number"`
	StartingBalance      decimal.Decimal            `json:"starting_balance"`
	StartingDistribution map[string]decimal.Decimal `json:"starting_distribution"`
	Transactions         int                        `json:"transactions"`
	Balance              decimal.Decimal            `json:"balance"`
}

type profileView struct {
	Name       string           `json:"name"`
	Revision   uint64           `json:"revision"`
	Accounts   []accountView    `json:"accounts"`
	Categories *core.Categories `json:"categories"`
	Periods    []string         `json:"periods"`
}

func newAccountView(a *core.Account) accountView {
	balance := a.StartingBalance
	for _, t := range a.Transactions {
		balance = balance.Add(t.Amount)
	}
	return accountView{
		Name:                 a.Name,
		Institution:          a.Institution,
		Number:               a.Number,
		StartingBalance:      a.StartingBalance,
		StartingDistribution: a.StartingDistribution,
		Transactions:         len(a.Transactions),
		Balance:              balance,
	}
}

func (s *Server) newProfileView(p *core.Profile) profileView {
	v := profileView{
		Name:       p.Name,
		Revision:   s.profiles.Revision(p.Name),
		Accounts:   []accountView{},
		Categories: p.Categories,
		Periods:    []string{},
	}
	for _, a := range p.Accounts {
		v.Accounts = append(v.Accounts, newAccountView(a))
	}
	for _, b := range p.Budget {
		v.Periods = append(v.Periods, b.YearMonth().String())
	}
	return v
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.profiles.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": names})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := body.Require("name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.profiles.Create(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/profiles/"+p.Name).
		JSON(s.newProfileView(p)).
		Write(w)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), r.PathValue("profile"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.newProfileView(p))
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.Delete(r.Context(), r.PathValue("profile")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type accountRequest struct {
	Name                 string                 `json:"name"`
	Institution          string                 `json:"institution"`
	Number               string                 `json:"number"`
	StartingBalance      json.Number            `json:"starting_balance"`
	StartingDistribution map[string]json.Number `json:"starting_distribution"`
}

// optionalAmount parses n, treating an absent value as zero.
func optionalAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return core.ParseAmount(n.String())
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := optionalAmount(req.StartingBalance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	distribution := make(map[string]decimal.Decimal, len(req.StartingDistribution))
	for c, n := range req.StartingDistribution {
		amt, err := optionalAmount(n)
		if err != nil {
			writeError(w, r, fmt.Errorf("starting distribution of %s: %w", c, err))
			return
		}
		distribution[core.NormalizeCategory(c)] = amt
	}

	var view accountView
	_, err = s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		a, err := p.CreateAccount(sanitizeInput(req.Name), sanitizeInput(req.Institution), sanitizeInput(req.Number), balance)
		if err != nil {
			return err
		}
		for c, amt := range distribution {
			a.SetStartingDistribution(c, amt)
		}
		view = newAccountView(a)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), r.PathValue("profile"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, ok := p.Account(r.PathValue("account"))
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrAccountNotFound, r.PathValue("account")))
		return
	}

	txs := a.Transactions
	if field := r.URL.Query().Get("sort"); field != "" {
		sf, err := core.ParseSortField(field)
		if err != nil {
			writeError(w, r, err)
			return
		}
		desc := strings.EqualFold(r.URL.Query().Get("order"), "desc")
		txs, err = core.SortTransactions(txs, sf, desc)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	if txs == nil {
		txs = []*core.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": a.Name, "transactions": txs})
}

type splitRequest struct {
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Amount      json.Number `json:"amount"`
}

type transactionRequest struct {
	Payee             string         `json:"payee"`
	Description       string         `json:"description"`
	Amount            json.Number    `json:"amount"`
	Date              string         `json:"date"`
	Category          string         `json:"category"`
	AppliedState      string         `json:"applied_state"`
	AppliedToCategory string         `json:"applied_to_category"`
	Splits            []splitRequest `json:"splits"`
}

func (req transactionRequest) transaction() (*core.Transaction, error) {
	if req.Amount == "" {
		return nil, fmt.Errorf("%w: amount is required", errBadRequest)
	}
	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return nil, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	t := &core.Transaction{
		Payee:        sanitizeInput(req.Payee),
		Description:  sanitizeInput(req.Description),
		Amount:       amount,
		Category:     core.NormalizeCategory(req.Category),
		Date:         date,
		AppliedState: core.AppliedState(strings.ToLower(strings.TrimSpace(req.AppliedState))),
	}
	if t.AppliedState == "" {
		t.AppliedState = core.NotApplied
	}
	if !t.AppliedState.IsValid() {
		return nil, fmt.Errorf("%w: applied_state must be none, whole or category", errBadRequest)
	}
	if t.AppliedState == core.ApplyToCategory {
		t.AppliedToCategory = core.PrimaryCategory(core.NormalizeCategory(req.AppliedToCategory))
		if t.AppliedToCategory == "" {
			return nil, fmt.Errorf("%w: applied_to_category is required", errBadRequest)
		}
	}
	for i, sp := range req.Splits {
		amt, err := core.ParseAmount(sp.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", i+1, err)
		}
		t.Splits = append(t.Splits, core.Split{
			Description: sanitizeInput(sp.Description),
			Category:    core.NormalizeCategory(sp.Category),
			Amount:      amt,
		})
	}
	return t, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.transaction()
	if err != nil {
		writeError(w, r, err)
		return
	}

	account := r.PathValue("account")
	_, err = s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		a, ok := p.Account(account)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrAccountNotFound, account)
		}
		a.AddTransaction(t)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// transactionPatch holds the editable parts of a transaction. Absent fields
// are left alone; an empty category or splits list clears it.
type transactionPatch struct {
	Category          *string         `json:"category"`
	Description       *string         `json:"description"`
	AppliedState      *string         `json:"applied_state"`
	AppliedToCategory *string         `json:"applied_to_category"`
	Splits            *[]splitRequest `json:"splits"`
}

func (req transactionPatch) splits() ([]core.Split, error) {
	if req.Splits == nil {
		return nil, nil
	}
	splits := make([]core.Split, 0, len(*req.Splits))
	for i, sp := range *req.Splits {
		if sp.Amount == "" {
			return nil, fmt.Errorf("%w: split %d: amount is required", errBadRequest, i+1)
		}
		amt, err := core.ParseAmount(sp.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", i+1, err)
		}
		splits = append(splits, core.Split{
			Description: sanitizeInput(sp.Description),
			Category:    core.NormalizeCategory(sp.Category),
			Amount:      amt,
		})
	}
	return splits, nil
}

// apply validates the patch against the profile's categories and edits t.
// Nothing is changed when it fails.
func (req transactionPatch) apply(t *core.Transaction, cats *core.Categories) error {
	known := func(ref string) error {
		if !cats.PrimaryExists(core.PrimaryCategory(ref)) {
			return fmt.Errorf("%w: %s", errUnknownCategory, ref)
		}
		return nil
	}
	splits, err := req.splits()
	if err != nil {
		return err
	}
	for _, sp := range splits {
		if err := known(sp.Category); err != nil {
			return err
		}
	}

	category := t.Category
	if req.Category != nil {
		category = core.NormalizeCategory(*req.Category)
		if category != "" {
			if err := known(category); err != nil {
				return err
			}
		}
	}

	state, target := t.AppliedState, t.AppliedToCategory
	if req.AppliedState != nil || req.AppliedToCategory != nil {
		if !t.IsIncome() {
			return fmt.Errorf("%w: only income can be applied", errBadRequest)
		}
		if req.AppliedState != nil {
			state = core.AppliedState(strings.ToLower(strings.TrimSpace(*req.AppliedState)))
		}
		if !state.IsValid() {
			return fmt.Errorf("%w: applied_state must be none, whole or category", errBadRequest)
		}
		target = ""
		if state == core.ApplyToCategory {
			if req.AppliedToCategory != nil {
				target = core.PrimaryCategory(core.NormalizeCategory(*req.AppliedToCategory))
			} else {
				target = t.AppliedToCategory
			}
			if target == "" {
				return fmt.Errorf("%w: applied_to_category is required", errBadRequest)
			}
			if err := known(target); err != nil {
				return err
			}
		}
	}

	t.Category = category
	t.AppliedState, t.AppliedToCategory = state, target
	if req.Description != nil {
		t.Description = sanitizeInput(*req.Description)
	}
	if req.Splits != nil {
		t.Splits = nil
		if len(splits) > 0 {
			t.Splits = splits
		}
	}
	return nil
}

func (s *Server) handlePatchTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPatch
	if err := NewRequestBodyParser(r).Decode(&req); err != nil {
		writeError(w, r, err)
		return
	}

	account, id := r.PathValue("account"), r.PathValue("id")
	var (
		updated     core.Transaction
		categorized bool
	)
	_, err := s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		a, ok := p.Account(account)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrAccountNotFound, account)
		}
		t, ok := a.Transaction(id)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrTxNotFound, id)
		}
		if err := req.apply(t, p.Categories); err != nil {
			return err
		}
		updated, categorized = *t, core.IsCategorized(t, p.Categories)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": updated,
		"categorized": categorized,
	})
}

// handleSetDistribution assigns part of an account's starting balance to a
// primary category. A zero amount removes the assignment.
func (s *Server) handleSetDistribution(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	category, err := body.Require("category")
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := body.Require("amount")
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	account := r.PathValue("account")
	var view accountView
	_, err = s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		a, ok := p.Account(account)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrAccountNotFound, account)
		}
		if !p.Categories.PrimaryExists(category) {
			return fmt.Errorf("%w: %s", errUnknownCategory, category)
		}
		a.SetStartingDistribution(category, amount)
		view = newAccountView(a)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// statementBody returns the uploaded CSV, either as the multipart field
// "file" or as the raw request body.
func statementBody(r *http.Request) (io.Reader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: file field is required", errBadRequest)
		}
		defer f.Close()
		return readLimited(f)
	}
	return readLimited(r.Body)
}

func readLimited(r io.Reader) (io.Reader, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}
	if len(data) > maxImportBytes {
		return nil, errBodyTooLarge
	}
	return bytes.NewReader(data), nil
}

type importView struct {
	Format       importer.Format     `json:"format"`
	Imported     int                 `json:"imported"`
	Skipped      int                 `json:"skipped"`
	Transactions []*core.Transaction `json:"transactions"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := statementBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.profiles.Import(r.Context(), r.PathValue("profile"), r.PathValue("account"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Imported == nil {
		res.Imported = []*core.Transaction{}
	}
	writeJSON(w, http.StatusOK, importView{
		Format:       res.Format,
		Imported:     len(res.Imported),
		Skipped:      res.Skipped,
		Transactions: res.Imported,
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), r.PathValue("profile"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Categories)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := body.Require("category")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref := core.NormalizeCategory(raw)
	if ref == "" {
		writeError(w, r, fmt.Errorf("%w: category %q has no name", errBadRequest, raw))
		return
	}

	p, err := s.profiles.Update(r.Context(), r.PathValue("profile"), func(p *core.Profile) error {
		p.Categories.Add(ref)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Category added",
		log.FieldProfile, p.Name,
		log.FieldCategory, ref)
	writeJSON(w, http.StatusCreated, p.Categories)
}
