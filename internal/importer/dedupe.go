package importer

import (
	"io"

	"budgetbook/internal/core"
)

// Candidate is a parsed record and whether the account already holds it.
type Candidate struct {
	Record
	Exists bool
}

type Result struct {
	Format   Format
	Imported []*core.Transaction
	Skipped  int
}

// Matches reports whether t was imported from the same statement row as r.
func (r Record) Matches(t *core.Transaction) bool {
	d := t.Import
	if d == nil {
		return false
	}
	if !t.Amount.Equal(r.Amount) ||
		!d.PostDate.Equal(r.PostDate.Time) ||
		d.TransactionType != r.Type ||
		d.Description != r.Description {
		return false
	}
	if !sameDate(d.TransactionDate, r.TransactionDate) {
		return false
	}
	return sameInt(d.CheckOrSlipNo, r.CheckOrSlipNo)
}

func sameDate(a, b *core.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b.Time)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Transaction builds an uncategorized transaction carrying r's provenance.
func (r Record) Transaction() *core.Transaction {
	data := &core.ImportData{
		TransactionType: r.Type,
		PostDate:        r.PostDate,
		Description:     r.Description,
	}
	if r.TransactionDate != nil {
		td := *r.TransactionDate
		data.TransactionDate = &td
	}
	if r.CheckOrSlipNo != nil {
		n := *r.CheckOrSlipNo
		data.CheckOrSlipNo = &n
	}
	return &core.Transaction{
		Payee:       r.Description,
		Description: r.Description,
		Amount:      r.Amount,
		Date:        r.PostDate,
		Import:      data,
	}
}

// Plan marks each record that already exists in a.
func Plan(a *core.Account, records []Record) []Candidate {
	out := make([]Candidate, len(records))
	for i, rec := range records {
		out[i] = Candidate{Record: rec}
		for _, t := range a.Transactions {
			if rec.Matches(t) {
				out[i].Exists = true
				break
			}
		}
	}
	return out
}

// Apply appends the records that do not exist yet and returns them.
func Apply(a *core.Account, plan []Candidate) []*core.Transaction {
	var added []*core.Transaction
	for _, c := range plan {
		if c.Exists {
			continue
		}
		t := c.Transaction()
		a.AddTransaction(t)
		added = append(added, t)
	}
	return added
}

// Import parses a statement and adds its new rows to a. Nothing is added when
// the statement has errors.
func Import(a *core.Account, r io.Reader) (Result, error) {
	format, records, err := Parse(r)
	if err != nil {
		return Result{Format: format}, err
	}
	plan := Plan(a, records)
	added := Apply(a, plan)
	return Result{
		Format:   format,
		Imported: added,
		Skipped:  len(plan) - len(added),
	}, nil
}
