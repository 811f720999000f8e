package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	NotApplied      AppliedState = "none"
	ApplyToWhole    AppliedState = "whole"
	ApplyToCategory AppliedState = "category"
)

const dateLayout = "2006-01-02"

type (
	// AppliedState tells how an income transaction feeds the budget.
	// The zero value behaves like NotApplied.
	AppliedState string

	Date struct {
		time.Time
	}

	// YearMonth identifies a budget period.
	YearMonth struct {
		Year  int
		Month time.Month
	}

	Split struct {
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
	}

	// ImportData records where an imported transaction came from. It is only
	// used to recognise the same statement row on a later import.
	ImportData struct {
		TransactionType string `json:"transaction_type"`
		TransactionDate *Date  `json:"transaction_date,omitempty"`
		PostDate        Date   `json:"post_date"`
		Description     string `json:"description"`
		CheckOrSlipNo   *int   `json:"check_or_slip_no,omitempty"`
	}

	Transaction struct {
		ID                string          `json:"id"`
		Payee             string          `json:"payee"`
		Description       string          `json:"description"`
		Amount            decimal.Decimal `json:"amount"`
		Category          string          `json:"category"`
		Date              Date            `json:"date"`
		Splits            []Split         `json:"splits,omitempty"`
		AppliedState      AppliedState    `json:"applied_state,omitempty"`
		AppliedToCategory string          `json:"applied_to_category,omitempty"`
		Import            *ImportData     `json:"import,omitempty"`
	}

	Account struct {
		Name                 string                     `json:"name"`
		Institution          string                     `json:"institution"`
		Number               string                     `json:"number"`
		StartingBalance      decimal.Decimal            `json:"starting_balance"`
		StartingDistribution map[string]decimal.Decimal `json:"starting_distribution"`
		Transactions         []*Transaction             `json:"transactions"`
	}

	InternalTransfer struct {
		From   string          `json:"from"`
		To     string          `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}

	// MonthlyBudget is one period of the budget. Percentages are fractions
	// keyed by primary category; they are not required to sum to one.
	MonthlyBudget struct {
		Month       time.Month                 `json:"month"`
		Year        int                        `json:"year"`
		Percentages map[string]decimal.Decimal `json:"percentages"`
		Transfers   []InternalTransfer         `json:"transfers"`
	}

	Profile struct {
		Name       string           `json:"name"`
		Accounts   []*Account       `json:"accounts"`
		Categories *Categories      `json:"categories"`
		Budget     []*MonthlyBudget `json:"budget"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPercent   = errors.New("invalid percentage")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrEmptyName        = errors.New("empty name")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrAccountNotFound  = errors.New("account not found")
	ErrTxNotFound       = errors.New("transaction not found")
	ErrPeriodNotFound   = errors.New("budget period not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD and MM/DD/YYYY.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Time.Year(), Month: d.Time.Month()}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	d.Time = t
	return nil
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Next wraps December to January of the following year.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == time.December {
		return YearMonth{Year: ym.Year + 1, Month: time.January}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

func (t *Transaction) IsSplit() bool  { return len(t.Splits) > 0 }
func (t *Transaction) IsIncome() bool  { return t.Amount.IsPositive() }
func (t *Transaction) IsExpense() bool { return t.Amount.IsNegative() }

// Applied normalizes the zero value to NotApplied.
func (t *Transaction) Applied() AppliedState {
	switch t.AppliedState {
	case ApplyToWhole, ApplyToCategory:
		return t.AppliedState
	default:
		return NotApplied
	}
}

func (s AppliedState) IsValid() bool {
	switch s {
	case NotApplied, ApplyToWhole, ApplyToCategory:
		return true
	}
	return false
}

// NewAccount returns an account with an empty starting distribution.
func NewAccount(name, institution, number string, startingBalance decimal.Decimal) *Account {
	return &Account{
		Name:                 name,
		Institution:          institution,
		Number:               number,
		StartingBalance:      startingBalance,
		StartingDistribution: map[string]decimal.Decimal{},
	}
}

// AddTransaction appends t, assigning an ID when it has none.
func (a *Account) AddTransaction(t *Transaction) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	a.Transactions = append(a.Transactions, t)
}

func (a *Account) Transaction(id string) (*Transaction, bool) {
	for _, t := range a.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// SetStartingDistribution assigns part of the starting balance to a category.
// A zero amount removes the entry.
func (a *Account) SetStartingDistribution(category string, amount decimal.Decimal) {
	if a.StartingDistribution == nil {
		a.StartingDistribution = map[string]decimal.Decimal{}
	}
	if amount.IsZero() {
		delete(a.StartingDistribution, category)
		return
	}
	a.StartingDistribution[category] = amount
}

func NewMonthlyBudget(ym YearMonth) *MonthlyBudget {
	return &MonthlyBudget{
		Month:       ym.Month,
		Year:        ym.Year,
		Percentages: map[string]decimal.Decimal{},
	}
}

func (b *MonthlyBudget) YearMonth() YearMonth {
	return YearMonth{Year: b.Year, Month: b.Month}
}

func (b *MonthlyBudget) Percentage(category string) decimal.Decimal {
	return b.Percentages[category]
}

func (b *MonthlyBudget) SetPercentage(category string, pct decimal.Decimal) {
	if b.Percentages == nil {
		b.Percentages = map[string]decimal.Decimal{}
	}
	if pct.IsZero() {
		delete(b.Percentages, category)
		return
	}
	b.Percentages[category] = pct
}

func (b *MonthlyBudget) AddTransfer(from, to string, amount decimal.Decimal) {
	b.Transfers = append(b.Transfers, InternalTransfer{From: from, To: to, Amount: amount})
}

func NewProfile(name string) *Profile {
	return &Profile{Name: name, Categories: NewCategories()}
}

// CreateAccount adds an account. Names are unique within a profile.
func (p *Profile) CreateAccount(name, institution, number string, startingBalance decimal.Decimal) (*Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if _, ok := p.Account(name); ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, name)
	}
	a := NewAccount(name, institution, number, startingBalance)
	p.Accounts = append(p.Accounts, a)
	return a, nil
}

func (p *Profile) Account(name string) (*Account, bool) {
	for _, a := range p.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

func (p *Profile) RemoveAccount(name string) bool {
	for i, a := range p.Accounts {
		if a.Name == name {
			p.Accounts = append(p.Accounts[:i], p.Accounts[i+1:]...)
			return true
		}
	}
	return false
}

// Period returns the budget period for ym.
func (p *Profile) Period(ym YearMonth) (*MonthlyBudget, bool) {
	for _, b := range p.Budget {
		if b.Month == ym.Month && b.Year == ym.Year {
			return b, true
		}
	}
	return nil, false
}

func (p *Profile) HasBudget() bool {
	return len(p.Budget) > 0
}

// Transactions returns every transaction of every account, account by account.
func (p *Profile) Transactions() []*Transaction {
	var out []*Transaction
	for _, a := range p.Accounts {
		out = append(out, a.Transactions...)
	}
	return out
}

// StartingBalance sums the starting balances of all accounts.
func (p *Profile) StartingBalance() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Accounts {
		total = total.Add(a.StartingBalance)
	}
	return total
}
