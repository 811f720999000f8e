package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-03-05", NewDate(2024, 3, 5), true},
		{"03/05/2024", NewDate(2024, 3, 5), true},
		{"3/5/2024", NewDate(2024, 3, 5), true},
		{" 2024-12-31 ", NewDate(2024, 12, 31), true},
		{"2024-13-01", Date{}, false},
		{"yesterday", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
		} else if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2022, 11, 7)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2022-11-07"` {
		t.Fatalf("unexpected encoding %s", b)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("expected %v, got %v", d, back)
	}
}

func TestYearMonthNext(t *testing.T) {
	cases := []struct {
		in, want YearMonth
	}{
		{YearMonth{2022, time.March}, YearMonth{2022, time.April}},
		{YearMonth{2022, time.December}, YearMonth{2023, time.January}},
	}
	for _, tc := range cases {
		if got := tc.in.Next(); got != tc.want {
			t.Errorf("%v.Next() = %v, want %v", tc.in, got, tc.want)
		}
	}
	if !(YearMonth{2021, time.December}).Before(YearMonth{2022, time.January}) {
		t.Errorf("expected Dec 2021 before Jan 2022")
	}
}

func TestParseYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2023-02")
	if err != nil || ym != (YearMonth{2023, time.February}) {
		t.Fatalf("got %v err=%v", ym, err)
	}
	if ym.String() != "2023-02" {
		t.Fatalf("unexpected string %q", ym.String())
	}
	if _, err := ParseYearMonth("2023/02"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestProfileAccounts(t *testing.T) {
	p := NewProfile("home")
	if _, err := p.CreateAccount("", "", "", decimal.Zero); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	a, err := p.CreateAccount("checking", "Bank", "123", dec("100"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.CreateAccount("checking", "", "", decimal.Zero); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	a.AddTransaction(&Transaction{Amount: dec("-5")})
	if a.Transactions[0].ID == "" {
		t.Fatalf("expected an assigned id")
	}
	if _, ok := a.Transaction(a.Transactions[0].ID); !ok {
		t.Fatalf("transaction lookup failed")
	}
	if _, err := p.CreateAccount("savings", "", "", dec("50")); err != nil {
		t.Fatal(err)
	}
	if !p.StartingBalance().Equal(dec("150")) {
		t.Fatalf("unexpected starting balance %v", p.StartingBalance())
	}
	if !p.RemoveAccount("savings") || p.RemoveAccount("savings") {
		t.Fatalf("remove should succeed exactly once")
	}
	if len(p.Transactions()) != 1 {
		t.Fatalf("expected one transaction, got %d", len(p.Transactions()))
	}
}

func TestMonthlyBudgetSetters(t *testing.T) {
	b := NewMonthlyBudget(YearMonth{2024, time.May})
	b.SetPercentage("Food", dec("0.25"))
	if !b.Percentage("Food").Equal(dec("0.25")) {
		t.Fatalf("percentage not stored")
	}
	b.SetPercentage("Food", decimal.Zero)
	if _, ok := b.Percentages["Food"]; ok {
		t.Fatalf("zero percentage should be removed")
	}
	if !b.Percentage("Missing").IsZero() {
		t.Fatalf("missing category should read as zero")
	}
	b.AddTransfer("Food", "Auto", dec("10"))
	if len(b.Transfers) != 1 || b.YearMonth() != (YearMonth{2024, time.May}) {
		t.Fatalf("unexpected budget %+v", b)
	}
}

func TestAppliedDefaultsToNotApplied(t *testing.T) {
	tx := &Transaction{}
	if tx.Applied() != NotApplied {
		t.Fatalf("expected NotApplied, got %q", tx.Applied())
	}
	if AppliedState("bogus").IsValid() {
		t.Fatalf("bogus state should be invalid")
	}
}
