package console

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbook/internal/core"
	"budgetbook/internal/storage/memory"
)

const householdScript = `create profile household
category Food:Groceries
category Auto
create account checking "First Bank" 0001 1000
distribute Food 200
create transaction 2024-01-15 2000 Employer "" salary
apply 1 whole
create transaction 2024-01-20 -150 Market Food:Groceries "weekly shop"
create transaction 02/03/2024 -50 Kiosk "" ""
budget create
percent 2024-01 Food 25
transfer 2024-01 Food Auto 30
budget show 2024-01
budget year 2024
save
`

func run(t *testing.T, c *Console, script string) string {
	t.Helper()
	out := c.out.(*bytes.Buffer)
	c.in = bufio.NewScanner(strings.NewReader(script))
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func newTestConsole(store *memory.Store) *Console {
	return New(store, strings.NewReader(""), &bytes.Buffer{}, Options{})
}

// hasRow reports whether out holds a line with exactly the given fields.
func hasRow(out string, want ...string) bool {
	for _, line := range strings.Split(out, "\n") {
		if slices.Equal(strings.Fields(line), want) {
			return true
		}
	}
	return false
}

func lastField(out, first string) string {
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) > 0 && f[0] == first {
			return f[len(f)-1]
		}
	}
	return ""
}

func TestConsole_HouseholdTranscript(t *testing.T) {
	store := memory.New()
	c := newTestConsole(store)
	out := run(t, c, householdScript)

	assert.NotContains(t, out, "error:")
	assert.Contains(t, out, "Created profile household.")
	assert.Contains(t, out, "Created account checking with starting balance 1000.00.")
	assert.Contains(t, out, "Employer 2000.00 applied to whole.")
	assert.True(t, hasRow(out, "2024-01", "0.00%", "0"), "periods table:\n%s", out)
	assert.Contains(t, out, "Food gets 25.00% of 2024-01; 75.00% remains unallocated.")

	assert.True(t, hasRow(out, "Food", "25.00%", "200.00", "-150.00", "500.00", "-30.00", "520.00"), out)
	assert.True(t, hasRow(out, "Auto", "0.00%", "0.00", "0.00", "0.00", "30.00", "30.00"), out)
	assert.Equal(t, "2300.00", lastField(out, "Unassigned"))
	assert.Equal(t, "2850.00", lastField(out, "Total"))
	assert.True(t, hasRow(out, "2024-02", "-50.00", "0.00", "-50.00", "2800.00"), out)
	assert.Contains(t, out, "Saved household.")
	assert.False(t, c.State().Dirty)

	names, err := store.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"household"}, names)
}

func TestConsole_SelectSavedProfile(t *testing.T) {
	store := memory.New()
	run(t, newTestConsole(store), householdScript)

	c := newTestConsole(store)
	out := run(t, c, "list\nselect profile 1\nselect account checking\nlist\nbudget show 2024-05\n")
	assert.True(t, hasRow(out, "1.", "household"), out)
	assert.Contains(t, out, "Selected profile household.")
	assert.Contains(t, out, "Kiosk")
	assert.Contains(t, out, "2024-05 is outside the budget")

	st := c.State()
	require.NotNil(t, st.Account)
	assert.Len(t, st.Account.Transactions, 3)
}

func TestConsole_SortView(t *testing.T) {
	store := memory.New()
	run(t, newTestConsole(store), householdScript)
	c := newTestConsole(store)
	ctx := context.Background()

	for _, line := range []string{"select profile household", "select account 1", "view"} {
		_, err := c.Execute(ctx, line)
		require.NoError(t, err, line)
	}
	payees := func() []string {
		var out []string
		for _, tx := range c.State().View {
			out = append(out, tx.Payee)
		}
		return out
	}
	assert.Equal(t, []string{"Employer", "Market", "Kiosk"}, payees())

	tests := []struct {
		line string
		want []string
	}{
		{"sort amount", []string{"Market", "Kiosk", "Employer"}},
		{"sort amount -", []string{"Employer", "Kiosk", "Market"}},
		{"sort payee +", []string{"Employer", "Kiosk", "Market"}},
		{"sort date -", []string{"Kiosk", "Market", "Employer"}},
		{"clear sort", []string{"Employer", "Market", "Kiosk"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := c.Execute(ctx, tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, payees())
		})
	}

	_, err := c.Execute(ctx, "sort weight")
	assert.Error(t, err)
	_, err = c.Execute(ctx, "assign 2 Auto")
	require.NoError(t, err)
	assert.Equal(t, "Auto", c.State().View[1].Category)
	assert.True(t, c.State().Dirty)

	_, err = c.Execute(ctx, "back")
	require.NoError(t, err)
	assert.Nil(t, c.State().View)
	assert.NotNil(t, c.State().Account)
}

func TestConsole_Split(t *testing.T) {
	store := memory.New()
	run(t, newTestConsole(store), householdScript)
	c := newTestConsole(store)
	ctx := context.Background()

	for _, line := range []string{"select profile household", "select account 1"} {
		_, err := c.Execute(ctx, line)
		require.NoError(t, err, line)
	}
	kiosk := c.State().Account.Transactions[2]

	_, err := c.Execute(ctx, "split 3 Food:Groceries -30 Auto -20")
	require.NoError(t, err)
	require.Len(t, kiosk.Splits, 2)
	assert.Equal(t, "Food:Groceries", kiosk.Splits[0].Category)
	assert.Equal(t, "-20.00", core.FormatAmount(kiosk.Splits[1].Amount))
	assert.True(t, core.IsCategorized(kiosk, c.State().Profile.Categories))
	assert.True(t, c.State().Dirty)

	out := c.out.(*bytes.Buffer)
	out.Reset()
	_, err = c.Execute(ctx, "list transactions")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "split(2)")
	assert.True(t, hasRow(out.String(), "-30.00", "Food:Groceries"), out.String())

	out.Reset()
	_, err = c.Execute(ctx, "split 3 Food -10")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Warning: splits add up to -10.00 of -50.00")
	assert.False(t, core.IsCategorized(kiosk, c.State().Profile.Categories))

	_, err = c.Execute(ctx, "split 3 Travel -50")
	assert.ErrorIs(t, err, errUnknownCategory)
	_, err = c.Execute(ctx, "split 3 Food")
	assert.ErrorIs(t, err, errUsage)
	assert.Len(t, kiosk.Splits, 1)

	_, err = c.Execute(ctx, "split 3 clear")
	require.NoError(t, err)
	assert.False(t, kiosk.IsSplit())
}

func TestConsole_CategoryTree(t *testing.T) {
	c := newTestConsole(memory.New())
	out := run(t, c, "create profile tree\ncategory Food:Groceries\ncategory Food:Dining\ncategory Auto\ncategory\n")

	assert.Contains(t, out, "Categories")
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		lines = append(lines, strings.TrimRight(l, " "))
	}
	food := slices.Index(lines, "└── Food")
	require.GreaterOrEqual(t, food, 0, out)
	require.Less(t, food+2, len(lines), out)
	assert.Contains(t, lines, "├── Auto")
	assert.Equal(t, "    ├── Dining", lines[food+1])
	assert.Equal(t, "    └── Groceries", lines[food+2])
	assert.NotContains(t, out, "\x1b[", "no escape codes when writing to a buffer")
}

func TestConsole_Prompts(t *testing.T) {
	var out bytes.Buffer
	c := New(memory.New(), strings.NewReader("create profile\nsolo\ncreate account\nwallet\n\n\n\nquit\n"), &out, Options{})
	require.NoError(t, c.Run(context.Background()))

	s := out.String()
	assert.Contains(t, s, "Profile name: ")
	assert.Contains(t, s, "Created profile solo.")
	assert.Contains(t, s, "Starting balance: ")
	assert.Contains(t, s, "Created account wallet with starting balance 0.00.")
	assert.Contains(t, s, "Unsaved changes to solo were discarded.")
}

func TestConsole_Errors(t *testing.T) {
	c := newTestConsole(memory.New())
	ctx := context.Background()

	tests := []struct {
		line string
		want string
	}{
		{"create account x", "no profile selected"},
		{"frobnicate", "unknown command"},
		{`create profile "open`, "cannot parse command line"},
		{"category Food; Auto", "cannot parse command line"},
		{"create profile ../up", "invalid"},
		{"select profile 3", "profile not found"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := c.Execute(ctx, tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	out := run(t, c, "create profile p\ncreate transaction 2024-01-01 1 x y z\nselect account nope\nq\n")
	assert.Contains(t, out, "error: no account selected")
	assert.Contains(t, out, "error: account not found: nope")
}

func TestConsole_Import(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statement.csv")
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" +
		"DEBIT,01/05/2024,COFFEE SHOP,-4.50,DEBIT_CARD,995.50,\n" +
		"CREDIT,01/06/2024,PAYROLL,1500.00,ACH_CREDIT,2495.50,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	c := newTestConsole(memory.New())
	script := "create profile p\ncreate account a bank 1 0\nimport " + path + "\nimport " + path + "\n"
	out := run(t, c, script)
	assert.Contains(t, out, "Imported 2 transactions")
	assert.Contains(t, out, "Imported 0 transactions")
	assert.Contains(t, out, "skipped 2 already present")
	assert.Len(t, c.State().Account.Transactions, 2)
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{"  list  ", []string{"list"}, false},
		{`create account "My Bank" x`, []string{"create", "account", "My Bank", "x"}, false},
		{`a "" b`, []string{"a", "", "b"}, false},
		{"a\tb", []string{"a", "b"}, false},
		{`say it\ loud 'single quoted'`, []string{"say", "it loud", "single quoted"}, false},
		{`$HOME`, []string{"$HOME"}, false},
		{`"unterminated`, nil, true},
		{"a | b", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := splitArgs(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
