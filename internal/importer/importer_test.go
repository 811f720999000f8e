package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbook/internal/core"
)

const creditCSV = `Type,Trans Date,Post Date,Description,Amount
SALE,01/03/2024,01/04/2024,"  COFFEE SHOP  ",-4.50
PAYMENT,01/10/2024,01/10/2024,THANK YOU,200.00
FEE,01/31/2024,02/01/2024,LATE FEE,-25
`

const debitCSV = "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\r\n" +
	"DEBIT,02/02/2024,\"GROCERY STORE 123\",-82.17,DEBIT_CARD,1017.83,\r\n" +
	"CHECK,02/05/2024,CHECK 1042,-120.00,CHECK_PAID,897.83,1042\r\n" +
	"CREDIT,02/06/2024,PAYROLL,1500,,2397.83,\r\n"

const legacyCSV = `Type,Post Date,Description,Amount,Check or Slip #
DEBIT,03/01/2015,RENT,-900,
DSLIP,03/02/2015,DEPOSIT,250,77
`

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		header string
		want   Format
		err    error
	}{
		{creditHeader, FormatCredit, nil},
		{debitHeader + "\r\n", FormatDebit, nil},
		{"\ufeff" + legacyDebitHeader, FormatLegacyDebit, nil},
		{"Date,Amount", "", ErrUnknownFormat},
	}
	for _, tc := range cases {
		got, err := DetectFormat(tc.header)
		assert.Equal(t, tc.want, got)
		assert.ErrorIs(t, err, tc.err)
	}
}

func TestParseCredit(t *testing.T) {
	format, recs, err := Parse(strings.NewReader(creditCSV))
	require.NoError(t, err)
	assert.Equal(t, FormatCredit, format)
	require.Len(t, recs, 3)

	first := recs[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "SALE", first.Type)
	assert.Equal(t, "COFFEE SHOP", first.Description)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("-4.5")))
	require.NotNil(t, first.TransactionDate)
	assert.Equal(t, core.NewDate(2024, 1, 3).Time, first.TransactionDate.Time)
	assert.Equal(t, core.NewDate(2024, 1, 4).Time, first.PostDate.Time)
	assert.Nil(t, first.CheckOrSlipNo)
}

func TestParseDebit(t *testing.T) {
	format, recs, err := Parse(strings.NewReader(debitCSV))
	require.NoError(t, err)
	assert.Equal(t, FormatDebit, format)
	require.Len(t, recs, 3)

	assert.Equal(t, "DEBIT_CARD", recs[0].Type)
	assert.Equal(t, "GROCERY STORE 123", recs[0].Description)
	assert.Nil(t, recs[0].TransactionDate)
	require.NotNil(t, recs[1].CheckOrSlipNo)
	assert.Equal(t, 1042, *recs[1].CheckOrSlipNo)
	assert.Equal(t, "CREDIT", recs[2].Type, "empty Type falls back to Details")
}

func TestParseLegacyDebit(t *testing.T) {
	format, recs, err := Parse(strings.NewReader(legacyCSV))
	require.NoError(t, err)
	assert.Equal(t, FormatLegacyDebit, format)
	require.Len(t, recs, 2)
	assert.Equal(t, "DSLIP", recs[1].Type)
	require.NotNil(t, recs[1].CheckOrSlipNo)
	assert.Equal(t, 77, *recs[1].CheckOrSlipNo)
}

func TestParseCollectsRowErrors(t *testing.T) {
	in := creditHeader + "\n" +
		"SALE,01/03/2024,01/04/2024,OK,-1\n" +
		"REFUND,01/03/2024,01/04/2024,BAD TYPE,-1\n" +
		"SALE,2024-01-03,01/04/2024,BAD DATE,-1\n" +
		"SALE,01/03/2024,01/04/2024,BAD AMOUNT,abc\n" +
		"SALE,01/03/2024\n"

	_, recs, err := Parse(strings.NewReader(in))
	assert.Nil(t, recs)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.Len(t, perr.Rows, 4)
	assert.Equal(t, []int{3, 4, 5, 6}, []int{perr.Rows[0].Line, perr.Rows[1].Line, perr.Rows[2].Line, perr.Rows[3].Line})
	assert.ErrorIs(t, perr.Rows[1], core.ErrInvalidDate)
	assert.ErrorIs(t, perr.Rows[2], core.ErrInvalidAmount)
}

func TestParseRejectsUnknownAndEmpty(t *testing.T) {
	_, _, err := Parse(strings.NewReader("Date,Description,Amount\n01/01/2024,x,1\n"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestImportSkipsExistingRows(t *testing.T) {
	a := core.NewAccount("visa", "Bank", "4111", decimal.Zero)

	res, err := Import(a, strings.NewReader(creditCSV))
	require.NoError(t, err)
	assert.Len(t, res.Imported, 3)
	assert.Zero(t, res.Skipped)

	tx := a.Transactions[0]
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "COFFEE SHOP", tx.Payee)
	assert.Equal(t, "COFFEE SHOP", tx.Description)
	assert.Empty(t, tx.Category)
	assert.Equal(t, core.NewDate(2024, 1, 4).Time, tx.Date.Time)
	require.NotNil(t, tx.Import)
	assert.Equal(t, "SALE", tx.Import.TransactionType)

	// user edits do not affect matching
	tx.Payee = "Coffee"
	tx.Category = "Food"

	res, err = Import(a, strings.NewReader(creditCSV))
	require.NoError(t, err)
	assert.Empty(t, res.Imported)
	assert.Equal(t, 3, res.Skipped)
	assert.Len(t, a.Transactions, 3)
}

func TestMatchesComparesEveryProvenanceField(t *testing.T) {
	_, recs, err := Parse(strings.NewReader(debitCSV))
	require.NoError(t, err)
	check := recs[1]
	base := check.Transaction()
	require.True(t, check.Matches(base))

	other := 1043
	mutations := map[string]func(tx *core.Transaction){
		"amount":      func(tx *core.Transaction) { tx.Amount = decimal.RequireFromString("-121") },
		"post date":   func(tx *core.Transaction) { tx.Import.PostDate = core.NewDate(2024, 2, 6) },
		"type":        func(tx *core.Transaction) { tx.Import.TransactionType = "DEBIT" },
		"description": func(tx *core.Transaction) { tx.Import.Description = "CHECK 1043" },
		"check no":    func(tx *core.Transaction) { tx.Import.CheckOrSlipNo = &other },
		"trans date":  func(tx *core.Transaction) { d := core.NewDate(2024, 2, 5); tx.Import.TransactionDate = &d },
		"no import":   func(tx *core.Transaction) { tx.Import = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tx := check.Transaction()
			mutate(tx)
			assert.False(t, check.Matches(tx))
		})
	}
}

func TestPlanMarksExisting(t *testing.T) {
	_, recs, err := Parse(strings.NewReader(legacyCSV))
	require.NoError(t, err)
	a := core.NewAccount("checking", "", "", decimal.Zero)
	a.AddTransaction(recs[0].Transaction())

	plan := Plan(a, recs)
	require.Len(t, plan, 2)
	assert.True(t, plan[0].Exists)
	assert.False(t, plan[1].Exists)

	added := Apply(a, plan)
	require.Len(t, added, 1)
	assert.Equal(t, "DEPOSIT", added[0].Description)
	assert.Len(t, a.Transactions, 2)
}
