// Package storagetest holds a sample profile and a behaviour suite shared by
// every ProfileStore implementation.
package storagetest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbook/internal/core"
	"budgetbook/internal/storage"
)

// SampleProfile returns a profile touching every persisted field.
func SampleProfile(name string) *core.Profile {
	p := core.NewProfile(name)
	p.Categories.AddSecondary("Food", "Groceries")
	p.Categories.AddSecondary("Food", "Restaurants")
	p.Categories.AddPrimary("Auto")

	checking, _ := p.CreateAccount("checking", "First Bank", "0001", decimal.RequireFromString("1200.50"))
	checking.SetStartingDistribution("Food", decimal.RequireFromString("300"))
	checking.SetStartingDistribution("Auto", decimal.RequireFromString("150.25"))

	check := 1042
	transDate := core.NewDate(2024, 1, 2)
	checking.AddTransaction(&core.Transaction{
		Payee:       "Market",
		Description: "weekly shop",
		Amount:      decimal.RequireFromString("-82.17"),
		Category:    "Food:Groceries",
		Date:        core.NewDate(2024, 1, 3),
		Import: &core.ImportData{
			TransactionType: "SALE",
			TransactionDate: &transDate,
			PostDate:        core.NewDate(2024, 1, 3),
			Description:     "MARKET 123",
			CheckOrSlipNo:   &check,
		},
	})
	checking.AddTransaction(&core.Transaction{
		Payee:        "Employer",
		Amount:       decimal.RequireFromString("2500"),
		Date:         core.NewDate(2024, 1, 15),
		AppliedState: core.ApplyToWhole,
	})
	checking.AddTransaction(&core.Transaction{
		Payee:  "Mall",
		Amount: decimal.RequireFromString("-100"),
		Date:   core.NewDate(2024, 2, 1),
		Splits: []core.Split{
			{Description: "lunch", Category: "Food:Restaurants", Amount: decimal.RequireFromString("-60")},
			{Description: "wipers", Category: "Auto", Amount: decimal.RequireFromString("-40")},
		},
	})

	savings, _ := p.CreateAccount("savings", "First Bank", "0002", decimal.Zero)
	savings.AddTransaction(&core.Transaction{
		Payee:             "Interest",
		Amount:            decimal.RequireFromString("1.23"),
		Date:              core.NewDate(2024, 2, 28),
		AppliedState:      core.ApplyToCategory,
		AppliedToCategory: "Auto",
	})

	jan := core.NewMonthlyBudget(core.YearMonth{Year: 2024, Month: 1})
	jan.SetPercentage("Food", decimal.RequireFromString("0.4"))
	jan.SetPercentage("Auto", decimal.RequireFromString("0.125"))
	jan.AddTransfer("Food", "Auto", decimal.RequireFromString("20"))
	feb := core.NewMonthlyBudget(core.YearMonth{Year: 2024, Month: 2})
	feb.SetPercentage("Food", decimal.RequireFromString("0.4"))
	p.Budget = append(p.Budget, jan, feb)
	return p
}

// Encoded returns the canonical document of p for comparisons.
func Encoded(t *testing.T, p *core.Profile) string {
	t.Helper()
	b, err := storage.MarshalProfile(p)
	require.NoError(t, err)
	return string(b)
}

// Run exercises the ProfileStore contract against a fresh, empty store.
func Run(t *testing.T, store storage.ProfileStore) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		names, err := store.ListProfiles(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		_, err = store.LoadProfile(ctx, "nobody")
		assert.ErrorIs(t, err, storage.ErrProfileNotFound)
		assert.ErrorIs(t, store.DeleteProfile(ctx, "nobody"), storage.ErrProfileNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		want := SampleProfile("household")
		require.NoError(t, store.SaveProfile(ctx, want))

		got, err := store.LoadProfile(ctx, "household")
		require.NoError(t, err)
		assert.Equal(t, Encoded(t, want), Encoded(t, got))

		require.Len(t, got.Accounts, 2)
		assert.Equal(t, "checking", got.Accounts[0].Name)
		assert.Equal(t, want.Accounts[0].Transactions[0].ID, got.Accounts[0].Transactions[0].ID)
		assert.True(t, got.Accounts[0].Transactions[2].IsSplit())
		assert.True(t, got.Budget[0].Percentage("Auto").Equal(decimal.RequireFromString("0.125")))
		assert.True(t, got.Categories.SecondaryExists("Food", "Restaurants"))
		require.NotNil(t, got.Accounts[0].Transactions[0].Import.CheckOrSlipNo)
		assert.Equal(t, 1042, *got.Accounts[0].Transactions[0].Import.CheckOrSlipNo)
	})

	t.Run("overwrite", func(t *testing.T) {
		p, err := store.LoadProfile(ctx, "household")
		require.NoError(t, err)
		p.Categories.AddPrimary("Travel")
		require.NoError(t, store.SaveProfile(ctx, p))

		again, err := store.LoadProfile(ctx, "household")
		require.NoError(t, err)
		assert.True(t, again.Categories.PrimaryExists("Travel"))
	})

	t.Run("loaded profiles are independent", func(t *testing.T) {
		a, err := store.LoadProfile(ctx, "household")
		require.NoError(t, err)
		a.Accounts[0].Name = "changed"

		b, err := store.LoadProfile(ctx, "household")
		require.NoError(t, err)
		assert.Equal(t, "checking", b.Accounts[0].Name)
	})

	t.Run("list and delete", func(t *testing.T) {
		require.NoError(t, store.SaveProfile(ctx, core.NewProfile("alpha")))
		names, err := store.ListProfiles(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "household"}, names)

		require.NoError(t, store.DeleteProfile(ctx, "alpha"))
		names, err = store.ListProfiles(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"household"}, names)
	})

	if v, ok := store.(storage.Versioned); ok {
		t.Run("version follows saves", func(t *testing.T) {
			_, err := v.Version(ctx, "nobody")
			assert.ErrorIs(t, err, storage.ErrProfileNotFound)

			before, err := v.Version(ctx, "household")
			require.NoError(t, err)
			again, err := v.Version(ctx, "household")
			require.NoError(t, err)
			assert.Equal(t, before, again, "reading must not change the version")

			p, err := store.LoadProfile(ctx, "household")
			require.NoError(t, err)
			p.Categories.AddPrimary("Versioned")
			require.NoError(t, store.SaveProfile(ctx, p))

			after, err := v.Version(ctx, "household")
			require.NoError(t, err)
			assert.NotEqual(t, before, after)
		})
	}

	t.Run("invalid name", func(t *testing.T) {
		err := store.SaveProfile(ctx, core.NewProfile("../escape"))
		assert.ErrorIs(t, err, storage.ErrInvalidName)
	})
}
