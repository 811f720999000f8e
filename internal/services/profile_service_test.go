package services

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbook/internal/budget"
	"budgetbook/internal/core"
	"budgetbook/internal/importer"
	"budgetbook/internal/storage"
	"budgetbook/internal/storage/filestore"
	"budgetbook/internal/storage/memory"
	"budgetbook/internal/storage/storagetest"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (p *recordingPublisher) PublishProfileSync(_ context.Context, profile string, revision uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, profile+"@"+strconv.FormatUint(revision, 10))
	return p.err
}

func newService(t *testing.T, pub SyncPublisher, profiles ...*core.Profile) *ProfileService {
	t.Helper()
	store, err := memory.NewWithProfiles(profiles...)
	require.NoError(t, err)
	return NewProfileService(store, Options{Publisher: pub, CacheSize: 16})
}

func TestProfileService_CreateAndList(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newService(t, pub)

	p, err := svc.Create(ctx, "household")
	require.NoError(t, err)
	assert.Equal(t, "household", p.Name)

	_, err = svc.Create(ctx, "household")
	assert.ErrorIs(t, err, ErrProfileExists)

	_, err = svc.Create(ctx, "a/b")
	assert.ErrorIs(t, err, storage.ErrInvalidName)

	names, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"household"}, names)
	assert.Equal(t, uint64(1), svc.Revision("household"))
	assert.Equal(t, []string{"household@1"}, pub.sent)
}

func TestProfileService_Update(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newService(t, pub, core.NewProfile("household"))

	_, err := svc.Update(ctx, "household", func(p *core.Profile) error {
		p.Categories.AddPrimary("Food")
		return nil
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "household")
	require.NoError(t, err)
	assert.True(t, got.Categories.PrimaryExists("Food"))
	assert.Equal(t, uint64(1), svc.Revision("household"))

	t.Run("failing mutation writes nothing", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := svc.Update(ctx, "household", func(p *core.Profile) error {
			p.Categories.AddPrimary("Travel")
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := svc.Get(ctx, "household")
		require.NoError(t, err)
		assert.False(t, got.Categories.PrimaryExists("Travel"))
		assert.Equal(t, uint64(1), svc.Revision("household"))
	})

	t.Run("missing profile", func(t *testing.T) {
		_, err := svc.Update(ctx, "nobody", func(*core.Profile) error { return nil })
		assert.ErrorIs(t, err, storage.ErrProfileNotFound)
	})

	t.Run("publish failure does not fail the update", func(t *testing.T) {
		pub.err = errors.New("broker down")
		_, err := svc.Update(ctx, "household", func(p *core.Profile) error {
			p.Categories.AddPrimary("Auto")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), svc.Revision("household"))
	})
}

func TestProfileService_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	p := core.NewProfile("household")
	_, err := p.CreateAccount("checking", "", "", decimal.Zero)
	require.NoError(t, err)
	svc := newService(t, nil, p)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Update(ctx, "household", func(p *core.Profile) error {
				a, _ := p.Account("checking")
				a.AddTransaction(&core.Transaction{Amount: decimal.NewFromInt(-1), Date: core.NewDate(2024, 1, 1)})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, "household")
	require.NoError(t, err)
	assert.Len(t, got.Accounts[0].Transactions, writers)
	assert.Equal(t, uint64(writers), svc.Revision("household"))
}

func TestProfileService_ReportsFollowUpdates(t *testing.T) {
	ctx := context.Background()
	sample := storagetest.SampleProfile("household")
	svc := newService(t, nil, sample)
	jan := core.YearMonth{Year: 2024, Month: 1}

	first, err := svc.MonthReport(ctx, "household", jan)
	require.NoError(t, err)
	want := budget.NewEngine(sample).MonthReport(jan)
	assert.True(t, want.Total.Balance.Equal(first.Total.Balance), "balance %s, want %s", first.Total.Balance, want.Total.Balance)
	assert.True(t, want.Unassigned.Balance.Equal(first.Unassigned.Balance))
	require.Len(t, first.Categories, len(want.Categories))

	again, err := svc.MonthReport(ctx, "household", jan)
	require.NoError(t, err)
	assert.True(t, first.Total.Balance.Equal(again.Total.Balance))
	assert.Equal(t, uint64(1), svc.CacheStats().Hits)

	_, err = svc.Update(ctx, "household", func(p *core.Profile) error {
		a, _ := p.Account("checking")
		a.AddTransaction(&core.Transaction{
			Amount:   decimal.NewFromInt(-50),
			Category: "Auto",
			Date:     core.NewDate(2024, 1, 20),
		})
		return nil
	})
	require.NoError(t, err)

	updated, err := svc.MonthReport(ctx, "household", jan)
	require.NoError(t, err)
	assert.True(t, updated.Total.Expenses.Equal(first.Total.Expenses.Sub(decimal.NewFromInt(50))),
		"total expenses %s, previously %s", updated.Total.Expenses, first.Total.Expenses)

	summary, err := svc.YearSummary(ctx, "household", 2024)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.True(t, summary[0].Balance.Equal(updated.Total.Balance))
}

func TestProfileService_Import(t *testing.T) {
	ctx := context.Background()
	p := core.NewProfile("household")
	_, err := p.CreateAccount("card", "", "", decimal.Zero)
	require.NoError(t, err)
	svc := newService(t, nil, p)

	statement := "Type,Trans Date,Post Date,Description,Amount\n" +
		"SALE,01/03/2024,01/04/2024,COFFEE,-4.50\n"

	res, err := svc.Import(ctx, "household", "card", strings.NewReader(statement))
	require.NoError(t, err)
	assert.Equal(t, importer.FormatCredit, res.Format)
	assert.Len(t, res.Imported, 1)

	res, err = svc.Import(ctx, "household", "card", strings.NewReader(statement))
	require.NoError(t, err)
	assert.Empty(t, res.Imported)
	assert.Equal(t, 1, res.Skipped)

	_, err = svc.Import(ctx, "household", "nope", strings.NewReader(statement))
	assert.ErrorIs(t, err, core.ErrAccountNotFound)

	_, err = svc.Import(ctx, "household", "card", strings.NewReader("Date,Amount\n"))
	assert.ErrorIs(t, err, importer.ErrUnknownFormat)
}

func TestProfileService_Delete(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, core.NewProfile("household"))

	_, err := svc.Engine(ctx, "household")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "household"))
	assert.ErrorIs(t, svc.Delete(ctx, "household"), storage.ErrProfileNotFound)

	_, err = svc.MonthReport(ctx, "household", core.YearMonth{Year: 2024, Month: 1})
	assert.ErrorIs(t, err, storage.ErrProfileNotFound)
	assert.Equal(t, uint64(0), svc.Revision("household"))
}

func TestProfileService_Close(t *testing.T) {
	svc := NewProfileService(memory.New(), Options{})
	assert.NoError(t, svc.Close())
}

func TestProfileService_SeesWritesFromOtherServices(t *testing.T) {
	ctx := context.Background()
	jan := core.YearMonth{Year: 2024, Month: 1}

	stores := map[string]func(t *testing.T) storage.ProfileStore{
		"memory": func(t *testing.T) storage.ProfileStore { return memory.New() },
		"file": func(t *testing.T) storage.ProfileStore {
			s, err := filestore.New(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) storage.ProfileStore {
			repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
			require.NoError(t, err)
			t.Cleanup(func() { repo.Close() })
			return repo
		},
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			server := NewProfileService(store, Options{CacheSize: 16})
			console := NewProfileService(store, Options{CacheSize: 16})

			_, err := server.Create(ctx, "household")
			require.NoError(t, err)
			addFood := func(svc *ProfileService, amount int64) {
				_, err := svc.Update(ctx, "household", func(p *core.Profile) error {
					p.Categories.AddPrimary("Food")
					a, ok := p.Account("checking")
					if !ok {
						a, _ = p.CreateAccount("checking", "", "", decimal.Zero)
					}
					a.AddTransaction(&core.Transaction{
						Amount:   decimal.NewFromInt(amount),
						Category: "Food",
						Date:     core.NewDate(2024, 1, 10),
					})
					budget.CreateMonthlyBudgets(p)
					return nil
				})
				require.NoError(t, err)
			}
			addFood(server, -10)

			before, err := server.MonthReport(ctx, "household", jan)
			require.NoError(t, err)
			require.Len(t, before.Categories, 1)
			assert.True(t, before.Categories[0].Expenses.Equal(decimal.NewFromInt(-10)))

			addFood(console, -90)

			after, err := server.MonthReport(ctx, "household", jan)
			require.NoError(t, err)
			assert.True(t, after.Categories[0].Expenses.Equal(decimal.NewFromInt(-100)),
				"food expenses %s after another service wrote -90", after.Categories[0].Expenses)

			summary, err := server.YearSummary(ctx, "household", 2024)
			require.NoError(t, err)
			require.Len(t, summary, 1)
			assert.True(t, summary[0].Expenses.Equal(decimal.NewFromInt(-100)))
		})
	}
}
