package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"budgetbook/internal/budget"
	"budgetbook/internal/cache"
	"budgetbook/internal/core"
	"budgetbook/internal/importer"
	"budgetbook/internal/log"
	"budgetbook/internal/storage"
)

var ErrProfileExists = errors.New("profile already exists")

// SyncPublisher announces committed profile changes. *amqp.Client satisfies it.
type SyncPublisher interface {
	PublishProfileSync(ctx context.Context, profile string, revision uint64) error
}

type Options struct {
	Publisher SyncPublisher
	CacheSize int
	CacheTTL  time.Duration
	Logger    *log.Logger
}

// ProfileService serializes profile writes over a store and serves budget
// reports from a cache keyed by profile revision.
type ProfileService struct {
	store     storage.ProfileStore
	publisher SyncPublisher
	logger    *log.Logger
	events    *log.StructuredLogger

	mu sync.Mutex // held for the whole load/mutate/save cycle

	revMu     sync.RWMutex
	revisions map[string]uint64

	engines   *cache.LRUCache[*budget.Engine]
	reports   *cache.LRUCache[budget.MonthReport]
	summaries *cache.LRUCache[[]budget.MonthSummary]
}

func NewProfileService(store storage.ProfileStore, opts Options) *ProfileService {
	if opts.CacheSize < 1 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentProfile)

	return &ProfileService{
		store:     store,
		publisher: opts.Publisher,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
		revisions: make(map[string]uint64),
		engines:   cache.NewLRUCache[*budget.Engine](opts.CacheSize, opts.CacheTTL),
		reports:   cache.NewLRUCache[budget.MonthReport](opts.CacheSize, opts.CacheTTL),
		summaries: cache.NewLRUCache[[]budget.MonthSummary](opts.CacheSize, opts.CacheTTL),
	}
}

// Caches exposes the report caches for periodic cleanup.
func (s *ProfileService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.engines, s.reports, s.summaries}
}

func (s *ProfileService) List(ctx context.Context) ([]string, error) {
	return s.store.ListProfiles(ctx)
}

func (s *ProfileService) Get(ctx context.Context, name string) (*core.Profile, error) {
	return s.store.LoadProfile(ctx, name)
}

// Revision is the number of updates committed through this service.
func (s *ProfileService) Revision(name string) uint64 {
	s.revMu.RLock()
	defer s.revMu.RUnlock()
	return s.revisions[name]
}

func (s *ProfileService) Create(ctx context.Context, name string) (*core.Profile, error) {
	if err := storage.ValidateProfileName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.LoadProfile(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileExists, name)
	} else if !errors.Is(err, storage.ErrProfileNotFound) {
		return nil, fmt.Errorf("check profile %s: %w", name, err)
	}

	p := core.NewProfile(name)
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile %s: %w", name, err)
	}
	s.committed(ctx, name, log.OpCreate)
	return p, nil
}

func (s *ProfileService) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteProfile(ctx, name); err != nil {
		return err
	}
	s.invalidate(name)
	s.revMu.Lock()
	delete(s.revisions, name)
	s.revMu.Unlock()
	s.logger.InfoContext(ctx, "Profile deleted", log.FieldProfile, name)
	return nil
}

// Update loads the profile, applies fn and saves the result. When fn returns
// an error nothing is written and the error is returned unchanged.
func (s *ProfileService) Update(ctx context.Context, name string, fn func(*core.Profile) error) (*core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.LoadProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile %s: %w", name, err)
	}
	s.committed(ctx, name, log.OpUpdate)
	return p, nil
}

// Import parses a bank statement and appends the rows the account does not
// already hold.
func (s *ProfileService) Import(ctx context.Context, name, account string, r io.Reader) (importer.Result, error) {
	var res importer.Result
	_, err := s.Update(ctx, name, func(p *core.Profile) error {
		a, ok := p.Account(account)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrAccountNotFound, account)
		}
		var err error
		res, err = importer.Import(a, r)
		return err
	})
	if err != nil {
		return importer.Result{}, err
	}
	s.events.LogImport(ctx, name, account, string(res.Format), len(res.Imported), res.Skipped)
	return res, nil
}

func (s *ProfileService) committed(ctx context.Context, name, op string) {
	s.revMu.Lock()
	s.revisions[name]++
	rev := s.revisions[name]
	s.revMu.Unlock()

	s.invalidate(name)
	s.events.LogProfileSaved(ctx, name, rev, op)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishProfileSync(ctx, name, rev); err != nil {
		s.events.LogError(ctx, "Failed to publish profile sync", err, log.ComponentAMQP, log.OpSync,
			log.NewFields().WithProfile(name, rev))
	}
}

func (s *ProfileService) invalidate(name string) {
	prefix := name + "|"
	s.engines.DeletePrefix(prefix)
	s.reports.DeletePrefix(prefix)
	s.summaries.DeletePrefix(prefix)
}

// keyPrefix identifies the current state of a profile in the caches. When the
// store is versioned the prefix carries the stored version, so writes from
// other processes sharing the store miss the cache too.
func (s *ProfileService) keyPrefix(ctx context.Context, name string) (string, error) {
	version := ""
	if v, ok := s.store.(storage.Versioned); ok {
		var err error
		if version, err = v.Version(ctx, name); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s|%d|%s|", name, s.Revision(name), version), nil
}

// Engine returns the allocation engine for the current state of a profile.
func (s *ProfileService) Engine(ctx context.Context, name string) (*budget.Engine, error) {
	prefix, err := s.keyPrefix(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.engine(ctx, name, prefix)
}

func (s *ProfileService) engine(ctx context.Context, name, prefix string) (*budget.Engine, error) {
	key := prefix + "engine"
	if e, ok := s.engines.Get(key); ok {
		return e, nil
	}
	p, err := s.store.LoadProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	e := budget.NewEngine(p)
	s.engines.Set(key, e)
	return e, nil
}

func (s *ProfileService) MonthReport(ctx context.Context, name string, ym core.YearMonth) (budget.MonthReport, error) {
	prefix, err := s.keyPrefix(ctx, name)
	if err != nil {
		return budget.MonthReport{}, err
	}
	key := prefix + ym.String()
	if r, ok := s.reports.Get(key); ok {
		return r, nil
	}
	e, err := s.engine(ctx, name, prefix)
	if err != nil {
		return budget.MonthReport{}, err
	}
	r := e.MonthReport(ym)
	s.reports.Set(key, r)
	return r, nil
}

func (s *ProfileService) YearSummary(ctx context.Context, name string, year int) ([]budget.MonthSummary, error) {
	prefix, err := s.keyPrefix(ctx, name)
	if err != nil {
		return nil, err
	}
	key := prefix + fmt.Sprintf("%04d", year)
	if r, ok := s.summaries.Get(key); ok {
		return r, nil
	}
	e, err := s.engine(ctx, name, prefix)
	if err != nil {
		return nil, err
	}
	r := e.YearSummary(year)
	s.summaries.Set(key, r)
	return r, nil
}

// CacheStats reports hit rates of the month report cache.
func (s *ProfileService) CacheStats() cache.Stats {
	return s.reports.Stats()
}

// Close releases the store and publisher when they hold resources.
func (s *ProfileService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close profile service: %w", errors.Join(errs...))
	}
	return nil
}
