package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgetbook/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps one JSON document per profile in a SQLite table.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ProfileStore = (*SQLiteRepository)(nil)
	_ Versioned    = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan profile name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) LoadProfile(ctx context.Context, name string) (*core.Profile, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM profiles WHERE name = ?`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", name, err)
	}
	return UnmarshalProfile([]byte(doc))
}

// SaveProfile inserts or replaces the profile document and bumps its revision.
func (r *SQLiteRepository) SaveProfile(ctx context.Context, p *core.Profile) error {
	if err := ValidateProfileName(p.Name); err != nil {
		return err
	}
	doc, err := MarshalProfile(p)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (name, document) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			document = excluded.document,
			revision = profiles.revision + 1,
			updated_at = CURRENT_TIMESTAMP`,
		p.Name, string(doc))
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.Name, err)
	}

	slog.InfoContext(ctx, "Profile saved to SQLite",
		"profile", p.Name,
		"accounts", len(p.Accounts),
		"periods", len(p.Budget),
		"bytes", len(doc))
	return nil
}

func (r *SQLiteRepository) DeleteProfile(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	slog.InfoContext(ctx, "Profile deleted from SQLite", "profile", name)
	return nil
}

// Revision reports how many times a profile has been saved and when it was
// last written.
func (r *SQLiteRepository) Revision(ctx context.Context, name string) (int64, time.Time, error) {
	var (
		rev     int64
		updated string
	)
	err := r.db.QueryRowContext(ctx, `SELECT revision, updated_at FROM profiles WHERE name = ?`, name).Scan(&rev, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("read revision of %s: %w", name, err)
	}
	return rev, parseTimestamp(updated), nil
}

// Version combines the stored revision with the write time, so a profile that
// is deleted and created again does not reuse an old version.
func (r *SQLiteRepository) Version(ctx context.Context, name string) (string, error) {
	rev, updated, err := r.Revision(ctx, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d@%d", rev, updated.UnixNano()), nil
}

// parseTimestamp accepts both the driver's RFC 3339 rendering and SQLite's
// CURRENT_TIMESTAMP text.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
