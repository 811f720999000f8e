package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgetbook/internal/core"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidName     = errors.New("invalid profile name")
)

// ProfileStore persists whole profiles, one document per profile.
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]string, error)
	LoadProfile(ctx context.Context, name string) (*core.Profile, error)
	SaveProfile(ctx context.Context, p *core.Profile) error
	DeleteProfile(ctx context.Context, name string) error
}

// Versioned is implemented by stores that can tell whether a profile changed
// without decoding it. The version differs after every save, including saves
// made by another process sharing the store.
type Versioned interface {
	Version(ctx context.Context, name string) (string, error)
}

// ValidateProfileName rejects names that cannot double as a file name.
func ValidateProfileName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name != strings.TrimSpace(name):
		return fmt.Errorf("%w: %q has surrounding spaces", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\:*?"<>|`):
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidName, name)
	case len(name) > 100:
		return fmt.Errorf("%w: longer than 100 characters", ErrInvalidName)
	}
	return nil
}
