package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"budgetbook/internal/core"
)

// DocumentVersion is written into every persisted profile.
const DocumentVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported document version")

type document struct {
	Version int           `json:"version"`
	Profile *core.Profile `json:"profile"`
}

// MarshalProfile encodes p as an indented JSON document.
func MarshalProfile(p *core.Profile) ([]byte, error) {
	b, err := json.MarshalIndent(document{Version: DocumentVersion, Profile: p}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode profile %s: %w", p.Name, err)
	}
	return b, nil
}

// UnmarshalProfile decodes a document written by MarshalProfile.
func UnmarshalProfile(b []byte) (*core.Profile, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if doc.Profile == nil {
		return nil, errors.New("decode profile: document has no profile")
	}
	normalize(doc.Profile)
	return doc.Profile, nil
}

// normalize fills the collections JSON leaves nil.
func normalize(p *core.Profile) {
	if p.Categories == nil {
		p.Categories = core.NewCategories()
	}
	for _, a := range p.Accounts {
		if a.StartingDistribution == nil {
			a.StartingDistribution = map[string]decimal.Decimal{}
		}
	}
	for _, b := range p.Budget {
		if b.Percentages == nil {
			b.Percentages = map[string]decimal.Decimal{}
		}
	}
}
