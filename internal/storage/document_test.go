package storage_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbook/internal/storage"
	"budgetbook/internal/storage/storagetest"
)

func TestDocumentRoundTrip(t *testing.T) {
	want := storagetest.SampleProfile("household")
	b, err := storage.MarshalProfile(want)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"version": 1`)

	got, err := storage.UnmarshalProfile(b)
	require.NoError(t, err)
	assert.Equal(t, storagetest.Encoded(t, want), storagetest.Encoded(t, got))
	assert.Equal(t, want.Categories.Primaries(), got.Categories.Primaries())
	require.Len(t, got.Budget, 2)
	assert.Len(t, got.Budget[0].Transfers, 1)
	assert.Empty(t, got.Budget[1].Transfers)
}

func TestDocumentNormalizesMissingCollections(t *testing.T) {
	doc := `{"version":1,"profile":{"name":"bare","accounts":[{"name":"a","starting_balance":"0"}],"budget":[{"month":3,"year":2022}]}}`
	p, err := storage.UnmarshalProfile([]byte(doc))
	require.NoError(t, err)
	require.NotNil(t, p.Categories)
	assert.NotNil(t, p.Accounts[0].StartingDistribution)
	assert.NotNil(t, p.Budget[0].Percentages)
	assert.False(t, p.Categories.PrimaryExists("x"))
}

func TestDocumentRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"wrong version": `{"version":9,"profile":{"name":"x"}}`,
		"no profile":    `{"version":1}`,
		"bad date":      `{"version":1,"profile":{"name":"x","accounts":[{"name":"a","transactions":[{"date":"03/01/2022"}]}]}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := storage.UnmarshalProfile([]byte(doc))
			assert.Error(t, err)
		})
	}
	_, err := storage.UnmarshalProfile([]byte(`{"version":2,"profile":{}}`))
	assert.ErrorIs(t, err, storage.ErrUnsupportedVersion)
}

func TestValidateProfileName(t *testing.T) {
	for _, ok := range []string{"home", "Jane Doe", "2024-budget"} {
		assert.NoError(t, storage.ValidateProfileName(ok), ok)
	}
	for _, bad := range []string{"", " ", " pad", ".hidden", "a/b", `a\b`, "c:d", strings.Repeat("x", 101)} {
		assert.ErrorIs(t, storage.ValidateProfileName(bad), storage.ErrInvalidName, bad)
	}
}
