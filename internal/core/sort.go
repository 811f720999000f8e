package core

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

type SortField string

const (
	SortByDate        SortField = "date"
	SortByPayee       SortField = "payee"
	SortByDescription SortField = "description"
	SortByAmount      SortField = "amount"
	SortByCategory    SortField = "category"
)

var ErrUnknownSortField = errors.New("unknown sort field")

// sortKeys maps each field to its comparison.
var sortKeys = map[SortField]func(a, b *Transaction) int{
	SortByDate: func(a, b *Transaction) int { return a.Date.Compare(b.Date.Time) },
	SortByPayee: func(a, b *Transaction) int {
		return cmp.Compare(strings.ToLower(a.Payee), strings.ToLower(b.Payee))
	},
	SortByDescription: func(a, b *Transaction) int {
		return cmp.Compare(strings.ToLower(a.Description), strings.ToLower(b.Description))
	},
	SortByAmount:   func(a, b *Transaction) int { return a.Amount.Cmp(b.Amount) },
	SortByCategory: func(a, b *Transaction) int { return cmp.Compare(a.Category, b.Category) },
}

func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sortKeys[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSortField, s)
	}
	return f, nil
}

// SortTransactions returns a sorted copy of ts. Ties keep insertion order.
func SortTransactions(ts []*Transaction, field SortField, descending bool) ([]*Transaction, error) {
	less, ok := sortKeys[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortField, field)
	}
	out := slices.Clone(ts)
	slices.SortStableFunc(out, func(a, b *Transaction) int {
		if descending {
			return less(b, a)
		}
		return less(a, b)
	})
	return out, nil
}
