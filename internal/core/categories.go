package core

import (
	"encoding/json"
	"slices"
	"strings"
)

// Categories is the two-level category taxonomy of a profile. Primary names
// are kept sorted and unique; each primary owns a sorted, unique set of
// secondary names. Categories are never removed.
type Categories struct {
	primaries   []string
	secondaries [][]string
}

func NewCategories() *Categories {
	return &Categories{}
}

// AddPrimary inserts name in order. It is a no-op when name is present or empty.
func (c *Categories) AddPrimary(name string) {
	c.addPrimary(name)
}

func (c *Categories) addPrimary(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	i, found := slices.BinarySearch(c.primaries, name)
	if found {
		return i
	}
	c.primaries = slices.Insert(c.primaries, i, name)
	c.secondaries = slices.Insert(c.secondaries, i, []string(nil))
	return i
}

// AddSecondary adds secondary under primary, creating primary if needed.
func (c *Categories) AddSecondary(primary, secondary string) {
	i := c.addPrimary(primary)
	secondary = strings.TrimSpace(secondary)
	if i < 0 || secondary == "" {
		return
	}
	j, found := slices.BinarySearch(c.secondaries[i], secondary)
	if found {
		return
	}
	c.secondaries[i] = slices.Insert(c.secondaries[i], j, secondary)
}

// Add registers a category reference of the form Primary or Primary:Secondary.
func (c *Categories) Add(ref string) {
	primary := PrimaryCategory(ref)
	if secondary, ok := SecondaryCategory(ref); ok {
		c.AddSecondary(primary, secondary)
		return
	}
	c.AddPrimary(primary)
}

func (c *Categories) PrimaryExists(name string) bool {
	if c == nil {
		return false
	}
	_, found := slices.BinarySearch(c.primaries, name)
	return found
}

func (c *Categories) SecondaryExists(primary, secondary string) bool {
	if c == nil {
		return false
	}
	i, found := slices.BinarySearch(c.primaries, primary)
	if !found {
		return false
	}
	_, found = slices.BinarySearch(c.secondaries[i], secondary)
	return found
}

// Primaries returns a copy of the sorted primary names.
func (c *Categories) Primaries() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.primaries)
}

func (c *Categories) Secondaries(primary string) []string {
	if c == nil {
		return nil
	}
	i, found := slices.BinarySearch(c.primaries, primary)
	if !found {
		return nil
	}
	return slices.Clone(c.secondaries[i])
}

func (c *Categories) Len() int {
	if c == nil {
		return 0
	}
	return len(c.primaries)
}

func (c *Categories) MarshalJSON() ([]byte, error) {
	m := make(map[string][]string, len(c.primaries))
	for i, p := range c.primaries {
		subs := c.secondaries[i]
		if subs == nil {
			subs = []string{}
		}
		m[p] = subs
	}
	return json.Marshal(m)
}

func (c *Categories) UnmarshalJSON(b []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*c = Categories{}
	for p, subs := range m {
		c.AddPrimary(p)
		for _, s := range subs {
			c.AddSecondary(p, s)
		}
	}
	return nil
}
