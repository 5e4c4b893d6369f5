package service

import (
	"sort"
	"strings"

	"github.com/raphaelgruber/refcheck/internal/models"
)

// Collision records two records of one snapshot sharing a canonical name.
// The later record replaces the earlier one in the catalog.
type Collision struct {
	Name    string
	Kept    models.ReferenceDatabase
	Dropped models.ReferenceDatabase
}

// Catalog maps canonical names to the reference databases of one snapshot.
type Catalog struct {
	byName     map[string]models.ReferenceDatabase
	collisions []Collision
}

// BuildCatalog indexes records by canonical name.
// Duplicate canonical names are resolved last-write-wins and reported via
// Collisions; they are not an error. Fails on the first record whose names
// cannot be resolved.
func BuildCatalog(rds []models.ReferenceDatabase) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]models.ReferenceDatabase, len(rds))}
	for _, rd := range rds {
		name, err := CanonicalName(rd)
		if err != nil {
			return nil, err
		}
		if prev, ok := c.byName[name]; ok {
			c.collisions = append(c.collisions, Collision{Name: name, Kept: rd, Dropped: prev})
		}
		c.byName[name] = rd
	}
	return c, nil
}

// Len returns the number of distinct canonical names.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byName)
}

// Get returns the record indexed under name.
func (c *Catalog) Get(name string) (models.ReferenceDatabase, bool) {
	if c == nil {
		return models.ReferenceDatabase{}, false
	}
	rd, ok := c.byName[name]
	return rd, ok
}

// Collisions returns the duplicate canonical names seen while building, in input order.
func (c *Catalog) Collisions() []Collision {
	if c == nil {
		return nil
	}
	return append([]Collision(nil), c.collisions...)
}

// Names returns the canonical names sorted case-insensitively.
// Names equal under lower-casing are ordered byte-wise so the order is total.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	SortNames(names)
	return names
}

// SortNames sorts names in place by their lower-cased form.
func SortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})
}
