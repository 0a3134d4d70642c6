package stat

import "fmt"

// Catalog is an ordered set of stat definitions keyed by stat key.
type Catalog struct {
	byKey map[string]*Stat
	order []string
}

// NewCatalog returns a catalog holding stats in the given order.
// Duplicate keys are an error.
func NewCatalog(stats ...*Stat) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]*Stat, len(stats))}
	for _, s := range stats {
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers s.
func (c *Catalog) Add(s *Stat) error {
	if _, dup := c.byKey[s.Key]; dup {
		return fmt.Errorf("duplicate stat %q", s.Key)
	}
	c.byKey[s.Key] = s
	c.order = append(c.order, s.Key)
	return nil
}

// Lookup returns the stat for key.
func (c *Catalog) Lookup(key string) (*Stat, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.byKey[key]
	return s, ok
}

// Keys returns stat keys in declaration order.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Len returns the number of stats.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
