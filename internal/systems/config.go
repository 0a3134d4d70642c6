package systems

import (
	"fmt"

	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// ConfigError reports a bad system template config.
type ConfigError struct {
	System string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("system %s: config %q: %s", e.System, e.Field, e.Reason)
}

type config struct {
	system string
	obj    value.Object
}

func (c config) errorf(field, format string, args ...any) error {
	return &ConfigError{System: c.system, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (c config) int(field string, def int) (int, error) {
	raw, ok := c.obj[field]
	if !ok {
		return def, nil
	}
	switch n := raw.(type) {
	case value.Int:
		return int(n), nil
	case value.Float:
		if float64(n) == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, c.errorf(field, "want an integer, got %s", value.Format(raw))
}

func (c config) string(field, def string) (string, error) {
	raw, ok := c.obj[field]
	if !ok {
		return def, nil
	}
	s, ok := raw.(value.String)
	if !ok {
		return "", c.errorf(field, "want a string, got %s", value.Format(raw))
	}
	return string(s), nil
}

func (c config) bool(field string, def bool) (bool, error) {
	raw, ok := c.obj[field]
	if !ok {
		return def, nil
	}
	b, ok := raw.(value.Bool)
	if !ok {
		return false, c.errorf(field, "want a boolean, got %s", value.Format(raw))
	}
	return bool(b), nil
}

func (c config) stat(n *tree.Node, field, def string) (*stat.Stat, error) {
	key, err := c.string(field, def)
	if err != nil {
		return nil, err
	}
	s, ok := n.Engine().Stat(key)
	if !ok {
		return nil, c.errorf(field, "unknown stat %q", key)
	}
	return s, nil
}

func (c config) priority() (stat.Priority, error) {
	p, err := c.int("priority", 0)
	if err != nil {
		return stat.Priority{}, err
	}
	if p < 0 {
		return stat.Priority{}, c.errorf("priority", "must be >= 0")
	}
	rev, err := c.bool("reverse", false)
	if err != nil {
		return stat.Priority{}, err
	}
	return stat.Priority{Value: p, Reverse: rev}, nil
}
