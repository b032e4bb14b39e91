package permission

import (
	"context"
	"fmt"
	"strings"
)

// Level is the capability a user holds on a resource.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelAdmin
)

var levelNames = map[Level]string{
	LevelNone:  "none",
	LevelView:  "view",
	LevelEdit:  "edit",
	LevelAdmin: "admin",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// CanView reports whether the level allows reading the resource.
func (l Level) CanView() bool {
	return l >= LevelView
}

// CanEdit reports whether the level allows edits and deletes. Only edit and admin qualify.
func (l Level) CanEdit() bool {
	return l == LevelEdit || l == LevelAdmin
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown permission level: %q", s)
}

// Provider resolves the capability a user holds on a resource, e.g. "run:<id>".
type Provider interface {
	Level(ctx context.Context, user, resource string) (Level, error)
}

// Static grants the same level to everyone, with optional per-resource overrides.
type Static struct {
	Default   Level
	Overrides map[string]Level
}

// Level implements Provider.
func (s Static) Level(_ context.Context, _ string, resource string) (Level, error) {
	if l, ok := s.Overrides[resource]; ok {
		return l, nil
	}
	return s.Default, nil
}

// RunResource names the permission resource of a run's artifacts.
func RunResource(runID string) string {
	return "run:" + runID
}

// ExperimentResource names the permission resource of an experiment's tags.
func ExperimentResource(experimentID string) string {
	return "experiment:" + experimentID
}
