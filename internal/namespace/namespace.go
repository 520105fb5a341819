// Package namespace classifies archive entries by their single-character
// namespace code and resolves caller-supplied namespace selections.
package namespace

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"strings"
)

// ErrInvalidSelector reports a namespace selection that matches neither a
// known code nor one of the pseudo-selectors.
var ErrInvalidSelector = errors.New("invalid namespace selected")

// Pseudo-selectors offered alongside the concrete codes.
const (
	// SelectorAll selects every namespace.
	SelectorAll = "ALL"
	// SelectorUnknown selects every code absent from the static registry.
	SelectorUnknown = "UNKNOWN"
)

// registry maps the well-known namespace codes to their descriptions.
// It is never mutated; discovered codes live in the View returned by
// Discover.
var registry = map[string]string{
	"A": "Article",
	"B": "Deleted articles",
	"C": "Category entries",
	"I": "Images",
	"M": "Metadata",
	"S": "Stylesheets",
	"F": "Other files",
	"V": "Videos",
	"X": "Special entries",
}

// Describe returns the registry description for a code, or
// "Unknown (<code>)" for codes outside the registry.
func Describe(code string) string {
	if desc, ok := registry[code]; ok {
		return desc
	}
	return fmt.Sprintf("Unknown (%s)", code)
}

// Registered reports whether code is in the static registry.
func Registered(code string) bool {
	_, ok := registry[code]
	return ok
}

// View is the effective namespace set for one archive: the static
// registry, any discovered unknown codes labeled "Unknown_<code>", and
// the two pseudo-selectors.
type View map[string]string

// Discover scans entry paths once and returns the effective namespace
// view. Empty paths are skipped with a warning; they carry no namespace.
func Discover(paths iter.Seq[string]) View {
	view := make(View, len(registry)+2)
	maps.Copy(view, registry)

	i := -1
	for path := range paths {
		i++
		if path == "" {
			slog.Warn("entry has an empty path, skipping", "index", i)
			continue
		}
		code := string(path[0])
		if _, known := view[code]; !known {
			view[code] = "Unknown_" + code
		}
	}

	view[SelectorAll] = "Select all namespaces"
	view[SelectorUnknown] = "Select all unknown namespaces"
	return view
}

type selectorKind int

const (
	selectAll selectorKind = iota
	selectUnknown
	selectExact
)

// Selector is a resolved namespace filter.
type Selector struct {
	kind selectorKind
	code string
}

// All returns the no-filter selector.
func All() Selector {
	return Selector{kind: selectAll}
}

// Exact returns a selector matching a single code.
func Exact(code string) Selector {
	return Selector{kind: selectExact, code: code}
}

// Unknown returns the selector matching codes outside the static registry.
func Unknown() Selector {
	return Selector{kind: selectUnknown}
}

// Matches reports whether an entry with the given namespace code passes
// the selector.
func (s Selector) Matches(code string) bool {
	switch s.kind {
	case selectAll:
		return true
	case selectUnknown:
		return !Registered(code)
	default:
		return code == s.code
	}
}

// Code returns the concrete code of an exact selector, or "" otherwise.
func (s Selector) Code() string {
	return s.code
}

// Resolve matches a caller-supplied selection against the effective view,
// case-insensitively and ignoring surrounding whitespace. Unmatched input
// fails with ErrInvalidSelector; it never falls back silently.
func Resolve(view View, input string) (Selector, error) {
	key := strings.ToUpper(strings.TrimSpace(input))
	switch {
	case key == SelectorAll:
		return All(), nil
	case key == SelectorUnknown:
		return Unknown(), nil
	default:
		if _, ok := view[key]; ok {
			return Exact(key), nil
		}
		return Selector{}, fmt.Errorf("%w: %q", ErrInvalidSelector, input)
	}
}
