// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package component defines the closed set of buildable components. The
// build matrix is statically known, so the set is an enumeration rather
// than a dynamically extensible collection.
package component

import (
	"fmt"
	"sort"
	"strings"
)

// Component identifies one buildable unit of the release pipeline.
type Component string

const (
	Core       Component = "core"
	Serving    Component = "serving"
	JobService Component = "jobservice"
	Jupyter    Component = "jupyter"
	CI         Component = "ci"
)

// all holds the canonical ordering used everywhere a deterministic
// iteration order matters (logs, dry-run output, test expectations).
var all = []Component{Core, Serving, JobService, Jupyter, CI}

// All returns the full component set in canonical order. The returned slice
// is a copy; callers may reorder it freely.
func All() []Component {
	out := make([]Component, len(all))
	copy(out, all)
	return out
}

// Parse validates a user-supplied component name against the closed set.
func Parse(s string) (Component, error) {
	c := Component(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range all {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown component %q (valid: %s)", s, namesList())
}

// ParseSet validates a list of names, rejecting duplicates. An empty input
// yields the full set.
func ParseSet(names []string) ([]Component, error) {
	if len(names) == 0 {
		return All(), nil
	}
	seen := make(map[Component]bool, len(names))
	out := make([]Component, 0, len(names))
	for _, n := range names {
		c, err := Parse(n)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate component %q", n)
		}
		seen[c] = true
		out = append(out, c)
	}
	// Canonical order regardless of how the config listed them.
	sort.Slice(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out, nil
}

func (c Component) String() string {
	return string(c)
}

func rank(c Component) int {
	for i, known := range all {
		if c == known {
			return i
		}
	}
	return len(all)
}

func namesList() string {
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
