// Package event models the trigger that starts a pipeline run: a code push
// or a pull-request update, carrying the commit SHA to build and, for pull
// requests, the PR head SHA used to derive alias image tags.
package event

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes the two supported trigger kinds.
type Kind string

const (
	Push        Kind = "push"
	PullRequest Kind = "pull_request"
)

// shaPattern accepts abbreviated and full hex commit identifiers.
var shaPattern = regexp.MustCompile(`^[0-9a-f]{6,64}$`)

// Event is the validated trigger for one pipeline run.
type Event struct {
	Kind      Kind
	SHA       string
	PRHeadSHA string
}

// New validates the raw trigger fields and returns an Event. The PR head SHA
// is required for pull_request triggers and forbidden for push triggers, so
// the retag-on-PR branch downstream is keyed on a total condition.
func New(kind, sha, prHeadSHA string) (Event, error) {
	e := Event{
		Kind:      Kind(strings.ToLower(strings.TrimSpace(kind))),
		SHA:       normalizeSHA(sha),
		PRHeadSHA: normalizeSHA(prHeadSHA),
	}

	switch e.Kind {
	case Push:
		if e.PRHeadSHA != "" {
			return Event{}, fmt.Errorf("push event must not carry a pull-request head SHA")
		}
	case PullRequest:
		if e.PRHeadSHA == "" {
			return Event{}, fmt.Errorf("pull_request event requires a pull-request head SHA")
		}
	default:
		return Event{}, fmt.Errorf("unknown event kind %q (valid: push, pull_request)", kind)
	}

	if !shaPattern.MatchString(e.SHA) {
		return Event{}, fmt.Errorf("invalid commit SHA %q", sha)
	}
	if e.PRHeadSHA != "" && !shaPattern.MatchString(e.PRHeadSHA) {
		return Event{}, fmt.Errorf("invalid pull-request head SHA %q", prHeadSHA)
	}
	return e, nil
}

// HasPRAlias reports whether this event produces a second, PR-addressable
// image reference per component.
func (e Event) HasPRAlias() bool {
	return e.PRHeadSHA != ""
}

func normalizeSHA(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
