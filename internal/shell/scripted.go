package shell

import (
	"context"
	"strings"
	"sync"
)

// ScriptedRunner is a Runner test double. It records every invocation and
// fails any command whose rendered form contains a configured substring.
// It is safe for concurrent use, matching how the matrix workers share one
// runner.
type ScriptedRunner struct {
	mu    sync.Mutex
	calls []string
	// FailOn maps a command substring to the error returned for it.
	FailOn map[string]error
}

// Run implements Runner.
func (s *ScriptedRunner) Run(ctx context.Context, name string, args ...string) error {
	rendered := strings.Join(append([]string{name}, args...), " ")

	s.mu.Lock()
	s.calls = append(s.calls, rendered)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	for substr, failErr := range s.FailOn {
		if strings.Contains(rendered, substr) {
			return failErr
		}
	}
	return nil
}

// Calls returns a copy of every rendered command run so far.
func (s *ScriptedRunner) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsMatching returns the rendered commands containing the substring.
func (s *ScriptedRunner) CallsMatching(substr string) []string {
	var out []string
	for _, c := range s.Calls() {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}
