// internal/sequencer/condition.go
package sequencer

import "strings"

// Condition is the runtime predicate of a CONDITIONAL goal. It is evaluated
// against the last observed result text, not against a live page: the
// executor's textual output is the only signal this layer sees.
type Condition struct {
	// Check is the free-text description of what to test, e.g. "logged in".
	Check string

	// Negate inverts the outcome of the check.
	Negate bool
}

// Signal vocabularies for the keyword heuristics. These mirror the phrasing
// browser executors actually emit, so they are matched as plain substrings
// of the lowercased result.
var (
	loginPositiveSignals = []string{
		"inbox", "dashboard", "logout", "sign out", "log out",
		"welcome", "my account", "profile", "compose",
	}
	loginNegativeSignals = []string{
		"sign in", "log in", "login", "password", "create account",
		"forgot", "register",
	}
	errorSignals = []string{
		"error", "failed", "failure", "exception", "denied", "forbidden",
		"not found", "timeout", "timed out",
	}
)

// Evaluate runs the heuristic check against the current page state and
// returns the (possibly negated) outcome. An unrecognized check evaluates to
// true so unknown conditions never stall a sequence.
func (c *Condition) Evaluate(ps *PageState) bool {
	outcome := c.evaluateCheck(ps)
	if c.Negate {
		return !outcome
	}
	return outcome
}

func (c *Condition) evaluateCheck(ps *PageState) bool {
	check := strings.ToLower(strings.TrimSpace(c.Check))
	haystack := strings.ToLower(ps.LastResult)

	switch {
	case containsAny(check, "logged in", "signed in", "logged-in", "authenticated"):
		// Presence of a post-login artifact wins over login-form noise,
		// since pages often carry both (e.g. "logout" links plus a
		// "sign in as someone else" footer).
		if containsAny(haystack, loginPositiveSignals...) {
			return true
		}
		if containsAny(haystack, loginNegativeSignals...) {
			return false
		}
		// Nothing recognizable means we cannot confirm a session.
		return false

	case containsAny(check, "error", "failed", "failure"):
		return containsAny(haystack, errorSignals...)

	case containsAny(check, "exists", "found", "present", "visible", "available"):
		return c.subjectAppears(check, haystack)

	case strings.HasPrefix(check, "page contains ") || strings.HasPrefix(check, "contains "):
		subject := strings.TrimPrefix(strings.TrimPrefix(check, "page contains "), "contains ")
		return strings.Contains(haystack, strings.Trim(subject, `"' `))
	}

	// Unrecognized check: bias toward forward progress.
	return true
}

// subjectAppears strips the predicate words out of the check and tests
// whether the remaining subject tokens all appear in the result text.
func (c *Condition) subjectAppears(check, haystack string) bool {
	predicates := map[string]bool{
		"exists": true, "found": true, "present": true, "visible": true,
		"available": true, "is": true, "are": true, "the": true, "a": true,
		"an": true, "on": true, "page": true,
	}
	var subject []string
	for _, tok := range strings.Fields(check) {
		if !predicates[strings.Trim(tok, `"'.,`)] {
			subject = append(subject, strings.Trim(tok, `"'.,`))
		}
	}
	if len(subject) == 0 {
		return true
	}
	for _, tok := range subject {
		if !strings.Contains(haystack, tok) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
