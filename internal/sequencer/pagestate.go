// internal/sequencer/pagestate.go
package sequencer

import (
	"regexp"
	"strings"
)

const (
	// MaxLastActionLength bounds PageState.LastAction.
	MaxLastActionLength = 100

	// MaxLastResultLength bounds PageState.LastResult.
	MaxLastResultLength = 200

	// MaxVariables caps the page-state variable store. When the cap is
	// exceeded the oldest entries are evicted, insertion order, not LRU.
	MaxVariables = 50
)

var (
	// urlInResult pulls the first URL out of free-text action results like
	// "Navigated to https://example.com/inbox (200 OK)".
	urlInResult = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

	// titleInResult matches the common "title: ..." shapes emitted by the
	// browser executor. Quoted titles keep everything between the quotes;
	// bare titles run to the end of the clause.
	titleQuotedInResult = regexp.MustCompile(`(?i)title[:=]\s*"([^"]+)"`)
	titleBareInResult   = regexp.MustCompile(`(?i)title[:=]\s*([^".;\n][^.;\n]*)`)
)

// PageState is the bounded record of browser context carried between goal
// executions. One PageState exists per GoalSequence and lives exactly as
// long as it (or a checkpoint restored into it).
type PageState struct {
	URL        string
	Title      string
	LastAction string
	LastResult string

	names  []string
	values map[string]any
}

// NewPageState returns an empty page state.
func NewPageState() *PageState {
	return &PageState{values: make(map[string]any)}
}

// SetVariable stores a named value. New names append to the insertion order;
// updating an existing name keeps its original position, so eviction remains
// strictly oldest-first.
func (p *PageState) SetVariable(name string, value any) {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
	p.evict()
}

// Variable looks up a stored value.
func (p *PageState) Variable(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// VariableCount returns the number of stored variables.
func (p *PageState) VariableCount() int { return len(p.names) }

// VariableNames returns the insertion-ordered names, oldest first.
func (p *PageState) VariableNames() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Variables returns a copy of the variable map.
func (p *PageState) Variables() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// evict drops the oldest entries beyond MaxVariables.
func (p *PageState) evict() {
	if len(p.names) <= MaxVariables {
		return
	}
	drop := len(p.names) - MaxVariables
	for _, name := range p.names[:drop] {
		delete(p.values, name)
	}
	p.names = append(p.names[:0], p.names[drop:]...)
}

// Update records the action/result pair of the goal that just executed and
// opportunistically refreshes URL and Title from the result text.
func (p *PageState) Update(action, result string) {
	p.LastAction = truncateHard(action, MaxLastActionLength)
	p.LastResult = truncateHard(result, MaxLastResultLength)
	p.UpdateFromResult(result)
}

// UpdateFromResult extracts a URL and a title from free-text results. Both
// are best-effort: no match leaves the previous value in place.
func (p *PageState) UpdateFromResult(result string) {
	if m := urlInResult.FindString(result); m != "" {
		p.URL = m
	}
	if m := titleQuotedInResult.FindStringSubmatch(result); len(m) == 2 {
		p.Title = strings.TrimSpace(m[1])
	} else if m := titleBareInResult.FindStringSubmatch(result); len(m) == 2 {
		p.Title = strings.TrimSpace(m[1])
	}
}
