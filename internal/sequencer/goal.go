// internal/sequencer/goal.go
package sequencer

// Status tracks a goal through its lifecycle. Goals start PENDING and end in
// exactly one of COMPLETED, FAILED or SKIPPED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuting Status = "EXECUTING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// GoalType categorizes what kind of work a goal represents.
type GoalType string

const (
	TypeAction      GoalType = "ACTION"
	TypeConditional GoalType = "CONDITIONAL"
	TypeAssertion   GoalType = "ASSERTION"
	TypeExtraction  GoalType = "EXTRACTION"
)

const (
	// MaxResultLength bounds the stored result of a single goal. Values
	// longer than this are cut and suffixed with "...".
	MaxResultLength = 500

	// MaxErrorLength bounds the stored error text of a single goal.
	MaxErrorLength = 500

	// DefaultMaxRetries is how many times a failing goal is re-offered
	// before it is marked FAILED for good.
	DefaultMaxRetries = 2
)

// Goal is one atomic unit of a natural-language instruction. Goals are
// created during parsing and afterwards mutated only by the owning
// GoalSequence; the Index is stable for the lifetime of the sequence.
type Goal struct {
	Description string
	Index       int
	Status      Status
	Type        GoalType

	// DependsOn records the sequential dependency chain assigned at parse
	// time. It is stored for forward compatibility and is not consulted by
	// the execution state machine, which is driven by index order alone.
	DependsOn []int

	// IsBlocking goals halt the remainder of the sequence when they fail
	// terminally. Non-blocking goals are bypassed after their retries are
	// exhausted.
	IsBlocking bool

	Retries    int
	MaxRetries int

	// Condition and ElseGoal are set only for TypeConditional goals. The
	// else goal shares the conditional's index: it is an alternate branch,
	// not an extra step.
	Condition *Condition
	ElseGoal  *Goal

	result  string
	errText string
}

// NewGoal returns a PENDING goal with the default retry budget.
func NewGoal(description string, index int, typ GoalType) *Goal {
	return &Goal{
		Description: description,
		Index:       index,
		Status:      StatusPending,
		Type:        typ,
		MaxRetries:  DefaultMaxRetries,
	}
}

// SetResult stores the result, truncating it to MaxResultLength. Every
// writer goes through this setter so the bound holds no matter who assigns.
func (g *Goal) SetResult(v string) {
	g.result = truncateEllipsis(v, MaxResultLength)
}

// Result returns the (already bounded) result text.
func (g *Goal) Result() string { return g.result }

// SetError stores the error text, truncating it to MaxErrorLength.
func (g *Goal) SetError(v string) {
	g.errText = truncateEllipsis(v, MaxErrorLength)
}

// ErrorText returns the (already bounded) error text.
func (g *Goal) ErrorText() string { return g.errText }

// Terminal reports whether the goal has reached a final state.
func (g *Goal) Terminal() bool {
	switch g.Status {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// truncateEllipsis cuts s to max runes and appends "..." when it had to cut.
// Rune-based so multibyte input is never split mid-character.
func truncateEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// truncateHard cuts s to max runes with no marker. Used for the page-state
// fields where the bound is a hard ceiling, not a display hint.
func truncateHard(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
