// internal/sequencer/sequence.go
package sequencer

// GoalSequence is an ordered, stateful collection of goals derived from one
// raw instruction, plus the shared PageState they execute against. It is the
// execution state machine: exactly one external executor drives it, one goal
// at a time, so no locking happens here.
type GoalSequence struct {
	OriginalPrompt string
	Goals          []*Goal
	PageState      *PageState

	// currentIndex only ever increases, except when a checkpoint restore
	// rewinds the whole sequence to a saved position.
	currentIndex int

	// completedCount is cached so status queries stay O(1) on 300-goal
	// sequences. Any status mutation must invalidate it.
	completedCount int
	cacheValid     bool
}

// NewGoalSequence builds a sequence over the given goals. Goal indices are
// (re)assigned here and are immutable afterwards.
func NewGoalSequence(prompt string, goals []*Goal) *GoalSequence {
	for i, g := range goals {
		g.Index = i
		if g.ElseGoal != nil {
			g.ElseGoal.Index = i
		}
	}
	return &GoalSequence{
		OriginalPrompt: prompt,
		Goals:          goals,
		PageState:      NewPageState(),
	}
}

// CurrentIndex returns the cursor position.
func (s *GoalSequence) CurrentIndex() int { return s.currentIndex }

// CurrentGoal returns the goal under the cursor, or nil when the sequence is
// exhausted.
func (s *GoalSequence) CurrentGoal() *Goal {
	if s.currentIndex < 0 || s.currentIndex >= len(s.Goals) {
		return nil
	}
	return s.Goals[s.currentIndex]
}

// Remaining reports whether any goals are left to attempt.
func (s *GoalSequence) Remaining() bool {
	return s.currentIndex < len(s.Goals)
}

// CompletedCount returns the number of COMPLETED goals, recomputing the
// cached value only when a mutation invalidated it.
func (s *GoalSequence) CompletedCount() int {
	if !s.cacheValid {
		n := 0
		for _, g := range s.Goals {
			if g.Status == StatusCompleted {
				n++
			}
		}
		s.completedCount = n
		s.cacheValid = true
	}
	return s.completedCount
}

func (s *GoalSequence) invalidateCache() { s.cacheValid = false }

// UpdateState feeds the outcome of the goal that just ran into the shared
// page state. Called on success and failure alike, so later conditionals can
// react to failures too.
func (s *GoalSequence) UpdateState(result, action string) {
	s.PageState.Update(action, result)
}

// GoalToExecute resolves the goal the external executor should run next.
// Plain goals are returned as-is. For CONDITIONAL goals the condition is
// evaluated against the page state: true returns the goal itself; false with
// an else branch returns the else goal (same index, alternate content);
// false with no else marks the goal SKIPPED, moves the cursor on and keeps
// resolving, so a chain of false conditionals is skipped in one call.
// Returns nil when the sequence is exhausted.
func (s *GoalSequence) GoalToExecute() *Goal {
	for {
		goal := s.CurrentGoal()
		if goal == nil {
			return nil
		}
		if goal.Type != TypeConditional || goal.Condition == nil {
			return goal
		}
		if goal.Condition.Evaluate(s.PageState) {
			return goal
		}
		if goal.ElseGoal != nil {
			return goal.ElseGoal
		}
		goal.Status = StatusSkipped
		s.invalidateCache()
		s.currentIndex++
	}
}

// Advance records the outcome of the current goal and moves the state
// machine. The return value means "more goals remain to attempt": false
// signals the caller to stop, either because the sequence finished or
// because a blocking goal failed terminally.
//
// On failure the goal's retry counter decides the path: while retries
// remain, the cursor does not move and the same goal is re-offered; once
// exhausted, a blocking goal halts the sequence (all later PENDING goals
// become SKIPPED) and a non-blocking goal is bypassed.
func (s *GoalSequence) Advance(success bool, result, errText string) bool {
	goal := s.CurrentGoal()
	if goal == nil {
		return false
	}

	// Page state is updated first, unconditionally, so the next goal (or
	// the next retry's condition) sees what just happened.
	if result != "" {
		s.UpdateState(result, goal.Description)
	} else {
		s.UpdateState(errText, goal.Description)
	}

	if success {
		goal.Status = StatusCompleted
		goal.SetResult(result)
		s.currentIndex++
		s.invalidateCache()
		return s.Remaining()
	}

	goal.Retries++
	if goal.Retries <= goal.MaxRetries {
		// Retry budget: MaxRetries re-offers after the first attempt. The
		// cursor stays put so the same goal comes back from GoalToExecute.
		return true
	}

	goal.Status = StatusFailed
	goal.SetError(errText)
	s.invalidateCache()

	if goal.IsBlocking {
		for _, g := range s.Goals[s.currentIndex+1:] {
			if g.Status == StatusPending {
				g.Status = StatusSkipped
			}
		}
		s.currentIndex = len(s.Goals)
		return false
	}

	s.currentIndex++
	return s.Remaining()
}
