// internal/sequencer/condition_test.go
package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func stateWithResult(result string) *PageState {
	ps := NewPageState()
	ps.LastResult = result
	return ps
}

// -- Test Cases --

func TestCondition_LoggedIn(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   bool
	}{
		{"inbox visible", "Gmail inbox showing 3 unread messages", true},
		{"dashboard visible", "Dashboard for user jdoe, last login yesterday", true},
		{"login form", "Login page with email and password fields", false},
		{"signin prompt", "Please sign in to continue", false},
		{"both signals, positive wins", `Inbox (2). Footer: "sign in as a different user"`, true},
		{"no recognizable signal", "A plain page about gardening", false},
		{"empty result", "", false},
	}

	cond := &Condition{Check: "logged in"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cond.Evaluate(stateWithResult(tt.result)))
		})
	}
}

func TestCondition_Negate(t *testing.T) {
	cond := &Condition{Check: "logged in", Negate: true}

	assert.False(t, cond.Evaluate(stateWithResult("Your inbox has mail")))
	assert.True(t, cond.Evaluate(stateWithResult("Enter your password")))
}

func TestCondition_ErrorCheck(t *testing.T) {
	cond := &Condition{Check: "an error occurred"}

	assert.True(t, cond.Evaluate(stateWithResult("Error 500: internal server error")))
	assert.True(t, cond.Evaluate(stateWithResult("The request timed out")))
	assert.False(t, cond.Evaluate(stateWithResult("Everything loaded fine")))
}

func TestCondition_SubjectPresence(t *testing.T) {
	ps := stateWithResult("Search results: 42 items. A checkout button is at the bottom.")

	assert.True(t, (&Condition{Check: "the checkout button is visible"}).Evaluate(ps))
	assert.False(t, (&Condition{Check: "the cancel button is visible"}).Evaluate(ps))
	assert.True(t, (&Condition{Check: "results found"}).Evaluate(ps))
}

func TestCondition_Contains(t *testing.T) {
	ps := stateWithResult("Welcome back, valued customer")

	assert.True(t, (&Condition{Check: `page contains "welcome back"`}).Evaluate(ps))
	assert.False(t, (&Condition{Check: `page contains "goodbye"`}).Evaluate(ps))
}

func TestCondition_UnrecognizedDefaultsTrue(t *testing.T) {
	cond := &Condition{Check: "the moon is full"}
	assert.True(t, cond.Evaluate(stateWithResult("anything at all")),
		"unknown checks must not stall a sequence")

	negated := &Condition{Check: "the moon is full", Negate: true}
	assert.False(t, negated.Evaluate(stateWithResult("anything at all")))
}
