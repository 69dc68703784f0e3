// internal/agent/interfaces.go
package agent

import (
	"context"

	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
)

// ActionType enumerates the browser-level actions a goal can compile down to.
type ActionType string

const (
	ActionNavigate ActionType = "NAVIGATE"
	ActionClick    ActionType = "CLICK"
	ActionFill     ActionType = "FILL"
	ActionExtract  ActionType = "EXTRACT"
	ActionSnapshot ActionType = "SNAPSHOT"
)

// Command is one concrete browser instruction. Commands come either from the
// deterministic classifier or from the LLM, which is asked to answer in
// exactly this JSON shape.
type Command struct {
	Action ActionType `json:"action"`
	// Target is a URL for NAVIGATE and a CSS selector otherwise.
	Target string `json:"target,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Outcome is the executor's verdict on one goal attempt. Result carries the
// observable page text on success; ErrText carries the failure description.
type Outcome struct {
	Success bool
	Result  string
	ErrText string
}

// Executor runs one goal against a browser and reports what happened. The
// sequence state machine consumes the outcome via Advance.
type Executor interface {
	Execute(ctx context.Context, goal *sequencer.Goal, ps *sequencer.PageState) Outcome
}

// BrowserSession is the executor's view of a browser tab. *browser.Session
// implements it; tests substitute fakes.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, query string) error
	Fill(ctx context.Context, query, value string) error
	ExtractText(ctx context.Context, query string) (string, error)
	CaptureSnapshot(ctx context.Context) (*browser.Snapshot, error)
}
