// File: internal/agent/executor_test.go
package agent_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/llmclient"
	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
)

// fakeSession records the calls made against it and plays back canned
// responses.
type fakeSession struct {
	calls    []string
	snapshot browser.Snapshot
	failWith error
	text     string
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.calls = append(f.calls, "navigate:"+url)
	return f.failWith
}

func (f *fakeSession) Click(_ context.Context, query string) error {
	f.calls = append(f.calls, "click:"+query)
	return f.failWith
}

func (f *fakeSession) Fill(_ context.Context, query, value string) error {
	f.calls = append(f.calls, fmt.Sprintf("fill:%s=%s", query, value))
	return f.failWith
}

func (f *fakeSession) ExtractText(_ context.Context, query string) (string, error) {
	f.calls = append(f.calls, "extract:"+query)
	return f.text, f.failWith
}

func (f *fakeSession) CaptureSnapshot(context.Context) (*browser.Snapshot, error) {
	f.calls = append(f.calls, "snapshot")
	snap := f.snapshot
	return &snap, nil
}

// fakeLLM returns a fixed response body.
type fakeLLM struct {
	response string
	err      error
	prompts  []llmclient.GenerationRequest
}

func (f *fakeLLM) Generate(_ context.Context, req llmclient.GenerationRequest) (string, error) {
	f.prompts = append(f.prompts, req)
	return f.response, f.err
}

// -- Test Cases --

func TestExecute_ClassifiedNavigation(t *testing.T) {
	session := &fakeSession{
		snapshot: browser.Snapshot{
			URL:         "https://gmail.com/",
			Title:       "Gmail",
			VisibleText: "Inbox (3)",
		},
	}
	llm := &fakeLLM{err: errors.New("must not be consulted")}
	ex := agent.NewBrowserExecutor(session, llm, zap.NewNop())

	goal := sequencer.NewGoal("go to gmail.com", 0, sequencer.TypeAction)
	outcome := ex.Execute(context.Background(), goal, sequencer.NewPageState())

	require.True(t, outcome.Success, outcome.ErrText)
	assert.Equal(t, []string{"navigate:gmail.com", "snapshot"}, session.calls)
	assert.Contains(t, outcome.Result, "https://gmail.com/")
	assert.Contains(t, outcome.Result, `title: "Gmail"`)
	assert.Contains(t, outcome.Result, "Inbox (3)")
	assert.Empty(t, llm.prompts, "classified goals must not reach the LLM")
}

func TestExecute_ResultFeedsPageStateExtractors(t *testing.T) {
	session := &fakeSession{
		snapshot: browser.Snapshot{URL: "https://example.com/inbox", Title: "Inbox - Mail"},
	}
	ex := agent.NewBrowserExecutor(session, llmclient.Disabled{}, zap.NewNop())

	goal := sequencer.NewGoal("go to example.com", 0, sequencer.TypeAction)
	outcome := ex.Execute(context.Background(), goal, sequencer.NewPageState())
	require.True(t, outcome.Success)

	ps := sequencer.NewPageState()
	ps.Update(goal.Description, outcome.Result)
	assert.Equal(t, "https://example.com/inbox", ps.URL)
	assert.Equal(t, "Inbox - Mail", ps.Title)
}

func TestExecute_LLMFallback(t *testing.T) {
	session := &fakeSession{
		snapshot: browser.Snapshot{URL: "https://example.com/", Title: "Example"},
	}
	llm := &fakeLLM{response: `{"action":"CLICK","target":"button.login"}`}
	ex := agent.NewBrowserExecutor(session, llm, zap.NewNop())

	ps := sequencer.NewPageState()
	ps.URL = "https://example.com/"
	ps.LastResult = "A page with a login button"

	goal := sequencer.NewGoal("click the login button", 0, sequencer.TypeAction)
	outcome := ex.Execute(context.Background(), goal, ps)

	require.True(t, outcome.Success, outcome.ErrText)
	assert.Equal(t, []string{"click:button.login", "snapshot"}, session.calls)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0].UserPrompt, "click the login button")
	assert.Contains(t, llm.prompts[0].UserPrompt, "https://example.com/")
	assert.True(t, llm.prompts[0].ForceJSONFormat)
}

func TestExecute_LLMFencedJSONTolerated(t *testing.T) {
	session := &fakeSession{snapshot: browser.Snapshot{URL: "https://x.test/"}}
	llm := &fakeLLM{response: "```json\n{\"action\":\"SNAPSHOT\"}\n```"}
	ex := agent.NewBrowserExecutor(session, llm, zap.NewNop())

	goal := sequencer.NewGoal("summarize what you see", 0, sequencer.TypeAction)
	outcome := ex.Execute(context.Background(), goal, sequencer.NewPageState())

	assert.True(t, outcome.Success, outcome.ErrText)
	assert.Equal(t, []string{"snapshot"}, session.calls)
}

func TestExecute_LLMGarbageIsFailure(t *testing.T) {
	llm := &fakeLLM{response: "I cannot help with that."}
	ex := agent.NewBrowserExecutor(&fakeSession{}, llm, zap.NewNop())

	goal := sequencer.NewGoal("do something vague", 0, sequencer.TypeAction)
	outcome := ex.Execute(context.Background(), goal, sequencer.NewPageState())

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrText, "could not plan goal")
}

func TestExecute_DisabledLLMUnclaimedGoal(t *testing.T) {
	ex := agent.NewBrowserExecutor(&fakeSession{}, llmclient.Disabled{}, zap.NewNop())

	goal := sequencer.NewGoal("reply to the newest email", 0, sequencer.TypeAction)
	outcome := ex.Execute(context.Background(), goal, sequencer.NewPageState())

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrText, "none is configured")
}

func TestExecute_BrowserFailure(t *testing.T) {
	session := &fakeSession{failWith: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	ex := agent.NewBrowserExecutor(session, llmclient.Disabled{}, zap.NewNop())

	goal := sequencer.NewGoal("go to nosuchsite.example", 0, sequencer.TypeAction)
	outcome := ex.Execute(context.Background(), goal, sequencer.NewPageState())

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrText, "ERR_NAME_NOT_RESOLVED")
}

func TestExecute_ExtractReturnsElementText(t *testing.T) {
	session := &fakeSession{text: "Article body text"}
	ex := agent.NewBrowserExecutor(session, llmclient.Disabled{}, zap.NewNop())

	goal := sequencer.NewGoal("extract .article-body", 0, sequencer.TypeExtraction)
	outcome := ex.Execute(context.Background(), goal, sequencer.NewPageState())

	require.True(t, outcome.Success)
	assert.Equal(t, "Article body text", outcome.Result)
	assert.Equal(t, []string{"extract:.article-body"}, session.calls, "extract skips the trailing snapshot")
}
