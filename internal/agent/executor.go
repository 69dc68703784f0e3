// internal/agent/executor.go
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/llmclient"
	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
)

// snapshotTextLimit bounds how much page text is put into a result string.
// Results feed the page-state heuristics, which only look at the head anyway.
const snapshotTextLimit = 1500

const commandSystemPrompt = `You translate one browser automation goal into exactly one JSON command.
Respond with a single JSON object and nothing else, in this shape:
{"action":"NAVIGATE|CLICK|FILL|EXTRACT|SNAPSHOT","target":"<url or css selector>","value":"<text for FILL>"}
Rules:
- NAVIGATE target is a URL.
- CLICK, FILL and EXTRACT targets are CSS selectors that exist on the current page.
- Use SNAPSHOT when the goal only asks to read or verify the page.`

// BrowserExecutor turns goals into commands and runs them against a browser
// session. Deterministic classification is tried first; only unclaimed goals
// cost an LLM round trip.
type BrowserExecutor struct {
	session    BrowserSession
	llm        llmclient.LLMClient
	classifier *Classifier
	logger     *zap.Logger
}

// NewBrowserExecutor wires the executor.
func NewBrowserExecutor(session BrowserSession, llm llmclient.LLMClient, logger *zap.Logger) *BrowserExecutor {
	return &BrowserExecutor{
		session:    session,
		llm:        llm,
		classifier: NewClassifier(),
		logger:     logger.Named("executor"),
	}
}

// Execute implements Executor.
func (e *BrowserExecutor) Execute(ctx context.Context, goal *sequencer.Goal, ps *sequencer.PageState) Outcome {
	cmd, claimed := e.classifier.Classify(goal.Description)
	if claimed {
		e.logger.Debug("Goal classified deterministically",
			zap.Int("goal_index", goal.Index),
			zap.String("action", string(cmd.Action)),
		)
	} else {
		var err error
		cmd, err = e.planWithLLM(ctx, goal, ps)
		if err != nil {
			return Outcome{ErrText: fmt.Sprintf("could not plan goal: %v", err)}
		}
		e.logger.Debug("Goal planned by LLM",
			zap.Int("goal_index", goal.Index),
			zap.String("action", string(cmd.Action)),
		)
	}

	result, err := e.runCommand(ctx, cmd)
	if err != nil {
		return Outcome{ErrText: err.Error()}
	}
	return Outcome{Success: true, Result: result}
}

// planWithLLM asks the model for a command, giving it the goal plus the
// current page context.
func (e *BrowserExecutor) planWithLLM(ctx context.Context, goal *sequencer.Goal, ps *sequencer.PageState) (Command, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", goal.Description)
	if ps.URL != "" {
		fmt.Fprintf(&sb, "Current URL: %s\n", ps.URL)
	}
	if ps.Title != "" {
		fmt.Fprintf(&sb, "Current page title: %s\n", ps.Title)
	}
	if ps.LastResult != "" {
		fmt.Fprintf(&sb, "Last observed page text: %s\n", ps.LastResult)
	}

	raw, err := e.llm.Generate(ctx, llmclient.GenerationRequest{
		SystemPrompt:    commandSystemPrompt,
		UserPrompt:      sb.String(),
		ForceJSONFormat: true,
	})
	if err != nil {
		if errors.Is(err, llmclient.ErrDisabled) {
			return Command{}, fmt.Errorf("goal needs an LLM to plan and none is configured: %q", goal.Description)
		}
		return Command{}, err
	}

	var cmd Command
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &cmd); err != nil {
		return Command{}, fmt.Errorf("model returned unparseable command %q: %w", raw, err)
	}
	if err := validateCommand(cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// runCommand performs the browser action and returns the observed result
// text. Every successful command ends with a snapshot so the page state has
// fresh material for conditionals.
func (e *BrowserExecutor) runCommand(ctx context.Context, cmd Command) (string, error) {
	switch cmd.Action {
	case ActionNavigate:
		if err := e.session.Navigate(ctx, cmd.Target); err != nil {
			return "", err
		}
	case ActionClick:
		if err := e.session.Click(ctx, cmd.Target); err != nil {
			return "", err
		}
	case ActionFill:
		if err := e.session.Fill(ctx, cmd.Target, cmd.Value); err != nil {
			return "", err
		}
	case ActionExtract:
		text, err := e.session.ExtractText(ctx, cmd.Target)
		if err != nil {
			return "", err
		}
		return text, nil
	case ActionSnapshot:
		// Snapshot happens below for every action.
	default:
		return "", fmt.Errorf("unknown command action %q", cmd.Action)
	}

	snap, err := e.session.CaptureSnapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("action succeeded but snapshot failed: %w", err)
	}
	return renderSnapshot(snap), nil
}

// renderSnapshot formats a snapshot into the result text consumed by the
// page-state extractors, so the URL and quoted title must stay recognizable.
func renderSnapshot(snap *browser.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Now at %s", snap.URL)
	if snap.Title != "" {
		fmt.Fprintf(&sb, " with title: %q", snap.Title)
	}
	if snap.VisibleText != "" {
		text := snap.VisibleText
		if runes := []rune(text); len(runes) > snapshotTextLimit {
			text = string(runes[:snapshotTextLimit])
		}
		sb.WriteString(". Page text: ")
		sb.WriteString(text)
	}
	return sb.String()
}

func validateCommand(cmd Command) error {
	switch cmd.Action {
	case ActionSnapshot:
		return nil
	case ActionNavigate, ActionClick, ActionExtract:
		if cmd.Target == "" {
			return fmt.Errorf("%s command is missing a target", cmd.Action)
		}
		return nil
	case ActionFill:
		if cmd.Target == "" {
			return fmt.Errorf("FILL command is missing a target")
		}
		return nil
	default:
		return fmt.Errorf("unknown command action %q", cmd.Action)
	}
}

// extractJSONObject tolerates models that wrap the JSON in code fences or
// prose by cutting out the outermost object.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
