// internal/results/summary.go
package results

import (
	"fmt"
	"io"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GoalOutcome is the final record of one goal.
type GoalOutcome struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Retries     int    `json:"retries"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RunSummary is the exportable record of one sequence run.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	SequenceID string        `json:"sequence_id"`
	Prompt     string        `json:"prompt"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
	TotalGoals int           `json:"total_goals"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	FinalURL   string        `json:"final_url,omitempty"`
	Goals      []GoalOutcome `json:"goals"`
}

// Summarize collapses a finished sequence into a RunSummary.
func Summarize(runID string, seq *sequencer.GoalSequence, startedAt, finishedAt time.Time) *RunSummary {
	s := &RunSummary{
		RunID:      runID,
		SequenceID: sequencer.SequenceID(seq.OriginalPrompt),
		Prompt:     seq.OriginalPrompt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		TotalGoals: len(seq.Goals),
		FinalURL:   seq.PageState.URL,
		Goals:      make([]GoalOutcome, 0, len(seq.Goals)),
	}

	for _, g := range seq.Goals {
		switch g.Status {
		case sequencer.StatusCompleted:
			s.Completed++
		case sequencer.StatusFailed:
			s.Failed++
		case sequencer.StatusSkipped:
			s.Skipped++
		}
		s.Goals = append(s.Goals, GoalOutcome{
			Index:       g.Index,
			Description: g.Description,
			Type:        string(g.Type),
			Status:      string(g.Status),
			Retries:     g.Retries,
			Result:      g.Result(),
			Error:       g.ErrorText(),
		})
	}
	return s
}

// Succeeded reports whether the run finished without a failed goal.
func (s *RunSummary) Succeeded() bool {
	return s.Failed == 0 && s.Completed > 0
}

// Render produces the human-readable run report printed after a run.
func (s *RunSummary) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run %s (%s)\n", s.RunID, s.SequenceID)
	fmt.Fprintf(&sb, "Prompt: %s\n", s.Prompt)
	fmt.Fprintf(&sb, "Goals: %d total, %d completed, %d failed, %d skipped\n",
		s.TotalGoals, s.Completed, s.Failed, s.Skipped)
	fmt.Fprintf(&sb, "Duration: %s\n", s.Duration.Round(time.Millisecond))
	if s.FinalURL != "" {
		fmt.Fprintf(&sb, "Final URL: %s\n", s.FinalURL)
	}
	sb.WriteString("\n")

	for _, g := range s.Goals {
		fmt.Fprintf(&sb, "  [%d] %-9s %s\n", g.Index, g.Status, g.Description)
		if g.Retries > 0 {
			fmt.Fprintf(&sb, "      retries: %d\n", g.Retries)
		}
		if g.Result != "" {
			fmt.Fprintf(&sb, "      result: %s\n", firstLine(g.Result))
		}
		if g.Error != "" {
			fmt.Fprintf(&sb, "      error: %s\n", firstLine(g.Error))
		}
	}
	return sb.String()
}

// WriteJSON emits the summary as indented JSON.
func (s *RunSummary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
