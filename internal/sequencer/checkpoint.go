// internal/sequencer/checkpoint.go
package sequencer

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// sequenceIDPromptPrefix is how much of the prompt feeds the sequence ID.
// Two checkpoints of "the same" instruction must collide, so the derivation
// is fixed: MD5 of the first 200 characters, truncated to 16 hex digits.
const sequenceIDPromptPrefix = 200

// SequenceID derives the stable checkpoint identity for a prompt.
func SequenceID(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > sequenceIDPromptPrefix {
		runes = runes[:sequenceIDPromptPrefix]
	}
	sum := md5.Sum([]byte(string(runes)))
	return hex.EncodeToString(sum[:])[:16]
}

// Checkpoint is a serializable snapshot of sequence progress. The JSON key
// set is a compatibility surface: checkpoint files written by one build must
// load in the next, so keys are never renamed.
type Checkpoint struct {
	SequenceID       string            `json:"sequence_id"`
	OriginalPrompt   string            `json:"original_prompt"`
	CurrentIndex     int               `json:"current_index"`
	TotalGoals       int               `json:"total_goals"`
	PageURL          string            `json:"page_url"`
	PageTitle        string            `json:"page_title"`
	PageSnapshot     string            `json:"page_snapshot"`
	PageVariables    map[string]any    `json:"page_variables"`
	CompletedResults map[string]string `json:"completed_results"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CheckpointCount  int               `json:"checkpoint_count"`
}

// CheckpointFromSequence snapshots the live sequence: cursor, page state and
// the results of every COMPLETED goal that has one. Result truncation has
// already bounded each entry, so even 300-goal snapshots stay small.
func CheckpointFromSequence(seq *GoalSequence) *Checkpoint {
	completed := make(map[string]string)
	for _, g := range seq.Goals {
		if g.Status == StatusCompleted && g.Result() != "" {
			completed[strconv.Itoa(g.Index)] = g.Result()
		}
	}

	now := time.Now().UTC()
	return &Checkpoint{
		SequenceID:       SequenceID(seq.OriginalPrompt),
		OriginalPrompt:   seq.OriginalPrompt,
		CurrentIndex:     seq.CurrentIndex(),
		TotalGoals:       len(seq.Goals),
		PageURL:          seq.PageState.URL,
		PageTitle:        seq.PageState.Title,
		PageSnapshot:     seq.PageState.LastResult,
		PageVariables:    seq.PageState.Variables(),
		CompletedResults: completed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// RestoreToSequence rehydrates a freshly parsed sequence from the snapshot.
// Idempotent: restoring twice leaves the sequence in the same state. The
// page state object is mutated in place, never replaced, because the
// sequence owns it.
func (cp *Checkpoint) RestoreToSequence(seq *GoalSequence) {
	ps := seq.PageState
	ps.URL = cp.PageURL
	ps.Title = cp.PageTitle
	ps.LastResult = truncateHard(cp.PageSnapshot, MaxLastResultLength)

	// JSON objects lose insertion order; sorted keys keep the restored
	// variable order deterministic across runs.
	names := make([]string, 0, len(cp.PageVariables))
	for name := range cp.PageVariables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ps.SetVariable(name, cp.PageVariables[name])
	}

	idx := cp.CurrentIndex
	if idx > len(seq.Goals) {
		idx = len(seq.Goals)
	}
	seq.currentIndex = idx

	for _, g := range seq.Goals {
		if g.Index >= idx {
			break
		}
		g.Status = StatusCompleted
		if result, ok := cp.CompletedResults[strconv.Itoa(g.Index)]; ok {
			g.SetResult(result)
		}
	}
	seq.invalidateCache()
}

// RefreshFromSequence re-snapshots the mutable progress fields from the
// sequence while preserving the checkpoint's identity fields. CreatedAt and
// CheckpointCount survive refreshes: the count is a monotonic diagnostic
// that must grow by exactly one per Save for the lifetime of the file.
func (cp *Checkpoint) RefreshFromSequence(seq *GoalSequence) {
	next := CheckpointFromSequence(seq)
	cp.CurrentIndex = next.CurrentIndex
	cp.TotalGoals = next.TotalGoals
	cp.PageURL = next.PageURL
	cp.PageTitle = next.PageTitle
	cp.PageSnapshot = next.PageSnapshot
	cp.PageVariables = next.PageVariables
	cp.CompletedResults = next.CompletedResults
}

// CheckpointStore reads and writes one JSON file per sequence under a fixed
// directory. Checkpointing is best-effort resiliency: every failure here
// degrades to "no checkpoint available" at the call site, never a crash.
type CheckpointStore struct {
	dir string
	log *zap.Logger
}

// NewCheckpointStore ensures the directory exists.
func NewCheckpointStore(dir string, logger *zap.Logger) (*CheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir %q: %w", dir, err)
	}
	return &CheckpointStore{dir: dir, log: logger.Named("checkpoints")}, nil
}

// Dir returns the backing directory.
func (cs *CheckpointStore) Dir() string { return cs.dir }

func (cs *CheckpointStore) path(sequenceID string) string {
	return filepath.Join(cs.dir, sequenceID+".json")
}

// Save writes the checkpoint, bumping UpdatedAt and the monotonic
// CheckpointCount diagnostic on every call.
func (cs *CheckpointStore) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	cp.CheckpointCount++

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint %s: %w", cp.SequenceID, err)
	}

	// Write-then-rename so a crash mid-write never corrupts the previous
	// checkpoint.
	tmp := cs.path(cp.SequenceID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", cp.SequenceID, err)
	}
	if err := os.Rename(tmp, cs.path(cp.SequenceID)); err != nil {
		return fmt.Errorf("failed to finalize checkpoint %s: %w", cp.SequenceID, err)
	}

	cs.log.Debug("Checkpoint saved",
		zap.String("sequence_id", cp.SequenceID),
		zap.Int("current_index", cp.CurrentIndex),
		zap.Int("checkpoint_count", cp.CheckpointCount),
	)
	return nil
}

// Load reads a checkpoint by sequence ID. A missing file is an error the
// caller is expected to treat as "start fresh".
func (cs *CheckpointStore) Load(sequenceID string) (*Checkpoint, error) {
	data, err := os.ReadFile(cs.path(sequenceID))
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", sequenceID, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", sequenceID, err)
	}
	return &cp, nil
}

// Exists reports whether a checkpoint file is present for the sequence.
func (cs *CheckpointStore) Exists(sequenceID string) bool {
	_, err := os.Stat(cs.path(sequenceID))
	return err == nil
}

// Delete removes the checkpoint file. Called on full successful completion;
// a file that is already gone is not an error.
func (cs *CheckpointStore) Delete(sequenceID string) error {
	err := os.Remove(cs.path(sequenceID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint %s: %w", sequenceID, err)
	}
	return nil
}

// List returns every checkpoint in the directory, skipping unreadable files.
func (cs *CheckpointStore) List() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(cs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint dir: %w", err)
	}
	var out []*Checkpoint
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		cp, err := cs.Load(e.Name()[:len(e.Name())-len(".json")])
		if err != nil {
			cs.log.Warn("Skipping unreadable checkpoint file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Sweep deletes checkpoints whose UpdatedAt predates the cutoff and returns
// how many were removed. Orphans accumulate when runs are abandoned, so the
// sweep runs on a schedule, not on demand only.
func (cs *CheckpointStore) Sweep(maxAge time.Duration) (int, error) {
	checkpoints, err := cs.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for _, cp := range checkpoints {
		if cp.UpdatedAt.Before(cutoff) {
			if err := cs.Delete(cp.SequenceID); err != nil {
				cs.log.Warn("Failed to sweep checkpoint", zap.String("sequence_id", cp.SequenceID), zap.Error(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		cs.log.Info("Swept old checkpoints", zap.Int("removed", removed), zap.Duration("max_age", maxAge))
	}
	return removed, nil
}
