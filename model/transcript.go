package model

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// SystemWorker attributes entries and events produced by the orchestrator itself.
const SystemWorker = "system"

// CancelledMarker prefixes the transcript entry appended when an approval
// checkpoint cancels a run.
const CancelledMarker = "[cancelled]"

// Entry is one attributed step output in a transcript.
type Entry struct {
	Step    int           `json:"step"`
	Worker  string        `json:"worker"`
	Output  string        `json:"output"`
	Kind    OutcomeKind   `json:"kind,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Transcript is the ordered, append-only record of step outputs for one run.
// Entries are never revised once appended.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds an entry at the end of the transcript.
func (t *Transcript) Append(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
}

// AppendOutcome appends a worker outcome under the given step index.
func (t *Transcript) AppendOutcome(step int, outcome *StepOutcome) {
	t.Append(Entry{
		Step:    step,
		Worker:  outcome.Worker,
		Output:  outcome.Output,
		Kind:    outcome.Kind,
		Elapsed: outcome.Elapsed,
	})
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a copy of all entries in append order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ret := make([]Entry, len(t.entries))
	copy(ret, t.entries)
	return ret
}

// Output returns the most recent output attributed to worker.
func (t *Transcript) Output(worker string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Worker == worker {
			return t.entries[i].Output, true
		}
	}
	return "", false
}

// Cancelled reports whether a cancellation marker was appended.
func (t *Transcript) Cancelled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, entry := range t.entries {
		if entry.Worker == SystemWorker && strings.HasPrefix(entry.Output, CancelledMarker) {
			return true
		}
	}
	return false
}

// Format renders entries as labelled sections in append order.
func (t *Transcript) Format() string {
	return FormatEntries(t.Entries())
}

// FormatEntries renders entries as "## Step N: Worker" sections.
func FormatEntries(entries []Entry) string {
	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if entry.Worker == SystemWorker {
			b.WriteString(entry.Output)
			continue
		}
		fmt.Fprintf(&b, "## Step %d: %s", entry.Step, entry.Worker)
		if entry.Kind.Degraded() {
			fmt.Fprintf(&b, " (%s)", entry.Kind)
		}
		b.WriteString("\n")
		b.WriteString(entry.Output)
	}
	return b.String()
}
