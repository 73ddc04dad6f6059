// Package ledger implements the append-only, logically-clocked execution
// ledger. One ledger exists per identity; persistence is delegated to the
// caller — this package only defines the clock and merge/ordering semantics.
package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillerhq/tiller/internal/model"
)

// clockPrefix marks machine-generated logical timestamps.
const clockPrefix = "lc:"

// EncodeClock renders a logical clock value as a sortable timestamp string.
func EncodeClock(clock uint64) string {
	return fmt.Sprintf("%s%012d", clockPrefix, clock)
}

// ParseClock parses a logical timestamp. Returns (0, false) for anything
// that is not in the lc:%012d form — such entries sort lexicographically.
func ParseClock(ts string) (uint64, bool) {
	if !strings.HasPrefix(ts, clockPrefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(ts[len(clockPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Record is one immutable ledger entry.
type Record struct {
	RecordID      string             `json:"record_id"`
	Identity      string             `json:"identity"`
	Timestamp     string             `json:"ts"` // logical clock or caller-supplied
	ActorRole     model.ApproverRole `json:"actor_role"`
	ActionClass   string             `json:"action_class"`
	HumanApproval bool               `json:"human_approval"`
	Rationale     string             `json:"rationale,omitempty"`
	RecordedAt    time.Time          `json:"recorded_at"`
}

// State is the mutable clock state for one identity. Update operations
// return a new State; the caller persists the returned value.
type State struct {
	Identity string `json:"identity"`
	Clock    uint64 `json:"clock"`
}

// NewState creates the clock state for an identity.
func NewState(identity string) State {
	return State{Identity: identity}
}

// AdvanceClock increments the monotonic counter and returns the new state
// plus the claimed clock value.
func AdvanceClock(s State) (State, uint64) {
	s.Clock++
	return s, s.Clock
}

// Input is the caller-facing shape for appending a record.
type Input struct {
	Timestamp     string // optional caller-supplied logical timestamp
	ActorRole     model.ApproverRole
	ActionClass   string
	HumanApproval bool
	Rationale     string
}

// Append appends a record for the state's identity and returns the new
// state and the record. If the input carries a logical timestamp that is
// strictly newer than the current clock, it is adopted; otherwise the clock
// auto-increments. A missing identity or actor role is a programmer error
// and panics — there is no meaningful way to continue from it.
func Append(s State, in Input) (State, Record) {
	if s.Identity == "" {
		panic("ledger: append without identity")
	}
	if in.ActorRole == "" {
		panic("ledger: append without actor role")
	}

	if v, ok := ParseClock(in.Timestamp); ok && v > s.Clock {
		s.Clock = v
	} else {
		s, _ = AdvanceClock(s)
	}

	rec := Record{
		RecordID:      uuid.NewString(),
		Identity:      s.Identity,
		Timestamp:     EncodeClock(s.Clock),
		ActorRole:     in.ActorRole,
		ActionClass:   in.ActionClass,
		HumanApproval: in.HumanApproval,
		Rationale:     in.Rationale,
		RecordedAt:    time.Now().UTC(),
	}
	return s, rec
}

// Sorted returns a copy of records ordered by logical clock. When a
// timestamp does not parse as a logical clock value the comparison falls
// back to lexicographic string order, so machine-generated and externally
// timestamped entries merge deterministically.
func Sorted(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i].Timestamp, out[j].Timestamp)
	})
	return out
}

// Less orders two ledger timestamps. Both logical → numeric; otherwise
// lexicographic.
func Less(a, b string) bool {
	av, aok := ParseClock(a)
	bv, bok := ParseClock(b)
	if aok && bok {
		return av < bv
	}
	return a < b
}
