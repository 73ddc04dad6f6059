package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tillerhq/tiller/internal/model"
)

// ReplayFilter holds filtering criteria for trail replay.
type ReplayFilter struct {
	Identity string
	From     time.Time // zero value = no lower bound
	To       time.Time // zero value = no upper bound
}

// ReplaySummary holds decision counts for a replayed identity.
type ReplaySummary struct {
	Total          int    `json:"total"`
	AllowCount     int    `json:"allow_count"`
	BlockCount     int    `json:"block_count"`
	HoldCount      int    `json:"hold_count"`
	ApprovalCount  int    `json:"approval_count"`
	DeferCount     int    `json:"defer_count"`
	ReviewCount    int    `json:"review_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and summary for one identity.
type ReplayResult struct {
	Identity string        `json:"identity"`
	Entries  []Entry       `json:"entries"`
	Summary  ReplaySummary `json:"summary"`
}

// Replay reads the decision trail and returns entries matching the filter.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decision trail: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{Identity: filter.Identity}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if filter.Identity != "" && entry.Identity != filter.Identity {
			continue
		}

		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue // skip unparseable timestamps
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read decision trail: %w", err)
	}

	return result, nil
}

func updateSummary(s *ReplaySummary, entry Entry) {
	s.Total++

	switch model.Status(entry.Status) {
	case model.StatusAllow:
		s.AllowCount++
	case model.StatusBlock:
		s.BlockCount++
	case model.StatusSafeHold:
		s.HoldCount++
	case model.StatusRequireApproval:
		s.ApprovalCount++
	case model.StatusDefer:
		s.DeferCount++
	}

	if entry.Review {
		s.ReviewCount++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
