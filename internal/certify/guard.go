package certify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Baseline pins the certification outcome of the active policy. A candidate
// whose run fails any case the baseline passed, or whose pass rate drops,
// is a regression and must not go live.
type Baseline struct {
	Suite      string   `json:"suite"`
	Version    string   `json:"version"`
	PolicyHash string   `json:"policy_hash"`
	PassRate   float64  `json:"pass_rate"`
	Passing    []string `json:"passing"`
}

// NewBaseline extracts the baseline from a certification result.
func NewBaseline(r *CertResult) Baseline {
	b := Baseline{
		Suite:      r.Suite,
		Version:    r.Version,
		PolicyHash: r.PolicyHash,
		PassRate:   r.PassRate(),
	}
	for _, cat := range r.Categories {
		for _, c := range cat.Cases {
			if c.Passed {
				b.Passing = append(b.Passing, caseKey(cat.Name, c.Desc))
			}
		}
	}
	sort.Strings(b.Passing)
	return b
}

// LoadBaseline reads a baseline from disk.
func LoadBaseline(path string) (Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Baseline{}, fmt.Errorf("read baseline: %w", err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, fmt.Errorf("parse baseline %q: %w", path, err)
	}
	return b, nil
}

// SaveBaseline writes a baseline to disk, creating parent directories.
func SaveBaseline(path string, b Baseline) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

// CheckRegression compares a candidate run against the baseline. It returns
// an error naming the first regressed cases, or nil when the candidate is
// at least as strong as the baseline.
func CheckRegression(b Baseline, r *CertResult) error {
	actual := make(map[string]bool)
	for _, cat := range r.Categories {
		for _, c := range cat.Cases {
			actual[caseKey(cat.Name, c.Desc)] = c.Passed
		}
	}

	var regressed []string
	for _, key := range b.Passing {
		passed, present := actual[key]
		if !present || !passed {
			regressed = append(regressed, key)
		}
	}
	if len(regressed) > 0 {
		return fmt.Errorf("certification regression: %d case(s) no longer pass, first: %s", len(regressed), regressed[0])
	}

	if rate := r.PassRate(); rate < b.PassRate {
		return fmt.Errorf("certification pass rate dropped: %.3f -> %.3f", b.PassRate, rate)
	}
	return nil
}

func caseKey(category, desc string) string {
	return category + "/" + desc
}
