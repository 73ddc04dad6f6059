package certify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders a human-readable certification report.
func FormatText(r *CertResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Certification: %s v%s\n", r.Suite, r.Version)
	fmt.Fprintf(&b, "Policy: %s\n\n", r.PolicyHash)

	for _, cat := range r.Categories {
		fmt.Fprintf(&b, "%s (%d/%d)\n", cat.Name, cat.Passed, cat.Total)
		for _, c := range cat.Cases {
			mark := "PASS"
			if !c.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(&b, "  [%s] %s\n", mark, c.Desc)
			if !c.Passed {
				fmt.Fprintf(&b, "         expected %s, got %s", c.Expected, c.Actual)
				if c.Reason != "" {
					fmt.Fprintf(&b, " (%s)", c.Reason)
				}
				b.WriteByte('\n')
			}
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "Result: %d/%d passed (%.1f%%)\n", r.Passed, r.Total, r.PassRate()*100)
	return b.String()
}

// FormatJSON renders the result as indented JSON.
func FormatJSON(r *CertResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode certification result: %w", err)
	}
	return string(data), nil
}
