package audit

// Entry is one line in the hash-chained JSONL decision trail.
// All fields are scalars or string slices (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp  string   `json:"ts"`
	Identity   string   `json:"identity"`
	AgentID    string   `json:"agent_id"`
	ActionType string   `json:"action_type"`
	ChargeID   string   `json:"charge_id,omitempty"`
	Status     string   `json:"status"`
	Reasons    []string `json:"reasons,omitempty"`
	Review     bool     `json:"requires_human_review,omitempty"`
	PolicyHash string   `json:"policy_hash"`
	PrevHash   string   `json:"prev_hash"`
}
