package notifications

type Webhook struct {
	URL      string
	Username string
	Password string
	Verify   bool
}

// InstancePassFailure is the alert payload sent when one instance's
// pipeline reported errors during a pass.
type InstancePassFailure struct {
	Service    string   `json:"service"`
	RunID      string   `json:"run_id"`
	InstanceID string   `json:"instance_id"`
	Region     string   `json:"region"`
	SnapshotID string   `json:"snapshot_id,omitempty"`
	Errors     []string `json:"errors"`
}
