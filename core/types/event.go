package types

// Event represents a typed event emitted during a committed call. Topics hold
// the indexed entity ids and principals; Attributes carry the payload.
type Event struct {
	Type       string            `json:"type"`
	Topics     []string          `json:"topics,omitempty"`
	Attributes map[string]string `json:"attributes"`
}
