package protocol

// BridgeRequest asks the orchestrator to run one whitelisted operation.
type BridgeRequest struct {
	Attr   string         `json:"attr"`
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// BridgeError is the structured failure response for a bridge request.
type BridgeError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
