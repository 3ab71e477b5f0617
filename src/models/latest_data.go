package models

// -----------------------------------------------------------------------------
// Live Update Structure (websocket push)
// -----------------------------------------------------------------------------

type MLiveUpdate struct {
	Type      string             `json:"type"` // "INITIAL", "UPDATE" or "ERROR"
	Node      string             `json:"node"`
	Dashboard *MDashboardPayload `json:"dashboard,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command   string `json:"command"` // "subscribe" or "unsubscribe"
	Node      string `json:"node"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Preset    string `json:"preset"`
}
