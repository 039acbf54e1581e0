// Package websocket is the per-session WebSocket surface: it registers
// connections with a session broadcaster, relays chat input into the
// trigger pipeline, and fans session events out to every connection.
package websocket

import "encoding/json"

// Inbound message types.
const (
	TypeHeartbeat      = "heartbeat"
	TypeSyncRequest    = "sync_request"
	TypeHistoryRequest = "history_request"
)

// Outbound message types.
const (
	TypeSyncResponse    = "sync_response"
	TypeHistoryResponse = "history_response"
	TypePendingResult   = "pending_result"
	TypeError           = "error"
)

// Inbound is a client frame. A frame with a non-empty Message and no Type
// is user chat input.
type Inbound struct {
	Type          string `json:"type,omitempty"`
	Message       string `json:"message,omitempty"`
	LastMessageID string `json:"lastMessageId,omitempty"`
	Timestamp     int64  `json:"timestamp,omitempty"` // epoch milliseconds
	Limit         int    `json:"limit,omitempty"`
}

// Outbound is a server frame.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func encode(typ string, data any) []byte {
	frame, err := json.Marshal(Outbound{Type: typ, Data: data})
	if err != nil {
		return []byte(`{"type":"error","data":"encode failure"}`)
	}
	return frame
}
