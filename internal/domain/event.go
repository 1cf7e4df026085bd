package domain

import "time"

// EventKind classifies entries in the engine's append-only event log.
type EventKind string

const (
	EventInfo     EventKind = "INFO"
	EventPending  EventKind = "PENDING"
	EventFrontrun EventKind = "FRONTRUN"
	EventSuccess  EventKind = "SUCCESS"
	EventError    EventKind = "ERROR"
	EventRetry    EventKind = "RETRY"
)

// LogEvent is one entry in the event stream consumed by the presentation
// layer. Fields past Message are optional and set only when they apply.
type LogEvent struct {
	Kind    EventKind
	Message string
	TxHash  string
	Amount  float64
	Outcome Outcome
	TokenID string
	Side    Side
	At      time.Time
}

// ConnectionState is the engine's single connection indicator.
type ConnectionState string

const (
	StateStopped    ConnectionState = "STOPPED"
	StateConnecting ConnectionState = "CONNECTING"
	StateConnected  ConnectionState = "CONNECTED"
	StateError      ConnectionState = "ERROR"
)
