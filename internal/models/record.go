// Package models contains domain types for the VRChat Log Analyzer.
package models

import "time"

// RecordKind classifies a tokenized log line.
type RecordKind string

const (
	RecordInstanceEnter RecordKind = "instance_enter"
	RecordRoomName      RecordKind = "room_name"
	RecordUserJoin      RecordKind = "user_join"
	// RecordUserJoinComplete is the client's second join line for the
	// same player. It confirms an open session and stands in for a
	// missing join line, but never opens a second session on its own.
	RecordUserJoinComplete RecordKind = "user_join_complete"
	RecordUserLeave        RecordKind = "user_leave"
	RecordInstanceExit     RecordKind = "instance_exit"
	RecordOther            RecordKind = "other"
)

// LogRecord is one recognized line from a VRChat client log.
// Records are immutable once produced by the tokenizer.
type LogRecord struct {
	Timestamp  time.Time  `json:"timestamp"`
	Kind       RecordKind `json:"kind"`
	InstanceID string     `json:"instanceId,omitempty"` // world id for enter records
	RoomName   string     `json:"roomName,omitempty"`
	Username   string     `json:"username,omitempty"`
	UserID     string     `json:"userId,omitempty"` // usr_… when the line carries one
	Raw        string     `json:"-"`
	Line       int        `json:"line,omitempty"`
}

// ParseError describes a line the tokenizer recognized but could not
// fully decode. Parsing always continues past these.
type ParseError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}
