package models

import "time"

// Window is the caller-specified [start, end) range used to scope a
// report. End must not precede Start.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the window bounds are set and ordered.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && !w.End.Before(w.Start)
}

// UserStat holds derived per-user statistics for a report scope.
// PlaytimeMs is the window-clipped total; FirstJoin and LastLeave keep
// the original unclipped timestamps for display.
type UserStat struct {
	Username   string     `json:"username"`
	UserID     string     `json:"userId,omitempty"`
	JoinCount  int        `json:"joinCount"`
	PlaytimeMs int64      `json:"playtimeMs"`
	FirstJoin  *time.Time `json:"firstJoin,omitempty"`
	LastLeave  *time.Time `json:"lastLeave,omitempty"`
}

// InstanceReport is one instance after window filtering, with its
// surviving session rows and per-user stats.
type InstanceReport struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	EnteredAt time.Time     `json:"enteredAt"`
	ExitedAt  *time.Time    `json:"exitedAt,omitempty"`
	Sessions  []UserSession `json:"sessions"`
	Stats     []UserStat    `json:"stats"`
}

// Report is the complete analysis result handed to the display layer.
// Instances are chronological; Overall is sorted by playtime descending
// as the default table order.
type Report struct {
	WindowStart      time.Time        `json:"windowStart"`
	WindowEnd        time.Time        `json:"windowEnd"`
	Instances        []InstanceReport `json:"instances"`
	Overall          []UserStat       `json:"overall"`
	TotalUsers       int              `json:"totalUsers"`
	TotalJoinEvents  int              `json:"totalJoinEvents"`
	TotalLeaveEvents int              `json:"totalLeaveEvents"`
	Anomalies        int              `json:"anomalies"`
}
