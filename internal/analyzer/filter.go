package analyzer

import (
	"time"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// FilterWindow returns a copy of instances scoped to the [start, end)
// window. Instances and sessions with zero overlap are dropped; the
// survivors keep their original timestamps (clipping happens only when
// durations are computed). Open-ended spans are treated as extending to
// the window end, never to wall-clock now, so a report is reproducible
// for a given file and window.
//
// FilterWindow is idempotent: filtering an already-filtered result by
// the same window returns an identical result.
func FilterWindow(instances []models.Instance, w models.Window) []models.Instance {
	out := make([]models.Instance, 0, len(instances))
	for _, inst := range instances {
		if !spanOverlaps(inst.EnteredAt, inst.ExitedAt, w) {
			continue
		}

		kept := inst
		kept.Users = make([]models.UserSession, 0, len(inst.Users))
		for _, s := range inst.Users {
			if spanOverlaps(s.JoinedAt, s.LeftAt, w) {
				kept.Users = append(kept.Users, s)
			}
		}
		out = append(out, kept)
	}
	return out
}

// spanOverlaps reports whether [start, end-or-windowEnd] has positive
// intersection with the window.
func spanOverlaps(start time.Time, end *time.Time, w models.Window) bool {
	eff := w.End
	if end != nil {
		eff = *end
	}
	lo := start
	if w.Start.After(lo) {
		lo = w.Start
	}
	hi := eff
	if w.End.Before(hi) {
		hi = w.End
	}
	return lo.Before(hi)
}

// ClippedDuration returns the portion of a session that falls inside
// the window. Degenerate intervals clamp to zero and report an anomaly
// rather than producing a negative duration.
func ClippedDuration(s models.UserSession, w models.Window) (time.Duration, bool) {
	start := s.JoinedAt
	if w.Start.After(start) {
		start = w.Start
	}
	end := w.End
	if s.LeftAt != nil && s.LeftAt.Before(end) {
		end = *s.LeftAt
	}
	d := end.Sub(start)
	if d < 0 {
		return 0, true
	}
	return d, false
}
