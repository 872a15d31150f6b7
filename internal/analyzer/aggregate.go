package analyzer

import (
	"sort"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// AggregateSessions computes per-user stats for one scope (a single
// instance's surviving sessions, or all of them for the overall
// summary). Usernames are compared case-sensitively; the same name in
// two instances is the same identity. Returns the stats sorted by
// playtime descending then username, plus the number of clamped
// degenerate intervals.
func AggregateSessions(sessions []models.UserSession, w models.Window) ([]models.UserStat, int) {
	byUser := make(map[string]*models.UserStat)
	order := make([]string, 0)
	anomalies := 0

	for _, s := range sessions {
		stat, ok := byUser[s.Username]
		if !ok {
			stat = &models.UserStat{Username: s.Username}
			byUser[s.Username] = stat
			order = append(order, s.Username)
		}

		d, clamped := ClippedDuration(s, w)
		if clamped {
			anomalies++
		}
		stat.JoinCount++
		stat.PlaytimeMs += d.Milliseconds()

		if stat.UserID == "" && s.UserID != "" {
			stat.UserID = s.UserID
		}
		if stat.FirstJoin == nil || s.JoinedAt.Before(*stat.FirstJoin) {
			joined := s.JoinedAt
			stat.FirstJoin = &joined
		}
		if s.LeftAt != nil && (stat.LastLeave == nil || s.LeftAt.After(*stat.LastLeave)) {
			left := *s.LeftAt
			stat.LastLeave = &left
		}
	}

	stats := make([]models.UserStat, 0, len(order))
	for _, name := range order {
		stats = append(stats, *byUser[name])
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].PlaytimeMs != stats[j].PlaytimeMs {
			return stats[i].PlaytimeMs > stats[j].PlaytimeMs
		}
		return stats[i].Username < stats[j].Username
	})
	return stats, anomalies
}

// AggregateOverall flattens the filtered instances and aggregates
// across all of them.
func AggregateOverall(instances []models.Instance, w models.Window) ([]models.UserStat, int) {
	var all []models.UserSession
	for _, inst := range instances {
		all = append(all, inst.Users...)
	}
	return AggregateSessions(all, w)
}
