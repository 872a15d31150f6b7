package analyzer

import (
	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// SourceStats carries whole-file counters gathered outside the
// windowed pipeline: total recognized join/leave events and anomalies
// recovered during reconstruction.
type SourceStats struct {
	JoinEvents  int
	LeaveEvents int
	Anomalies   int
}

// BuildReport runs filter → aggregate over the reconstructed instances
// and assembles the final report. Instances stay chronological;
// per-instance stats and the overall summary default to playtime
// descending. The result holds no references to the input log.
func BuildReport(instances []models.Instance, w models.Window, src SourceStats) *models.Report {
	filtered := FilterWindow(instances, w)

	rep := &models.Report{
		WindowStart:      w.Start,
		WindowEnd:        w.End,
		Instances:        make([]models.InstanceReport, 0, len(filtered)),
		TotalJoinEvents:  src.JoinEvents,
		TotalLeaveEvents: src.LeaveEvents,
		Anomalies:        src.Anomalies,
	}

	for _, inst := range filtered {
		stats, anomalies := AggregateSessions(inst.Users, w)
		rep.Anomalies += anomalies
		rep.Instances = append(rep.Instances, models.InstanceReport{
			ID:        inst.ID,
			Name:      inst.Name,
			EnteredAt: inst.EnteredAt,
			ExitedAt:  inst.ExitedAt,
			Sessions:  inst.Users,
			Stats:     stats,
		})
	}

	// Degenerate intervals were already counted per instance; the
	// overall pass over the same sessions must not count them twice.
	overall, _ := AggregateOverall(filtered, w)
	rep.Overall = overall
	rep.TotalUsers = len(overall)

	return rep
}
