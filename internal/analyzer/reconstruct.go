// Package analyzer reconstructs per-instance user presence from VRChat
// log records and derives windowed reports. The pipeline is strictly
// one-directional: records → instances → filtered instances → stats →
// report.
package analyzer

import (
	"time"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// Reconstructor folds a stream of log records into an ordered list of
// instances. All running state lives here, not in package variables, so
// reconstructions are independent and testable in isolation.
//
// Recovery rules for imperfect logs:
//   - a join for a user with an already-open session implicitly closes
//     the old session at the new join time (missed leave);
//   - a leave with no open session synthesizes a session from the
//     instance's enter time (user present before logging started);
//   - join/leave before any instance-enter opens an implicit instance
//     anchored at the first record's timestamp (truncated log head).
//
// Each recovery increments the anomaly counter; none of them fail.
type Reconstructor struct {
	instances []models.Instance
	current   *models.Instance
	open      map[string]int // username → index of open session in current.Users
	anomalies int
}

// NewReconstructor returns an empty Reconstructor.
func NewReconstructor() *Reconstructor {
	return &Reconstructor{open: make(map[string]int)}
}

// Feed consumes one record. Records must arrive in file order.
func (r *Reconstructor) Feed(rec models.LogRecord) {
	switch rec.Kind {
	case models.RecordInstanceEnter:
		r.finishInstance()
		r.current = &models.Instance{ID: rec.InstanceID, EnteredAt: rec.Timestamp}

	case models.RecordRoomName:
		if r.current != nil && r.current.Name == "" {
			r.current.Name = rec.RoomName
		}

	case models.RecordUserJoin:
		r.ensureInstance(rec.Timestamp)
		if idx, ok := r.open[rec.Username]; ok {
			// Consecutive joins without a leave mean the leave was
			// missed, not that the user rejoined at the same moment.
			r.closeSession(idx, rec.Timestamp)
			r.anomalies++
		}
		r.current.Users = append(r.current.Users, models.UserSession{
			Username: rec.Username,
			UserID:   rec.UserID,
			JoinedAt: rec.Timestamp,
		})
		r.open[rec.Username] = len(r.current.Users) - 1

	case models.RecordUserJoinComplete:
		r.ensureInstance(rec.Timestamp)
		if _, ok := r.open[rec.Username]; ok {
			// Confirmation of an already-open session, nothing to do.
			return
		}
		// The primary join line was missed; open the session here.
		r.current.Users = append(r.current.Users, models.UserSession{
			Username: rec.Username,
			UserID:   rec.UserID,
			JoinedAt: rec.Timestamp,
		})
		r.open[rec.Username] = len(r.current.Users) - 1

	case models.RecordUserLeave:
		r.ensureInstance(rec.Timestamp)
		if idx, ok := r.open[rec.Username]; ok {
			r.closeSession(idx, rec.Timestamp)
			delete(r.open, rec.Username)
			if rec.UserID != "" && r.current.Users[idx].UserID == "" {
				r.current.Users[idx].UserID = rec.UserID
			}
		} else {
			// Leave with no prior join: the user was present since
			// before this instance was logged.
			left := rec.Timestamp
			r.current.Users = append(r.current.Users, models.UserSession{
				Username: rec.Username,
				UserID:   rec.UserID,
				JoinedAt: r.current.EnteredAt,
				LeftAt:   &left,
			})
			r.anomalies++
		}

	case models.RecordInstanceExit:
		if r.current != nil {
			exited := rec.Timestamp
			r.current.ExitedAt = &exited
			r.finishInstance()
		}
	}
}

// Finish closes out the reconstruction and returns the instances in
// chronological order plus the anomaly count. Open instances and open
// sessions stay open-ended; no leaves are synthesized at end of log.
func (r *Reconstructor) Finish() ([]models.Instance, int) {
	r.finishInstance()
	return r.instances, r.anomalies
}

// ensureInstance opens an implicit instance when user events precede
// any instance-enter record.
func (r *Reconstructor) ensureInstance(ts time.Time) {
	if r.current == nil {
		r.current = &models.Instance{EnteredAt: ts}
		r.anomalies++
	}
}

// closeSession sets LeftAt on an open session, clamping to JoinedAt
// when the log delivered events out of order.
func (r *Reconstructor) closeSession(idx int, ts time.Time) {
	s := &r.current.Users[idx]
	if ts.Before(s.JoinedAt) {
		ts = s.JoinedAt
		r.anomalies++
	}
	left := ts
	s.LeftAt = &left
}

func (r *Reconstructor) finishInstance() {
	if r.current == nil {
		return
	}
	r.instances = append(r.instances, *r.current)
	r.current = nil
	r.open = make(map[string]int)
}

// Reconstruct folds an already-collected record slice.
func Reconstruct(records []models.LogRecord) ([]models.Instance, int) {
	r := NewReconstructor()
	for _, rec := range records {
		r.Feed(rec)
	}
	return r.Finish()
}
