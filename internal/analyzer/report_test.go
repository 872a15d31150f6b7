package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

func TestBuildReport_SingleSession(t *testing.T) {
	records := []models.LogRecord{
		enter(ts(0, 0), "wrld_a"),
		room(ts(0, 1), "Home"),
		join(ts(1, 0), "Alice"),
		leave(ts(5, 30), "Alice"),
		exit(ts(6, 0)),
	}
	instances, anomalies := Reconstruct(records)
	rep := BuildReport(instances, window(ts(0, 0), ts(10, 0)), SourceStats{JoinEvents: 1, LeaveEvents: 1, Anomalies: anomalies})

	require.Len(t, rep.Instances, 1)
	require.Len(t, rep.Overall, 1)

	alice := rep.Overall[0]
	assert.Equal(t, "Alice", alice.Username)
	assert.Equal(t, 1, alice.JoinCount)
	assert.Equal(t, (4*time.Minute + 30*time.Second).Milliseconds(), alice.PlaytimeMs)
	require.NotNil(t, alice.FirstJoin)
	assert.Equal(t, ts(1, 0), *alice.FirstJoin)
	require.NotNil(t, alice.LastLeave)
	assert.Equal(t, ts(5, 30), *alice.LastLeave)

	assert.Equal(t, 1, rep.TotalUsers)
	assert.Equal(t, 1, rep.TotalJoinEvents)
	assert.Equal(t, 1, rep.TotalLeaveEvents)
	assert.Zero(t, rep.Anomalies)
}

func TestBuildReport_SortedByPlaytime(t *testing.T) {
	instances := []models.Instance{
		{
			ID:        "wrld_a",
			EnteredAt: ts(0, 0),
			Users: []models.UserSession{
				closedSession("Short", ts(1, 0), ts(2, 0)),
				closedSession("Long", ts(1, 0), ts(9, 0)),
				closedSession("Mid", ts(1, 0), ts(5, 0)),
			},
		},
	}
	rep := BuildReport(instances, window(ts(0, 0), ts(10, 0)), SourceStats{})

	require.Len(t, rep.Overall, 3)
	assert.Equal(t, "Long", rep.Overall[0].Username)
	assert.Equal(t, "Mid", rep.Overall[1].Username)
	assert.Equal(t, "Short", rep.Overall[2].Username)
}

func TestBuildReport_MultiInstanceOverall(t *testing.T) {
	// Alice appears in two instances; the overall summary merges her.
	records := []models.LogRecord{
		enter(ts(0, 0), "wrld_a"),
		join(ts(1, 0), "Alice"),
		leave(ts(3, 0), "Alice"),
		exit(ts(4, 0)),
		enter(ts(5, 0), "wrld_b"),
		join(ts(6, 0), "Alice"),
		join(ts(6, 30), "Bob"),
		leave(ts(8, 0), "Alice"),
		exit(ts(9, 0)),
	}
	instances, _ := Reconstruct(records)
	rep := BuildReport(instances, window(ts(0, 0), ts(20, 0)), SourceStats{})

	require.Len(t, rep.Instances, 2)
	require.Len(t, rep.Overall, 2)

	// Bob never left; his open-ended session clips to the window end
	// (6:30 → 20:00) and outranks Alice in the playtime-descending order.
	bob := rep.Overall[0]
	assert.Equal(t, "Bob", bob.Username)
	assert.Equal(t, 1, bob.JoinCount)
	assert.Equal(t, (13*time.Minute + 30*time.Second).Milliseconds(), bob.PlaytimeMs)
	assert.Nil(t, bob.LastLeave)

	alice := rep.Overall[1]
	assert.Equal(t, "Alice", alice.Username)
	assert.Equal(t, 2, alice.JoinCount)
	assert.Equal(t, (4 * time.Minute).Milliseconds(), alice.PlaytimeMs)
	assert.Equal(t, ts(1, 0), *alice.FirstJoin)
	assert.Equal(t, ts(8, 0), *alice.LastLeave)
}

func TestBuildReport_CaseSensitiveIdentity(t *testing.T) {
	instances := []models.Instance{
		{
			ID:        "wrld_a",
			EnteredAt: ts(0, 0),
			Users: []models.UserSession{
				closedSession("alice", ts(1, 0), ts(2, 0)),
				closedSession("Alice", ts(1, 0), ts(2, 0)),
			},
		},
	}
	rep := BuildReport(instances, window(ts(0, 0), ts(10, 0)), SourceStats{})
	assert.Equal(t, 2, rep.TotalUsers, "alice and Alice are distinct users")
}

func TestBuildReport_WindowExcludesEverything(t *testing.T) {
	records := []models.LogRecord{
		enter(ts(0, 0), "wrld_a"),
		join(ts(1, 0), "Alice"),
		leave(ts(2, 0), "Alice"),
		exit(ts(3, 0)),
	}
	instances, _ := Reconstruct(records)
	rep := BuildReport(instances, window(ts(30, 0), ts(40, 0)), SourceStats{JoinEvents: 1, LeaveEvents: 1})

	assert.Empty(t, rep.Instances)
	assert.Empty(t, rep.Overall)
	assert.Zero(t, rep.TotalUsers)
	assert.Equal(t, 1, rep.TotalJoinEvents, "whole-file counters are not windowed")
}

func TestWindowValid(t *testing.T) {
	assert.True(t, window(ts(0, 0), ts(1, 0)).Valid())
	assert.True(t, window(ts(1, 0), ts(1, 0)).Valid(), "equal bounds are a valid empty window")
	assert.False(t, window(ts(2, 0), ts(1, 0)).Valid())
	assert.False(t, models.Window{}.Valid())
}
