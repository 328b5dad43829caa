package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000")
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a session with one finished and one live visit
		sess := contractSession(sessionID, now)

		// 2. Save
		err := store.Save(ctx, sessionID, sess)
		require.NoError(t, err, "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sess.CurrentPhase, loaded.CurrentPhase)
		assert.Equal(t, sess.GraphName, loaded.GraphName)
		assert.False(t, loaded.Completed)

		// Field values must come back in their normalized Go type.
		assert.Equal(t, "work stress", loaded.Fields["selected_issue"].Value)
		assert.Equal(t, int64(7), loaded.Fields["issue_intensity"].Value)
		assert.Equal(t, schema.TypeInteger, loaded.Fields["issue_intensity"].ValueType)
		assert.Equal(t, "stage_1", loaded.Fields["issue_intensity"].PhaseID)

		require.Len(t, loaded.Visits, 2)
		assert.Equal(t, "stage_1", loaded.Visits[0].PhaseID)
		require.NotNil(t, loaded.Visits[0].EndedAt)
		assert.True(t, now.Add(3*time.Minute).Equal(*loaded.Visits[0].EndedAt))
		assert.Equal(t, 3*time.Minute, loaded.Visits[0].Duration)
		assert.Equal(t, 4, loaded.Visits[0].MessageCount)
		assert.True(t, loaded.Visits[0].RequirementsMet)
		assert.Nil(t, loaded.Visits[1].EndedAt)
		assert.Equal(t, 1, loaded.Visits[1].Seq)

		assert.Equal(t, domain.FamilyTimer{Accumulated: 90 * time.Second, LoopCount: 2}, loaded.Timers["processing"])
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		sess := contractSession(sessionID, now)
		sess.CurrentPhase = "stage_3"
		sess.Completed = true
		delete(sess.Fields, "selected_issue")
		require.NoError(t, store.Save(ctx, sessionID, sess))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "stage_3", loaded.CurrentPhase)
		assert.True(t, loaded.Completed)
		assert.NotContains(t, loaded.Fields, "selected_issue", "removed fields must not survive a save")
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.CurrentPhase = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", again.CurrentPhase)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		// Setup
		err := store.Save(ctx, sessionID, contractSession(sessionID, now))
		require.NoError(t, err)

		// Delete
		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		// Verify gone
		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		// Setup: Create 2 sessions
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, contractSession(id1, now)))
		require.NoError(t, store.Save(ctx, id2, contractSession(id2, now)))

		// Ensure cleanup
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		// List
		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

func contractSession(id string, now time.Time) *domain.Session {
	sess := domain.NewSession(id, "stages", now)
	sess.CurrentPhase = "stage_2"
	sess.UpdatedAt = now.Add(5 * time.Minute)

	sess.Fields["selected_issue"] = domain.SessionFieldValue{
		PhaseID: "stage_1", Name: "selected_issue", Value: "work stress",
		ValueType: schema.TypeString, UpdatedAt: now.Add(time.Minute),
	}
	sess.Fields["issue_intensity"] = domain.SessionFieldValue{
		PhaseID: "stage_1", Name: "issue_intensity", Value: int64(7),
		ValueType: schema.TypeInteger, UpdatedAt: now.Add(2 * time.Minute),
	}

	ended := now.Add(3 * time.Minute)
	last := now.Add(150 * time.Second)
	sess.Visits = append(sess.Visits,
		domain.SessionPhaseState{
			Seq: 0, PhaseID: "stage_1", MessageCount: 4,
			StartedAt: now, EndedAt: &ended, Duration: 3 * time.Minute, LastMessageAt: &last,
			RequirementsMet: true, MinimumTurnsMet: true, CanTransition: true,
		},
		domain.SessionPhaseState{Seq: 1, PhaseID: "stage_2", StartedAt: ended},
	)
	sess.Timers["processing"] = domain.FamilyTimer{Accumulated: 90 * time.Second, LoopCount: 2}
	return sess
}
