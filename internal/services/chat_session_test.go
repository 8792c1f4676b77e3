package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendezap/atendezap-backend/internal/storage"
)

func TestGetOrCreateIsLazy(t *testing.T) {
	svc := NewChatSessionService(storage.NewMemoryStore())

	session, err := svc.GetOrCreate("conn-1", "+55 (21) 98888-7777")
	require.NoError(t, err)
	assert.Equal(t, "conn-1_5521988887777", session.SessionKey)
	assert.Nil(t, session.ActiveTrainingID)
	assert.Equal(t, 0, session.MessageCount)

	again, err := svc.GetOrCreate("conn-1", "5521988887777")
	require.NoError(t, err)
	assert.Equal(t, session.SessionKey, again.SessionKey, "digit normalization must map to the same session")
}

func TestActivateOverwritesPriorTraining(t *testing.T) {
	svc := NewChatSessionService(storage.NewMemoryStore())

	require.NoError(t, svc.Activate("conn-1", "5521988887777", "training-a"))
	require.NoError(t, svc.Activate("conn-1", "5521988887777", "training-b"))

	session, err := svc.Get("conn-1", "5521988887777")
	require.NoError(t, err)
	require.NotNil(t, session.ActiveTrainingID)
	assert.Equal(t, "training-b", *session.ActiveTrainingID)
	assert.NotNil(t, session.TrainingStartedAt)
}

func TestDeactivateIsIdempotent(t *testing.T) {
	svc := NewChatSessionService(storage.NewMemoryStore())

	// No session at all: still not an error
	require.NoError(t, svc.Deactivate("conn-1", "5521988887777"))

	require.NoError(t, svc.Activate("conn-1", "5521988887777", "training-a"))
	require.NoError(t, svc.Deactivate("conn-1", "5521988887777"))
	require.NoError(t, svc.Deactivate("conn-1", "5521988887777"))

	session, err := svc.Get("conn-1", "5521988887777")
	require.NoError(t, err)
	assert.Nil(t, session.ActiveTrainingID)
	assert.Nil(t, session.TrainingStartedAt)
}

func TestRecordMessageWithoutSessionIsNoop(t *testing.T) {
	svc := NewChatSessionService(storage.NewMemoryStore())
	assert.NoError(t, svc.RecordMessage("conn-1", "5521988887777"))
}

func TestRecordMessageBumpsCounter(t *testing.T) {
	svc := NewChatSessionService(storage.NewMemoryStore())

	_, err := svc.GetOrCreate("conn-1", "5521988887777")
	require.NoError(t, err)
	require.NoError(t, svc.RecordMessage("conn-1", "5521988887777"))
	require.NoError(t, svc.RecordMessage("conn-1", "5521988887777"))

	session, err := svc.Get("conn-1", "5521988887777")
	require.NoError(t, err)
	assert.Equal(t, 2, session.MessageCount)
	assert.False(t, session.LastMessageAt.IsZero())
}

func TestConcurrentActivateDeactivateKeepsInvariant(t *testing.T) {
	svc := NewChatSessionService(storage.NewMemoryStore())

	_, err := svc.GetOrCreate("conn-1", "5521988887777")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		trainingID := fmt.Sprintf("training-%d", i)
		go func() {
			defer wg.Done()
			_ = svc.Activate("conn-1", "5521988887777", trainingID)
		}()
		go func() {
			defer wg.Done()
			_ = svc.Deactivate("conn-1", "5521988887777")
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the session ends with at most one
	// active training and a consistent (id, startedAt) pair
	session, err := svc.Get("conn-1", "5521988887777")
	require.NoError(t, err)
	if session.ActiveTrainingID == nil {
		assert.Nil(t, session.TrainingStartedAt)
	} else {
		assert.NotNil(t, session.TrainingStartedAt)
	}
}
