package services

import (
	"log"
	"strings"
	"time"

	"github.com/atendezap/atendezap-backend/internal/models"
	"github.com/atendezap/atendezap-backend/internal/storage"

	"github.com/google/uuid"
)

// EvalOutcome classifies what the engine decided for an inbound message
type EvalOutcome int

const (
	// OutcomeActive - a training governs the reply
	OutcomeActive EvalOutcome = iota
	// OutcomeEnded - an exit keyword ended the active training
	OutcomeEnded
	// OutcomeNoTrainings - the connection has no keyword trainings to match
	OutcomeNoTrainings
	// OutcomeNoMatch - keyword trainings exist but none matched
	OutcomeNoMatch
)

// Evaluation is the engine's decision for one inbound message
type Evaluation struct {
	Outcome  EvalOutcome
	Training *models.Training
}

// TrainingEngine decides, per conversation, whether an inbound message is
// governed by a training: it runs exit keywords against active sessions and
// activation keywords against idle ones.
type TrainingEngine struct {
	store    storage.Store
	sessions *ChatSessionService
	cm       *ConnectionManager
}

// NewTrainingEngine creates a new training engine
func NewTrainingEngine(store storage.Store, sessions *ChatSessionService, cm *ConnectionManager) *TrainingEngine {
	return &TrainingEngine{
		store:    store,
		sessions: sessions,
		cm:       cm,
	}
}

// Evaluate determines the acting training for an inbound message, or none
func (e *TrainingEngine) Evaluate(connectionID, counterparty, text string) (*Evaluation, error) {
	session, err := e.sessions.GetOrCreate(connectionID, counterparty)
	if err != nil {
		return nil, err
	}

	normalized := normalizeText(text)

	if session.ActiveTrainingID != nil {
		training, err := e.store.GetTraining(*session.ActiveTrainingID)
		if err != nil || !training.IsActive {
			// Stale reference (training deleted or deactivated): self-heal
			// and fall through to keyword matching
			log.Printf("⚠️  Session %s references missing/inactive training - deactivating", session.SessionKey)
			if err := e.sessions.Deactivate(connectionID, counterparty); err != nil {
				log.Printf("❌ Failed to deactivate stale session %s: %v", session.SessionKey, err)
			}
		} else {
			if matchesAnyKeyword(normalized, training.ExitKeywords) {
				return e.endTraining(connectionID, counterparty, training)
			}
			return &Evaluation{Outcome: OutcomeActive, Training: training}, nil
		}
	}

	trainings, err := e.store.GetKeywordTrainings(connectionID)
	if err != nil {
		return nil, err
	}
	if len(trainings) == 0 {
		return &Evaluation{Outcome: OutcomeNoTrainings}, nil
	}

	// First match in retrieval order wins; the store returns trainings
	// sorted by id so the tie-break is stable across backends
	for _, training := range trainings {
		if matchesAnyKeyword(normalized, training.ActivationKeywords) {
			if err := e.sessions.Activate(connectionID, counterparty, training.ID); err != nil {
				return nil, err
			}
			log.Printf("🎯 Training %s activated for %s", training.ID, models.SessionKey(connectionID, counterparty))
			return &Evaluation{Outcome: OutcomeActive, Training: training}, nil
		}
	}

	return &Evaluation{Outcome: OutcomeNoMatch}, nil
}

// endTraining deactivates the session and sends the configured exit message.
// The exit path never calls the AI; the send is best-effort.
func (e *TrainingEngine) endTraining(connectionID, counterparty string, training *models.Training) (*Evaluation, error) {
	if err := e.sessions.Deactivate(connectionID, counterparty); err != nil {
		return nil, err
	}
	log.Printf("🏁 Training %s ended for %s", training.ID, models.SessionKey(connectionID, counterparty))

	if training.ExitMessage != "" && e.cm != nil {
		if err := e.cm.SendText(connectionID, counterparty, training.ExitMessage); err != nil {
			log.Printf("⚠️  Failed to send exit message for %s: %v", connectionID, err)
		} else {
			if _, err := e.store.CreateMessage(&models.Message{
				ID:           uuid.NewString(),
				ConnectionID: connectionID,
				Counterparty: counterparty,
				FromMe:       true,
				Text:         training.ExitMessage,
				Timestamp:    time.Now(),
			}); err != nil {
				log.Printf("⚠️  Failed to record exit message: %v", err)
			}
		}
	}

	return &Evaluation{Outcome: OutcomeEnded, Training: training}, nil
}

// normalizeText lowercases, trims and collapses internal whitespace
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// matchesAnyKeyword tests case-insensitive substring containment.
// Intentionally loose: "oi" matches inside "dói". Word-boundary matching
// would change activation behavior for short keywords.
func matchesAnyKeyword(normalized string, keywords []string) bool {
	for _, keyword := range keywords {
		kw := normalizeText(keyword)
		if kw == "" {
			continue
		}
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}
