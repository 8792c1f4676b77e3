package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/atendezap/atendezap-backend/internal/models"
	"github.com/atendezap/atendezap-backend/internal/storage"

	"github.com/google/uuid"
)

// contextWindow is how many recorded messages are replayed to the AI
const contextWindow = 10

// Inbound result reasons (external interface contract)
const (
	ActionTrainingEnded  = "training_ended"
	ReasonNoTrainings    = "no available trainings"
	ReasonNoKeywordMatch = "no keyword match"
	ReasonNoReply        = "no reply generated"
	ReasonSocketNotAvail = "socket not available"
)

// InboundResult is the outcome of processing one inbound message
type InboundResult struct {
	Success bool   `json:"success"`
	Action  string `json:"action,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Reply   string `json:"reply,omitempty"`
	Status  int    `json:"status,omitempty"` // set only for delivery failures
}

// MessageRouter ties inbound events to the session store, the training
// engine and the AI/reply path
type MessageRouter struct {
	store     storage.Store
	sessions  *ChatSessionService
	engine    *TrainingEngine
	cm        *ConnectionManager
	completer Completer
}

// NewMessageRouter creates a new message router
func NewMessageRouter(store storage.Store, sessions *ChatSessionService, engine *TrainingEngine, cm *ConnectionManager, completer Completer) *MessageRouter {
	return &MessageRouter{
		store:     store,
		sessions:  sessions,
		engine:    engine,
		cm:        cm,
		completer: completer,
	}
}

// HandleInbound processes one normalized inbound message event
func (r *MessageRouter) HandleInbound(connectionID, from, text string) (*InboundResult, error) {
	// Session activity is recorded unconditionally, even when no training
	// ends up responding
	if _, err := r.sessions.GetOrCreate(connectionID, from); err != nil {
		return nil, err
	}
	if err := r.sessions.RecordMessage(connectionID, from); err != nil {
		log.Printf("⚠️  Failed to record session activity for %s: %v", connectionID, err)
	}

	eval, err := r.engine.Evaluate(connectionID, from, text)
	if err != nil {
		return nil, err
	}

	switch eval.Outcome {
	case OutcomeEnded:
		return &InboundResult{Success: true, Action: ActionTrainingEnded}, nil
	case OutcomeNoTrainings:
		return &InboundResult{Success: false, Reason: ReasonNoTrainings}, nil
	case OutcomeNoMatch:
		return &InboundResult{Success: false, Reason: ReasonNoKeywordMatch}, nil
	}

	// Assemble conversation context before persisting the inbound message,
	// so the current text appears only as the latest user turn
	history := r.conversationContext(connectionID, from)

	r.persistMessage(connectionID, from, false, text)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reply, err := r.completer.Complete(ctx, eval.Training.Prompt, history, text)
	if err != nil {
		log.Printf("⚠️  AI completion failed for %s: %v", connectionID, err)
		return &InboundResult{Success: false, Reason: ReasonNoReply}, nil
	}
	if reply == "" {
		return &InboundResult{Success: false, Reason: ReasonNoReply}, nil
	}

	r.persistMessage(connectionID, from, true, reply)

	if err := r.cm.SendText(connectionID, from, reply); err != nil {
		log.Printf("❌ Delivery failed for %s: %v", connectionID, err)
		return &InboundResult{Success: false, Reason: ReasonSocketNotAvail, Status: 503}, nil
	}

	return &InboundResult{Success: true, Reply: reply}, nil
}

// SendManual sends a caller-initiated message through the connection's
// socket and records it
func (r *MessageRouter) SendManual(connectionID, to, text string) error {
	if err := r.cm.SendText(connectionID, to, text); err != nil {
		return err
	}

	if _, err := r.sessions.GetOrCreate(connectionID, to); err != nil {
		log.Printf("⚠️  Failed to open session for manual send: %v", err)
	} else if err := r.sessions.RecordMessage(connectionID, to); err != nil {
		log.Printf("⚠️  Failed to record session activity: %v", err)
	}
	r.persistMessage(connectionID, to, true, text)
	return nil
}

// ResetConversation clears the conversation's active training. Idempotent:
// succeeds even when nothing was active.
func (r *MessageRouter) ResetConversation(connectionID, counterparty string) error {
	return r.sessions.Deactivate(connectionID, counterparty)
}

// ActiveTraining returns the training currently governing the conversation,
// or nil
func (r *MessageRouter) ActiveTraining(connectionID, counterparty string) (*models.Training, error) {
	session, err := r.sessions.Get(connectionID, counterparty)
	if err != nil || session.ActiveTrainingID == nil {
		return nil, nil
	}

	training, err := r.store.GetTraining(*session.ActiveTrainingID)
	if err != nil {
		return nil, nil
	}
	return training, nil
}

// AssignTraining activates an assignment-mode training for a conversation
// directly, without a keyword trigger
func (r *MessageRouter) AssignTraining(connectionID, counterparty, trainingID string) error {
	training, err := r.store.GetTraining(trainingID)
	if err != nil {
		return err
	}
	if training.ConnectionID != connectionID {
		return errors.New("training belongs to another connection")
	}
	if !training.IsActive {
		return errors.New("training is not active")
	}
	return r.sessions.Activate(connectionID, counterparty, trainingID)
}

// conversationContext loads the last messages of the conversation, oldest
// first, tagged by direction
func (r *MessageRouter) conversationContext(connectionID, counterparty string) []ChatTurn {
	msgs, err := r.store.GetRecentMessages(connectionID, counterparty, contextWindow)
	if err != nil {
		log.Printf("⚠️  Failed to load conversation context for %s: %v", connectionID, err)
		return nil
	}

	turns := make([]ChatTurn, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		if msg.FromMe {
			role = "assistant"
		}
		turns = append(turns, ChatTurn{Role: role, Text: msg.Text})
	}
	return turns
}

// persistMessage appends to the audit trail. Failures are logged and
// swallowed so they never block the reply path.
func (r *MessageRouter) persistMessage(connectionID, counterparty string, fromMe bool, text string) {
	_, err := r.store.CreateMessage(&models.Message{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Counterparty: counterparty,
		FromMe:       fromMe,
		Text:         text,
		Timestamp:    time.Now(),
	})
	if err != nil {
		log.Printf("⚠️  Failed to persist message for %s: %v", connectionID, err)
	}
}
