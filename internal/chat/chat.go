// Package chat keeps the conversation between the user and the intent agent:
// instructions go in, proposed plans come out, and a confirmed plan is handed to
// the executor exactly once.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-chain/nexus/internal/classifier"
	"github.com/nexus-chain/nexus/internal/intent"
	"github.com/nexus-chain/nexus/internal/logging"
)

var (
	// ErrEmptyMessage rejects blank input.
	ErrEmptyMessage = errors.New("message content is required")
	// ErrMessageNotFound is returned for an unknown message id.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNothingToConfirm is returned when the message carries no plan.
	ErrNothingToConfirm = errors.New("message has no intents to confirm")
	// ErrAlreadyConfirmed is returned on the second confirmation of a plan.
	ErrAlreadyConfirmed = errors.New("plan already confirmed")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status tracks an assistant plan through confirmation.
type Status string

const (
	StatusNone    Status = ""
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
)

// Message is one entry of the conversation.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Intents   []intent.Intent
	Status    Status
	BatchID   string
}

// Submitter accepts confirmed plans for execution.
type Submitter interface {
	Submit(intents []intent.Intent) (string, error)
}

// Service holds the conversation history.
type Service struct {
	parser    classifier.Parser
	submitter Submitter
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	messages []Message
}

// NewService constructs a chat service.
func NewService(parser classifier.Parser, submitter Submitter, logger *slog.Logger) *Service {
	return &Service{
		parser:    parser,
		submitter: submitter,
		logger:    logging.Component(logger, "chat"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Send records the user's instruction, classifies it and appends the proposed
// plan as an assistant message. The assistant message is returned.
func (s *Service) Send(ctx context.Context, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	s.append(Message{ID: uuid.NewString(), Role: RoleUser, Content: text, Timestamp: s.now()})

	plan := s.parser.Parse(ctx, text)
	reply := Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   RenderPlan(plan),
		Timestamp: s.now(),
		Intents:   slices.Clone(plan.Intents),
	}
	if len(reply.Intents) > 0 {
		reply.Status = StatusPending
	}
	s.append(reply)

	s.logger.Info("plan proposed", slog.String("message_id", reply.ID), slog.Int("intents", len(reply.Intents)))
	return copyMessage(reply), nil
}

// Confirm hands the plan of an assistant message to the executor and marks it
// successful. A plan can be confirmed only once.
func (s *Service) Confirm(_ context.Context, messageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.messages, func(m Message) bool { return m.ID == messageID })
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	msg := &s.messages[idx]
	switch {
	case msg.Status == StatusSuccess:
		return "", ErrAlreadyConfirmed
	case msg.Role != RoleAssistant || len(msg.Intents) == 0:
		return "", ErrNothingToConfirm
	}

	batchID, err := s.submitter.Submit(slices.Clone(msg.Intents))
	if err != nil {
		s.messages = append(s.messages, Message{
			ID:        uuid.NewString(),
			Role:      RoleSystem,
			Content:   "Error handing the plan to the execution layer.",
			Timestamp: s.now(),
		})
		return "", fmt.Errorf("submit plan: %w", err)
	}
	msg.Status = StatusSuccess
	msg.BatchID = batchID

	s.logger.Info("plan confirmed", slog.String("message_id", messageID), slog.String("batch_id", batchID))
	return batchID, nil
}

// Messages returns a copy of the history, oldest first.
func (s *Service) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, copyMessage(m))
	}
	return out
}

// RenderPlan formats a plan the way the chat panel shows it: the summary, a
// blank line, then one numbered entry per intent with its target and amount.
func RenderPlan(p classifier.Plan) string {
	var b strings.Builder
	b.WriteString(p.Summary)
	b.WriteString("\n\n")
	for i, in := range p.Intents {
		fmt.Fprintf(&b, "%d. %s\n", i+1, in.Description)
		if in.Target != "" {
			fmt.Fprintf(&b, "   Target: %s\n", in.Target)
		}
		if amount := in.Amount(); !amount.IsZero() {
			fmt.Fprintf(&b, "   Amount: %s\n", amount)
		}
	}
	return strings.TrimSpace(b.String())
}

func (s *Service) append(m Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

func copyMessage(m Message) Message {
	m.Intents = slices.Clone(m.Intents)
	return m
}
