package action

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"convosync/internal/apperr"
	"convosync/internal/model"
	"convosync/internal/notify"
	"convosync/internal/query"
	"convosync/internal/transport"
)

// Kind identifies one mutation family. Pending and error state is
// tracked per kind, so an archive in flight does not block an
// assignment.
type Kind string

const (
	KindArchive   Kind = "archive"
	KindImportant Kind = "important"
	KindAssign    Kind = "assign"
	KindStatus    Kind = "status"
	KindAI        Kind = "ai"
)

// Mutator is the slice of the transport the coordinator drives.
type Mutator interface {
	ToggleArchive(ctx context.Context, conversationID string) (*model.Conversation, error)
	ToggleImportant(ctx context.Context, conversationID string) (*model.Conversation, error)
	AssignUser(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
	SetStatus(ctx context.Context, conversationID string, status model.ConversationStatus) (*model.Conversation, error)
	SetAIActive(ctx context.Context, conversationID string, active bool) (*model.Conversation, error)
}

var _ Mutator = (transport.Transport)(nil)

type kindState struct {
	pending bool
	lastErr *apperr.Error
}

// Coordinator runs conversation mutations. There is no speculative
// field flip and no rollback: displayed state only changes through
// refetch, which the coordinator triggers as a narrow invalidation
// once the server confirms.
type Coordinator struct {
	clientID    string
	mutator     Mutator
	invalidator *query.Invalidator
	notify      *notify.Center
	logger      *zap.Logger

	mu     sync.Mutex
	states map[Kind]*kindState
}

// NewCoordinator creates a coordinator for one tenant.
func NewCoordinator(clientID string, m Mutator, iv *query.Invalidator, n *notify.Center, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		clientID:    clientID,
		mutator:     m,
		invalidator: iv,
		notify:      n,
		logger:      logger,
		states:      make(map[Kind]*kindState),
	}
}

// Pending reports whether a mutation of this kind is in flight.
func (c *Coordinator) Pending(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[kind]
	return ok && s.pending
}

// LastError returns the kind's captured error, or nil. The error stays
// visible until dismissed or until the next invocation of the same
// kind clears it.
func (c *Coordinator) LastError(kind Kind) *apperr.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[kind]; ok {
		return s.lastErr
	}
	return nil
}

// DismissError clears the kind's captured error.
func (c *Coordinator) DismissError(kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[kind]; ok {
		s.lastErr = nil
	}
}

// ToggleArchive archives or unarchives the conversation.
func (c *Coordinator) ToggleArchive(ctx context.Context, conv *model.Conversation, filters model.ListFilters) error {
	return c.run(ctx, KindArchive, filters, func(ctx context.Context) (*model.Conversation, error) {
		return c.mutator.ToggleArchive(ctx, conv.ID)
	}, func(result *model.Conversation) string {
		if result.Status == model.StatusArchived {
			return "Conversation archived"
		}
		return "Conversation unarchived"
	})
}

// ToggleImportant flips the importance flag.
func (c *Coordinator) ToggleImportant(ctx context.Context, conv *model.Conversation, filters model.ListFilters) error {
	return c.run(ctx, KindImportant, filters, func(ctx context.Context) (*model.Conversation, error) {
		return c.mutator.ToggleImportant(ctx, conv.ID)
	}, func(result *model.Conversation) string {
		if result.Important {
			return "Marked as important"
		}
		return "Importance removed"
	})
}

// Assign sets the conversation's assignee. An empty userID unassigns.
func (c *Coordinator) Assign(ctx context.Context, conv *model.Conversation, userID string, filters model.ListFilters) error {
	return c.run(ctx, KindAssign, filters, func(ctx context.Context) (*model.Conversation, error) {
		return c.mutator.AssignUser(ctx, conv.ID, userID)
	}, func(result *model.Conversation) string {
		if result.AssignedUserID == "" {
			return "Conversation unassigned"
		}
		return "Conversation assigned"
	})
}

// SetStatus moves the conversation to a new lifecycle status. Setting
// the status it already has is a no-op: no network call, no
// invalidation.
func (c *Coordinator) SetStatus(ctx context.Context, conv *model.Conversation, status model.ConversationStatus, filters model.ListFilters) error {
	if conv != nil && conv.Status == status {
		return nil
	}
	return c.run(ctx, KindStatus, filters, func(ctx context.Context) (*model.Conversation, error) {
		return c.mutator.SetStatus(ctx, conv.ID, status)
	}, func(result *model.Conversation) string {
		return fmt.Sprintf("Status changed to %s", result.Status)
	})
}

// SetAIActive hands the conversation to the AI or takes it back.
func (c *Coordinator) SetAIActive(ctx context.Context, conv *model.Conversation, active bool, filters model.ListFilters) error {
	return c.run(ctx, KindAI, filters, func(ctx context.Context) (*model.Conversation, error) {
		return c.mutator.SetAIActive(ctx, conv.ID, active)
	}, func(result *model.Conversation) string {
		if result.AIActive {
			return "AI activated"
		}
		return "AI paused"
	})
}

func (c *Coordinator) run(ctx context.Context, kind Kind, filters model.ListFilters, op func(context.Context) (*model.Conversation, error), confirm func(*model.Conversation) string) error {
	c.mu.Lock()
	s, ok := c.states[kind]
	if !ok {
		s = &kindState{}
		c.states[kind] = s
	}
	if s.pending {
		c.mu.Unlock()
		return apperr.New(apperr.ClassConflict, fmt.Sprintf("a %s action is already in flight", kind))
	}
	s.pending = true
	s.lastErr = nil
	c.mu.Unlock()

	result, err := op(ctx)

	c.mu.Lock()
	s.pending = false
	if err != nil {
		s.lastErr = apperr.Classify(err)
		err = s.lastErr
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("mutation failed", zap.String("kind", string(kind)), zap.Error(err))
		c.notify.Failure(apperr.UserMessage(err))
		return err
	}

	c.invalidator.Narrow(ctx, c.clientID, result.ID, filters)
	c.notify.Success(confirm(result))
	return nil
}
