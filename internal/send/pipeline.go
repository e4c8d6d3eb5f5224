package send

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"convosync/internal/apperr"
	"convosync/internal/bus"
	"convosync/internal/model"
	"convosync/internal/notify"
	"convosync/internal/store"
	"convosync/internal/transport"
)

// Sender is the slice of the transport the pipeline needs.
type Sender interface {
	SendMessage(ctx context.Context, req transport.SendRequest) error
	MarkRead(ctx context.Context, conversationID string) error
}

// Uploader pushes attachment bytes to storage and returns the public URL.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}

type placeholder struct {
	msg     model.Message
	lastErr string
}

// Pipeline owns outgoing messages from compose to settle. Every send
// gets a client-generated id that doubles as the canonical message id,
// and a local placeholder row that is shown immediately and reconciled
// away once the canonical row arrives. Placeholders are mirrored to the
// outbox store so queued and failed sends survive a restart.
type Pipeline struct {
	sender   Sender
	uploader Uploader
	db       *store.DB
	bus      *bus.Bus
	notify   *notify.Center
	logger   *zap.Logger

	mu           sync.Mutex
	placeholders map[string]*placeholder // keyed by message id

	now   func() time.Time
	newID func() string
}

// NewPipeline creates a send pipeline. db may be nil when no durable
// mirror is wanted (tests).
func NewPipeline(sender Sender, uploader Uploader, db *store.DB, b *bus.Bus, n *notify.Center, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		sender:       sender,
		uploader:     uploader,
		db:           db,
		bus:          b,
		notify:       n,
		logger:       logger,
		placeholders: make(map[string]*placeholder),
		now:          time.Now,
		newID:        newMessageID,
	}
}

func newMessageID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("local-%d", time.Now().UnixNano())
	}
	return id.String()
}

// SendText validates, inserts a PENDING placeholder, and dispatches the
// message. The returned message is the placeholder; on failure it stays
// visible with status FAILED until retried or deleted.
func (p *Pipeline) SendText(ctx context.Context, conv *model.Conversation, content string) (*model.Message, error) {
	return p.send(ctx, conv, content, "text", "")
}

// SendFile uploads the attachment first, then runs the normal pipeline
// with the resulting media URL. An upload failure is reported before
// any placeholder exists, so it reads as an upload problem rather than
// a send problem.
func (p *Pipeline) SendFile(ctx context.Context, conv *model.Conversation, filename, contentType string, r io.Reader, caption string) (*model.Message, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}
	url, err := p.uploader.Upload(ctx, filename, contentType, r)
	if err != nil {
		err = apperr.Classify(err)
		p.logger.Error("upload failed", zap.Error(err), zap.String("filename", filename))
		p.notify.Failure("Upload failed: " + apperr.UserMessage(err))
		return nil, err
	}
	messageType := "file"
	if isImage(contentType) {
		messageType = "image"
	}
	return p.send(ctx, conv, caption, messageType, url)
}

func isImage(contentType string) bool {
	return len(contentType) > 6 && contentType[:6] == "image/"
}

func (p *Pipeline) send(ctx context.Context, conv *model.Conversation, content, messageType, mediaURL string) (*model.Message, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	now := p.now().UnixMilli()
	msg := model.Message{
		ID:             p.newID(),
		ConversationID: conv.ID,
		Content:        content,
		Role:           model.RoleUser,
		SenderType:     "agent",
		MessageType:    messageType,
		MediaURL:       mediaURL,
		Status:         model.DeliveryPending,
		IsTemporary:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	p.mu.Lock()
	p.placeholders[msg.ID] = &placeholder{msg: msg}
	p.mu.Unlock()

	if p.db != nil {
		if err := p.db.Queue(msg.ID, conv.ID, content, messageType, mediaURL); err != nil {
			p.logger.Error("failed to mirror placeholder", zap.Error(err), zap.String("message_id", msg.ID))
		}
	}
	p.publishChanged(msg.ID, conv.ID)

	p.dispatch(ctx, conv, msg.ID)
	return p.snapshot(msg.ID), nil
}

func validate(conv *model.Conversation) error {
	switch {
	case conv == nil:
		return apperr.New(apperr.ClassInvalidInput, "no conversation selected")
	case conv.AIActive:
		return apperr.New(apperr.ClassInvalidInput, "AI is handling this conversation").
			WithUserMessage("Pause the AI before replying manually.")
	case conv.RemoteAddress == "":
		return apperr.New(apperr.ClassInvalidInput, "conversation has no recipient address")
	case conv.Instance == "":
		return apperr.New(apperr.ClassInvalidInput, "conversation has no sending instance")
	}
	return nil
}

// dispatch performs the network round trip for one placeholder and
// settles its status.
func (p *Pipeline) dispatch(ctx context.Context, conv *model.Conversation, messageID string) {
	p.mu.Lock()
	ph, ok := p.placeholders[messageID]
	if !ok {
		p.mu.Unlock()
		return
	}
	req := transport.SendRequest{
		MessageID:      ph.msg.ID,
		ConversationID: ph.msg.ConversationID,
		Instance:       conv.Instance,
		RemoteAddress:  conv.RemoteAddress,
		Content:        ph.msg.Content,
		MessageType:    ph.msg.MessageType,
		MediaURL:       ph.msg.MediaURL,
	}
	p.mu.Unlock()

	if err := p.sender.SendMessage(ctx, req); err != nil {
		err = apperr.Classify(err)
		p.logger.Error("failed to send message", zap.Error(err), zap.String("message_id", messageID))
		p.settle(messageID, model.DeliveryFailed, err.Error())
		p.notify.Failure("Message not sent: " + apperr.UserMessage(err))
		p.bus.Publish(bus.Event{
			Kind:      bus.KindSendFailed,
			Timestamp: p.now(),
			Payload:   map[string]string{"message_id": messageID, "error": err.Error()},
		})
		return
	}

	p.settle(messageID, model.DeliverySent, "")
	if err := p.sender.MarkRead(ctx, conv.ID); err != nil {
		p.logger.Warn("failed to mark conversation read", zap.Error(err), zap.String("conversation_id", conv.ID))
	}
	p.logger.Info("message sent", zap.String("message_id", messageID), zap.String("conversation_id", conv.ID))
	p.bus.Publish(bus.Event{
		Kind:      bus.KindSendAck,
		Timestamp: p.now(),
		Payload:   map[string]string{"message_id": messageID, "conversation_id": conv.ID},
	})
}

func (p *Pipeline) settle(messageID string, status model.DeliveryStatus, errMsg string) {
	conversationID := ""
	p.mu.Lock()
	if ph, ok := p.placeholders[messageID]; ok {
		ph.msg.Status = status
		ph.msg.UpdatedAt = p.now().UnixMilli()
		ph.lastErr = errMsg
		conversationID = ph.msg.ConversationID
	}
	p.mu.Unlock()

	if p.db != nil {
		if err := p.db.SetStatus(messageID, status, errMsg); err != nil {
			p.logger.Error("failed to update outbox status", zap.Error(err), zap.String("message_id", messageID))
		}
	}
	p.publishChanged(messageID, conversationID)
}

func (p *Pipeline) publishChanged(messageID, conversationID string) {
	p.bus.Publish(bus.Event{
		Kind:      bus.KindMessageChanged,
		Table:     "messages",
		Timestamp: p.now(),
		Payload:   map[string]string{"message_id": messageID, "conversation_id": conversationID},
	})
}

// Retry re-dispatches a FAILED placeholder under the same message id,
// so a success still correlates with the original placeholder.
func (p *Pipeline) Retry(ctx context.Context, conv *model.Conversation, messageID string) error {
	if err := validate(conv); err != nil {
		return err
	}

	p.mu.Lock()
	ph, ok := p.placeholders[messageID]
	if !ok {
		p.mu.Unlock()
		return apperr.New(apperr.ClassNotFound, "no pending message "+messageID)
	}
	if ph.msg.Status != model.DeliveryFailed {
		status := ph.msg.Status
		p.mu.Unlock()
		return apperr.New(apperr.ClassInvalidInput, fmt.Sprintf("message %s is %s, only failed sends can be retried", messageID, status))
	}
	ph.msg.Status = model.DeliveryPending
	ph.lastErr = ""
	p.mu.Unlock()

	if p.db != nil {
		if err := p.db.SetStatus(messageID, model.DeliveryPending, ""); err != nil {
			p.logger.Error("failed to update outbox status", zap.Error(err), zap.String("message_id", messageID))
		}
	}

	p.dispatch(ctx, conv, messageID)
	return nil
}

// Delete discards a placeholder and its outbox mirror.
func (p *Pipeline) Delete(messageID string) {
	p.mu.Lock()
	delete(p.placeholders, messageID)
	p.mu.Unlock()

	if p.db != nil {
		if err := p.db.Remove(messageID); err != nil {
			p.logger.Error("failed to remove outbox entry", zap.Error(err), zap.String("message_id", messageID))
		}
	}
}

// Merge overlays a conversation's placeholders onto its canonical
// messages. A canonical row with a placeholder's id settles that
// placeholder: the server has persisted it, so the local copy is
// dropped and the canonical row wins. Unsettled placeholders are
// appended in creation order.
func (p *Pipeline) Merge(conversationID string, canonical []model.Message) []model.Message {
	seen := make(map[string]bool, len(canonical))
	for _, m := range canonical {
		seen[m.ID] = true
	}

	p.mu.Lock()
	var settled []string
	var pending []model.Message
	for id, ph := range p.placeholders {
		if ph.msg.ConversationID != conversationID {
			continue
		}
		if seen[id] {
			settled = append(settled, id)
			continue
		}
		pending = append(pending, ph.msg)
	}
	for _, id := range settled {
		delete(p.placeholders, id)
	}
	p.mu.Unlock()

	for _, id := range settled {
		if p.db != nil {
			if err := p.db.Remove(id); err != nil {
				p.logger.Error("failed to remove settled outbox entry", zap.Error(err), zap.String("message_id", id))
			}
		}
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt < pending[j].CreatedAt })
	return append(canonical, pending...)
}

// Placeholders returns the conversation's unsettled placeholders in
// creation order.
func (p *Pipeline) Placeholders(conversationID string) []model.Message {
	p.mu.Lock()
	var out []model.Message
	for _, ph := range p.placeholders {
		if ph.msg.ConversationID == conversationID {
			out = append(out, ph.msg)
		}
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// FailureReason returns the stored error text for a FAILED placeholder.
func (p *Pipeline) FailureReason(messageID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ph, ok := p.placeholders[messageID]; ok {
		return ph.lastErr
	}
	return ""
}

func (p *Pipeline) snapshot(messageID string) *model.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ph, ok := p.placeholders[messageID]; ok {
		m := ph.msg
		return &m
	}
	return nil
}

// Restore loads unsettled outbox entries back into the in-memory
// placeholder set after a restart.
func (p *Pipeline) Restore() error {
	if p.db == nil {
		return nil
	}
	entries, err := p.db.Unsettled()
	if err != nil {
		return fmt.Errorf("failed to restore outbox: %w", err)
	}

	restored := 0
	p.mu.Lock()
	for _, e := range entries {
		if _, ok := p.placeholders[e.MessageID]; ok {
			continue
		}
		restored++
		p.placeholders[e.MessageID] = &placeholder{
			msg: model.Message{
				ID:             e.MessageID,
				ConversationID: e.ConversationID,
				Content:        e.Content,
				Role:           model.RoleUser,
				SenderType:     "agent",
				MessageType:    e.MessageType,
				MediaURL:       e.MediaURL,
				Status:         e.Status,
				IsTemporary:    true,
				CreatedAt:      e.CreatedAt,
				UpdatedAt:      e.UpdatedAt,
			},
			lastErr: e.ErrorMessage,
		}
	}
	p.mu.Unlock()

	if restored > 0 {
		p.logger.Info("restored unsettled sends", zap.Int("count", restored))
	}
	return nil
}

// DrainPending dispatches every PENDING placeholder. The agent calls
// this after Restore so sends queued before a crash go out.
func (p *Pipeline) DrainPending(ctx context.Context, resolve func(ctx context.Context, conversationID string) (*model.Conversation, error)) {
	p.mu.Lock()
	var ids []string
	for id, ph := range p.placeholders {
		if ph.msg.Status == model.DeliveryPending {
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()

	for _, id := range ids {
		ph := p.snapshot(id)
		if ph == nil {
			continue
		}
		conv, err := resolve(ctx, ph.ConversationID)
		if err != nil {
			p.logger.Error("failed to resolve conversation for queued send", zap.Error(err), zap.String("conversation_id", ph.ConversationID))
			continue
		}
		if err := validate(conv); err != nil {
			p.settle(id, model.DeliveryFailed, err.Error())
			continue
		}
		p.dispatch(ctx, conv, id)
	}
}
