package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"go.uber.org/zap"
)

var (
	// ErrEmptyMessage is returned by Send for blank text without an attachment
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrNoActor is returned by Send when the view has no signed-in user
	ErrNoActor = errors.New("no signed-in user")
)

// TempIDPrefix marks optimistic messages that the server has not confirmed yet
const TempIDPrefix = "temp-"

// DefaultPollInterval is how often Run re-fetches the conversation
const DefaultPollInterval = 15 * time.Second

// MessageAPI is the slice of the API the chat view needs
type MessageAPI interface {
	GetOrderMessages(ctx context.Context, orderID string) ([]models.Message, error)
	SendOrderMessage(ctx context.Context, orderID, text string) (*models.Message, error)
	SendOrderMessageWithAttachment(ctx context.Context, orderID, text string, file FileUpload) (*models.Message, error)
	MarkOrderMessagesAsRead(ctx context.Context, orderID string) (int64, error)
}

// Actor is the signed-in user the view sends as
type Actor struct {
	UID         string
	DisplayName string
	Role        models.Role
}

// ChatView keeps a local projection of one order's conversation.
// It is safe for concurrent use.
type ChatView struct {
	api      MessageAPI
	orderID  string
	actor    *Actor
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	messages []models.Message

	inFlight   atomic.Int32
	background sync.WaitGroup
}

// ViewOption configures a ChatView
type ViewOption func(*ChatView)

// WithPollInterval overrides DefaultPollInterval
func WithPollInterval(d time.Duration) ViewOption {
	return func(v *ChatView) {
		if d > 0 {
			v.interval = d
		}
	}
}

// WithClock overrides the time source used for optimistic timestamps and day labels
func WithClock(now func() time.Time) ViewOption {
	return func(v *ChatView) {
		v.now = now
	}
}

// NewChatView creates a view of orderID. actor may be nil for a signed-out session, in which case Send fails.
func NewChatView(api MessageAPI, orderID string, actor *Actor, logger *zap.Logger, opts ...ViewOption) *ChatView {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &ChatView{
		api:      api,
		orderID:  orderID,
		actor:    actor,
		logger:   logger.With(zap.String("order_id", orderID)),
		interval: DefaultPollInterval,
		now:      time.Now,
		messages: []models.Message{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Messages returns a copy of the current list, confirmed messages first
func (v *ChatView) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Groups returns the current list grouped by day
func (v *ChatView) Groups() []MessageGroup {
	return GroupByDay(v.Messages(), v.now())
}

// Load fetches the conversation and marks it read in the background.
// A failed read receipt is logged, never returned.
func (v *ChatView) Load(ctx context.Context) error {
	if err := v.Refresh(ctx); err != nil {
		return err
	}

	v.background.Add(1)
	go func() {
		defer v.background.Done()
		if _, err := v.api.MarkOrderMessagesAsRead(ctx, v.orderID); err != nil {
			v.logger.Warn("Failed to mark messages as read", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until background work started by Load has finished
func (v *ChatView) Wait() {
	v.background.Wait()
}

// Refresh re-fetches the conversation, keeping optimistic messages that are still pending
func (v *ChatView) Refresh(ctx context.Context) error {
	v.inFlight.Add(1)
	defer v.inFlight.Add(-1)

	fetched, err := v.api.GetOrderMessages(ctx, v.orderID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	merged := make([]models.Message, 0, len(fetched)+1)
	merged = append(merged, fetched...)
	for _, msg := range v.messages {
		if isTemp(msg.ID) {
			merged = append(merged, msg)
		}
	}
	v.messages = merged
	return nil
}

// Run polls until ctx is cancelled. A tick is skipped while a fetch or send is still in flight,
// and cancelling ctx aborts the request in progress.
func (v *ChatView) Run(ctx context.Context) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if v.inFlight.Load() > 0 {
				v.logger.Debug("Skipping poll, a request is still in flight")
				continue
			}
			if err := v.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				v.logger.Warn("Failed to refresh messages", zap.Error(err))
			}
		}
	}
}

// Send shows the message immediately, writes it, then swaps the optimistic entry for the stored one.
// On failure the optimistic entry is removed and the error returned. file may be nil.
func (v *ChatView) Send(ctx context.Context, text string, file *FileUpload) (*models.Message, error) {
	if strings.TrimSpace(text) == "" && file == nil {
		return nil, ErrEmptyMessage
	}
	if v.actor == nil || v.actor.UID == "" {
		return nil, ErrNoActor
	}

	v.inFlight.Add(1)
	defer v.inFlight.Add(-1)

	pending := models.Message{
		ID:          TempIDPrefix + uuid.NewString(),
		OrderID:     v.orderID,
		SenderID:    v.actor.UID,
		SenderName:  v.actor.DisplayName,
		SenderRole:  models.SenderRoleFor(v.actor.Role),
		Message:     text,
		Attachments: []models.Attachment{},
		Timestamp:   v.now(),
		IsRead:      false,
	}
	if file != nil {
		pending.Attachments = append(pending.Attachments, models.Attachment{Name: file.Name, Type: file.ContentType, Size: file.Size})
	}

	v.mu.Lock()
	v.messages = append(v.messages, pending)
	v.mu.Unlock()

	var (
		confirmed *models.Message
		err       error
	)
	if file != nil {
		confirmed, err = v.api.SendOrderMessageWithAttachment(ctx, v.orderID, text, *file)
	} else {
		confirmed, err = v.api.SendOrderMessage(ctx, v.orderID, text)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.remove(pending.ID)
		return nil, err
	}
	v.replace(pending.ID, *confirmed)
	return confirmed, nil
}

// replace swaps the entry with id for msg, or drops it when a refresh already brought msg in
func (v *ChatView) replace(id string, msg models.Message) {
	for _, existing := range v.messages {
		if existing.ID == msg.ID {
			v.remove(id)
			return
		}
	}
	for i := range v.messages {
		if v.messages[i].ID == id {
			v.messages[i] = msg
			return
		}
	}
	v.messages = append(v.messages, msg)
}

func (v *ChatView) remove(id string) {
	kept := v.messages[:0]
	for _, msg := range v.messages {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	v.messages = kept
}

func isTemp(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
