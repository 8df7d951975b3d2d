package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/utils"
	"go.uber.org/zap"
)

// MessageService is the server side of the order chat
type MessageService struct {
	store  MessageStore
	orders *OrderService
	blobs  BlobStorage
	logger *zap.Logger
	now    func() time.Time
}

// NewMessageService wires a MessageService
func NewMessageService(store MessageStore, orders *OrderService, blobs BlobStorage, logger *zap.Logger) *MessageService {
	return &MessageService{
		store:  store,
		orders: orders,
		blobs:  blobs,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source (used by tests)
func (s *MessageService) SetClock(now func() time.Time) {
	s.now = now
}

// GetOrderMessages returns an order's conversation oldest first with fresh attachment URLs
func (s *MessageService) GetOrderMessages(ctx context.Context, actor Actor, orderID string) ([]models.Message, error) {
	if _, err := s.orders.loadForActor(ctx, actor, orderID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, orderID)
	if err != nil {
		return nil, utils.Internal(utils.CodeDatabase, "Failed to fetch messages", err)
	}
	for i := range messages {
		for j := range messages[i].Attachments {
			att := &messages[i].Attachments[j]
			if att.StorageKey == "" {
				continue
			}
			if url, err := s.blobs.URL(ctx, att.StorageKey); err == nil {
				att.URL = url
			}
		}
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// SendOrderMessage posts a text message to an order conversation
func (s *MessageService) SendOrderMessage(ctx context.Context, actor Actor, orderID, text string) (*models.Message, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.NewAppError(utils.CodeEmptyMessage, "Message must not be empty", http.StatusBadRequest, nil)
	}
	if _, err := s.orders.loadForActor(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.create(ctx, actor, orderID, text, nil)
}

// SendOrderMessageWithAttachment stores the file, then posts the message referencing it.
// The blob is removed again if the message cannot be written.
func (s *MessageService) SendOrderMessageWithAttachment(ctx context.Context, actor Actor, orderID, text string, file UploadFile) (*models.Message, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.orders.loadForActor(ctx, actor, orderID); err != nil {
		return nil, err
	}

	contentType, body, err := prepareUpload(file, utils.ChatAttachmentRules)
	if err != nil {
		return nil, err
	}

	key := utils.BuildStorageKey(file.Name, s.now(), "orders", orderID, "messages")
	meta, url, err := storeBlob(ctx, s.blobs, s.logger, key, contentType, body, file.Size)
	if err != nil {
		return nil, err
	}

	attachment := models.Attachment{
		Name:       file.Name,
		URL:        url,
		StorageKey: key,
		Type:       contentType,
		Size:       meta.Size,
	}
	msg, err := s.create(ctx, actor, orderID, strings.TrimSpace(text), []models.Attachment{attachment})
	if err != nil {
		cleanupBlob(ctx, s.blobs, s.logger, key)
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) create(ctx context.Context, actor Actor, orderID, text string, attachments []models.Attachment) (*models.Message, error) {
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	msg := &models.Message{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		SenderID:    actor.UID,
		SenderName:  actor.DisplayName,
		SenderRole:  models.SenderRoleFor(actor.Role),
		Message:     text,
		Attachments: attachments,
		Timestamp:   s.now(),
		IsRead:      false,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, utils.Internal(utils.CodeDatabase, "Failed to create message", err)
	}

	// the timeline entry is best effort; the message itself is already stored
	summary := fmt.Sprintf("New message from %s", actor.DisplayName)
	if _, err := s.orders.appendEvent(ctx, orderID, models.EventMessageSent, summary, actor.UID); err != nil {
		s.logger.Warn("Failed to record message on order timeline",
			zap.String("order_id", orderID),
			zap.String("message_id", msg.ID),
			zap.Error(err))
	}
	return msg, nil
}

// MarkOrderMessagesAsRead marks every message the actor did not send as read and returns how many changed
func (s *MessageService) MarkOrderMessagesAsRead(ctx context.Context, actor Actor, orderID string) (int64, error) {
	if _, err := s.orders.loadForActor(ctx, actor, orderID); err != nil {
		return 0, err
	}
	count, err := s.store.MarkMessagesRead(ctx, orderID, actor.UID)
	if err != nil {
		return 0, utils.Internal(utils.CodeDatabase, "Failed to mark messages as read", err)
	}
	return count, nil
}

// UnreadCount counts messages the actor has not read yet
func (s *MessageService) UnreadCount(ctx context.Context, actor Actor, orderID string) (int64, error) {
	if _, err := s.orders.loadForActor(ctx, actor, orderID); err != nil {
		return 0, err
	}
	count, err := s.store.CountUnread(ctx, orderID, actor.UID)
	if err != nil {
		return 0, utils.Internal(utils.CodeDatabase, "Failed to count unread messages", err)
	}
	return count, nil
}
