package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// OrderServiceConfig holds the order workflow switches
type OrderServiceConfig struct {
	Policy                     models.TransitionPolicy
	PaymentFailureCancelsOrder bool
	Retry                      RetryConfig
}

// OrderService owns the order lifecycle: creation, status and payment transitions,
// the append-only timeline and deletion
type OrderService struct {
	store     OrderStore
	catalog   CatalogStore
	messages  MessageStore
	blobs     BlobStorage
	publisher EventPublisher
	logger    *zap.Logger
	cfg       OrderServiceConfig
	now       func() time.Time
}

// NewOrderService wires an OrderService. A nil publisher disables event publishing.
func NewOrderService(store Store, blobs BlobStorage, publisher EventPublisher, logger *zap.Logger, cfg OrderServiceConfig) *OrderService {
	if publisher == nil {
		publisher = NoopEventPublisher{}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultConflictRetry
	}
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger
	}
	if cfg.Policy.Mode == "" {
		cfg.Policy = models.NewTransitionPolicy(string(models.TransitionPermissive))
	}
	return &OrderService{
		store:     store,
		catalog:   store,
		messages:  store,
		blobs:     blobs,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock overrides the time source (used by tests)
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

// Policy returns the active transition policy
func (s *OrderService) Policy() models.TransitionPolicy {
	return s.cfg.Policy
}

// CreateOrderInput is what a client submits when buying a service
type CreateOrderInput struct {
	ServiceID   string
	ServiceName string
	Amount      *float64
	Currency    string
	Notes       string
}

// PaymentUpdate is a payment gateway outcome for an order
type PaymentUpdate struct {
	PaymentID       string
	PaymentStatus   string
	PaymentResponse string
}

// ListOrdersQuery is the filter, sort and page requested by a caller
type ListOrdersQuery struct {
	Status        string
	PaymentStatus string
	ClientID      string
	ServiceID     string
	Search        string
	SortBy        string
	SortOrder     string
	Page          utils.PaginationParams
}

// OrderPage is one page of orders
type OrderPage struct {
	Orders []models.Order `json:"orders"`
	Page   utils.PageInfo `json:"pagination"`
}

func (s *OrderService) orderError(err error) error {
	var appErr *utils.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ErrDocumentNotFound):
		return utils.NotFound(utils.CodeDocumentNotFound, "Document", err)
	case errors.Is(err, ErrRecordNotFound):
		return utils.NotFound(utils.CodeOrderNotFound, "Order", err)
	case errors.Is(err, ErrVersionConflict):
		return utils.Conflict(utils.CodeVersionConflict, "Order was modified concurrently, please retry", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return utils.Internal(utils.CodeDatabase, "Failed to access order", err)
}

// decorate fills read-time fields
func (s *OrderService) decorate(ctx context.Context, order *models.Order) {
	order.IsTerminal = order.Status.IsTerminal()
	order.FillEmptyCollections()
	for i := range order.Documents {
		doc := &order.Documents[i]
		url, err := s.blobs.URL(ctx, doc.StorageKey)
		if err != nil {
			s.logger.Warn("Failed to resolve document URL",
				zap.String("order_id", order.ID),
				zap.String("document_id", doc.ID),
				zap.Error(err))
			continue
		}
		doc.URL = url
	}
}

// loadForActor fetches an order and checks the actor may see it
func (s *OrderService) loadForActor(ctx context.Context, actor Actor, orderID string) (*models.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.orderError(err)
	}
	if !canAccessOrder(actor, order) {
		return nil, utils.Forbidden("You do not have permission to access this order")
	}
	return order, nil
}

// mutate runs a read-modify-write against the order, retrying version conflicts.
// build sees the freshly loaded order and returns the change to apply.
func (s *OrderService) mutate(ctx context.Context, orderID string, build func(order *models.Order, now time.Time) (OrderMutation, error)) (*models.Order, error) {
	var (
		updated  *models.Order
		appended []models.OrderEvent
	)
	err := retryOn(ctx, s.cfg.Retry, ErrVersionConflict, func() error {
		order, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		m, err := build(order, now)
		if err != nil {
			return err
		}
		m.ExpectedVersion = order.Version
		updated, err = s.store.ApplyOrderMutation(ctx, orderID, m, now)
		appended = m.AppendEvents
		return err
	})
	if err != nil {
		return nil, s.orderError(err)
	}

	s.publisher.Publish(ctx, updated, appended)
	s.decorate(ctx, updated)
	return updated, nil
}

// appendEvent records a free-form event without touching status
func (s *OrderService) appendEvent(ctx context.Context, orderID, kind, message, updatedBy string) (*models.Order, error) {
	return s.mutate(ctx, orderID, func(order *models.Order, now time.Time) (OrderMutation, error) {
		return OrderMutation{
			AppendEvents: []models.OrderEvent{models.NewOrderEvent(kind, message, updatedBy, now)},
		}, nil
	})
}

// CreateOrder places a new pending order for the acting client
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*models.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleClient {
		return nil, utils.Forbidden("Only clients can create orders")
	}

	order := &models.Order{
		ID:            uuid.NewString(),
		ClientID:      actor.UID,
		ServiceID:     in.ServiceID,
		ServiceName:   strings.TrimSpace(in.ServiceName),
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Currency:      strings.ToUpper(strings.TrimSpace(in.Currency)),
		Notes:         in.Notes,
		Version:       1,
	}

	if in.ServiceID != "" {
		svc, err := s.catalog.GetService(ctx, in.ServiceID)
		if errors.Is(err, ErrRecordNotFound) {
			return nil, utils.NotFound(utils.CodeServiceNotFound, "Service", err)
		}
		if err != nil {
			return nil, utils.Internal(utils.CodeDatabase, "Failed to load service", err)
		}
		if !svc.IsActive {
			return nil, utils.ValidationError("Service is not available for purchase", nil)
		}
		order.ServiceName = svc.Name
		order.Amount = svc.Price
		if order.Currency == "" {
			order.Currency = svc.Currency
		}
	}

	if in.Amount != nil {
		order.Amount = *in.Amount
	} else if in.ServiceID == "" {
		return nil, utils.ValidationError("Either service_id or amount is required", nil)
	}
	if order.Amount < 0 {
		return nil, utils.ValidationError("Amount must not be negative", nil)
	}
	if !currencyPattern.MatchString(order.Currency) {
		return nil, utils.ValidationError("Currency must be a three-letter ISO code", nil)
	}
	if order.ServiceName == "" {
		return nil, utils.ValidationError("service_name is required when no service_id is given", nil)
	}

	now := s.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Timeline = []models.OrderEvent{
		models.NewOrderEvent(string(models.OrderStatusPending), "Order placed", actor.UID, now),
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, utils.Internal(utils.CodeDatabase, "Failed to create order", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("client_id", order.ClientID),
		zap.Float64("amount", order.Amount),
		zap.String("currency", order.Currency))
	s.publisher.Publish(ctx, order, order.Timeline)
	s.decorate(ctx, order)
	return order, nil
}

// GetOrder returns one order with its timeline and documents
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID string) (*models.Order, error) {
	order, err := s.loadForActor(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, order)
	return order, nil
}

// ListOrders returns a filtered, sorted page of orders. Clients only ever see their own.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, q ListOrdersQuery) (*OrderPage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	filter := OrderFilter{
		ClientID:  q.ClientID,
		ServiceID: q.ServiceID,
		Search:    strings.TrimSpace(q.Search),
		SortBy:    q.SortBy,
		Limit:     q.Page.PageSize,
		Offset:    q.Page.Offset,
	}
	if !actor.IsStaff() {
		filter.ClientID = actor.UID
	}
	if q.Status != "" {
		status := models.OrderStatus(q.Status)
		if !status.Valid() {
			return nil, utils.ValidationError("Invalid status filter", nil).WithDetails(q.Status)
		}
		filter.Status = status
	}
	if q.PaymentStatus != "" {
		ps, err := models.ParsePaymentOutcome(q.PaymentStatus)
		if err != nil {
			return nil, utils.ValidationError("Invalid payment_status filter", err).WithDetails(q.PaymentStatus)
		}
		filter.PaymentStatus = ps
	}
	if filter.SortBy == "" {
		filter.SortBy = "created_at"
		filter.SortDesc = true
	} else if !ValidOrderSort(filter.SortBy) {
		return nil, utils.ValidationError("Invalid sort field", nil).WithDetails(filter.SortBy)
	}
	switch strings.ToLower(q.SortOrder) {
	case "asc":
		filter.SortDesc = false
	case "desc":
		filter.SortDesc = true
	case "":
	default:
		return nil, utils.ValidationError("sort_order must be asc or desc", nil)
	}

	orders, total, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, utils.Internal(utils.CodeDatabase, "Failed to fetch orders", err)
	}
	for i := range orders {
		orders[i].IsTerminal = orders[i].Status.IsTerminal()
		orders[i].FillEmptyCollections()
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderPage{Orders: orders, Page: utils.NewPageInfo(q.Page, total)}, nil
}

// UpdateOrderStatus moves an order to newStatus and appends exactly one timeline event
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor Actor, orderID string, newStatus models.OrderStatus, note string) (*models.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.CanManageOrders() {
		return nil, utils.Forbidden("Only admins and employees can update order status")
	}
	if !newStatus.Valid() {
		return nil, utils.ValidationError("Invalid order status", nil).WithDetails(string(newStatus))
	}

	order, err := s.mutate(ctx, orderID, func(order *models.Order, now time.Time) (OrderMutation, error) {
		if !s.cfg.Policy.Allows(order.Status, newStatus) {
			return OrderMutation{}, utils.Conflict(utils.CodeInvalidTransition,
				fmt.Sprintf("Cannot move order from %s to %s", order.Status, newStatus), nil)
		}
		return OrderMutation{
			Status:       &newStatus,
			AppendEvents: []models.OrderEvent{models.NewOrderEvent(string(newStatus), note, actor.UID, now)},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", string(newStatus)),
		zap.String("updated_by", actor.UID))
	return order, nil
}

// UpdateOrderPayment records a payment outcome and derives the order status from it
func (s *OrderService) UpdateOrderPayment(ctx context.Context, actor Actor, orderID string, in PaymentUpdate) (*models.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	paymentStatus, err := models.ParsePaymentOutcome(in.PaymentStatus)
	if err != nil {
		return nil, utils.ValidationError("Invalid payment status", err).WithDetails(in.PaymentStatus)
	}

	return s.mutate(ctx, orderID, func(order *models.Order, now time.Time) (OrderMutation, error) {
		if !actor.CanManageOrders() && order.ClientID != actor.UID {
			return OrderMutation{}, utils.Forbidden("You do not have permission to update payment for this order")
		}

		m := OrderMutation{PaymentStatus: &paymentStatus}
		if in.PaymentID != "" {
			m.PaymentID = &in.PaymentID
		}
		if in.PaymentResponse != "" {
			m.PaymentResponse = &in.PaymentResponse
		}

		var (
			target  models.OrderStatus
			message string
		)
		switch paymentStatus {
		case models.PaymentStatusCompleted:
			target = models.OrderStatusProcessing
			message = "Payment completed"
		case models.PaymentStatusFailed:
			message = "Payment failed"
			if s.cfg.PaymentFailureCancelsOrder {
				target = models.OrderStatusCancelled
			}
		default:
			message = "Payment pending"
		}
		if in.PaymentID != "" {
			message = fmt.Sprintf("%s (payment %s)", message, in.PaymentID)
		}

		kind := models.EventPaymentUpdated
		if target != "" && s.cfg.Policy.Allows(order.Status, target) {
			m.Status = &target
			kind = string(target)
		}
		m.AppendEvents = []models.OrderEvent{models.NewOrderEvent(kind, message, actor.UID, now)}
		return m, nil
	})
}

// AddOrderNote appends a staff note to the timeline
func (s *OrderService) AddOrderNote(ctx context.Context, actor Actor, orderID, note string) (*models.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.CanManageOrders() {
		return nil, utils.Forbidden("Only admins and employees can add notes")
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, utils.ValidationError("Note must not be empty", nil)
	}
	return s.appendEvent(ctx, orderID, models.EventNote, note, actor.UID)
}

// DeleteOrder removes an order with its documents, messages and their blobs
func (s *OrderService) DeleteOrder(ctx context.Context, actor Actor, orderID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return utils.Forbidden("Only admins can delete orders")
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return s.orderError(err)
	}
	messages, err := s.messages.ListMessages(ctx, orderID)
	if err != nil {
		return utils.Internal(utils.CodeDatabase, "Failed to load order messages", err)
	}

	var blobErr error
	for _, doc := range order.Documents {
		blobErr = multierr.Append(blobErr, s.blobs.Delete(ctx, doc.StorageKey))
	}
	for _, msg := range messages {
		for _, att := range msg.Attachments {
			blobErr = multierr.Append(blobErr, s.blobs.Delete(ctx, att.StorageKey))
		}
	}
	if blobErr != nil {
		s.logger.Warn("Some order blobs could not be deleted",
			zap.String("order_id", orderID),
			zap.Int("failures", len(multierr.Errors(blobErr))),
			zap.Error(blobErr))
	}

	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return s.orderError(err)
	}
	s.logger.Info("Order deleted", zap.String("order_id", orderID), zap.String("deleted_by", actor.UID))
	return nil
}
