package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kendall-kelly/consulting-portal-api/models"
	"gorm.io/gorm"
)

// GormStore implements Store on a SQL database through gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translateGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// isUniqueViolation matches duplicate key errors from both PostgreSQL and SQLite
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

func bySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

// Ping checks the underlying connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateOrder inserts the order together with its initial timeline
func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return translateGormError(s.db.WithContext(ctx).Create(order).Error)
}

// GetOrder loads an order with its timeline and documents in insertion order
func (s *GormStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Timeline", bySeq).
		Preload("Documents", bySeq).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &order, nil
}

// ListOrders returns one page of orders matching filter plus the total match count
func (s *GormStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.ServiceID != "" {
		query = query.Where("service_id = ?", filter.ServiceID)
	}
	if filter.Search != "" {
		term := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(service_name) LIKE ? OR LOWER(id) LIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column := "created_at"
	if ValidOrderSort(filter.SortBy) {
		column = filter.SortBy
	}
	direction := " ASC"
	if filter.SortDesc {
		direction = " DESC"
	}
	query = query.Order(column + direction).Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ApplyOrderMutation performs a compare-and-swap on the order version inside one transaction
func (s *GormStore) ApplyOrderMutation(ctx context.Context, orderID string, m OrderMutation, now time.Time) (*models.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		}
		if m.Status != nil {
			updates["status"] = *m.Status
		}
		if m.PaymentStatus != nil {
			updates["payment_status"] = *m.PaymentStatus
		}
		if m.PaymentID != nil {
			updates["payment_id"] = *m.PaymentID
		}
		if m.PaymentResponse != nil {
			updates["payment_response"] = *m.PaymentResponse
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND version = ?", orderID, m.ExpectedVersion).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrRecordNotFound
			}
			return ErrVersionConflict
		}

		if len(m.AppendEvents) > 0 {
			events := make([]models.OrderEvent, len(m.AppendEvents))
			copy(events, m.AppendEvents)
			for i := range events {
				events[i].OrderID = orderID
			}
			if err := tx.Create(&events).Error; err != nil {
				return err
			}
		}

		if m.AddDocument != nil {
			doc := *m.AddDocument
			doc.Seq = 0
			doc.OwnerID = orderID
			doc.OwnerType = models.OwnerOrder
			if err := tx.Create(&doc).Error; err != nil {
				return err
			}
		}

		if len(m.RemoveDocumentIDs) > 0 {
			res := tx.Where("id IN ? AND owner_type = ? AND owner_id = ?", m.RemoveDocumentIDs, models.OwnerOrder, orderID).
				Delete(&models.Document{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(m.RemoveDocumentIDs)) {
				return ErrDocumentNotFound
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateGormError(err)
	}
	return s.GetOrder(ctx, orderID)
}

// DeleteOrder removes the order and everything that hangs off it
func (s *GormStore) DeleteOrder(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_type = ? AND owner_id = ?", models.OwnerOrder, id).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

// CreateMessage inserts a chat message
func (s *GormStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return translateGormError(s.db.WithContext(ctx).Create(msg).Error)
}

// ListMessages returns an order's messages oldest first
func (s *GormStore) ListMessages(ctx context.Context, orderID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// MarkMessagesRead marks every unread message not sent by readerID as read
func (s *GormStore) MarkMessagesRead(ctx context.Context, orderID, readerID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("order_id = ? AND sender_id <> ? AND is_read = ?", orderID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread counts unread messages not sent by readerID
func (s *GormStore) CountUnread(ctx context.Context, orderID, readerID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("order_id = ? AND sender_id <> ? AND is_read = ?", orderID, readerID, false).
		Count(&count).Error
	return count, err
}

// CreateUser inserts a user, returning ErrDuplicate for a taken uid or email
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translateGormError(s.db.WithContext(ctx).Create(user).Error)
}

// GetUser loads a user by uid
func (s *GormStore) GetUser(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "uid = ?", uid).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &user, nil
}

// UpdateUser applies the non-nil profile fields
func (s *GormStore) UpdateUser(ctx context.Context, uid string, update UserUpdate) (*models.User, error) {
	fields := map[string]interface{}{}
	if update.DisplayName != nil {
		fields["display_name"] = *update.DisplayName
	}
	if update.PhotoURL != nil {
		fields["photo_url"] = *update.PhotoURL
	}
	if update.Phone != nil {
		fields["phone"] = *update.Phone
	}
	if update.Address != nil {
		fields["address"] = *update.Address
	}
	if update.CompanyName != nil {
		fields["company_name"] = *update.CompanyName
	}
	if update.TaxID != nil {
		fields["tax_id"] = *update.TaxID
	}
	if len(fields) > 0 {
		res := s.db.WithContext(ctx).Model(&models.User{}).Where("uid = ?", uid).Updates(fields)
		if res.Error != nil {
			return nil, translateGormError(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrRecordNotFound
		}
	}
	return s.GetUser(ctx, uid)
}

// TouchSignIn records the latest sign-in time
func (s *GormStore) TouchSignIn(ctx context.Context, uid string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("uid = ?", uid).Update("last_sign_in_time", at).Error
}

// ListUsersByRole returns users holding role, newest first
func (s *GormStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if role != "" {
		query = query.Where("role = ?", role)
	}
	err := query.Find(&users).Error
	return users, err
}

// SetUserRole changes a user's role
func (s *GormStore) SetUserRole(ctx context.Context, uid string, role models.Role) (*models.User, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("uid = ?", uid).Update("role", role)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return s.GetUser(ctx, uid)
}

// DeleteUser removes a user and their profile documents
func (s *GormStore) DeleteUser(ctx context.Context, uid string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_type = ? AND owner_id = ?", models.OwnerUser, uid).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		res := tx.Where("uid = ?", uid).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

// AddUserDocument attaches a document to a user profile
func (s *GormStore) AddUserDocument(ctx context.Context, uid string, doc *models.Document) error {
	if _, err := s.GetUser(ctx, uid); err != nil {
		return err
	}
	doc.OwnerID = uid
	doc.OwnerType = models.OwnerUser
	return translateGormError(s.db.WithContext(ctx).Create(doc).Error)
}

// RemoveUserDocument detaches a document from a user profile
func (s *GormStore) RemoveUserDocument(ctx context.Context, uid, documentID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND owner_type = ? AND owner_id = ?", documentID, models.OwnerUser, uid).
		Delete(&models.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListUserDocuments returns a user's profile documents in upload order
func (s *GormStore) ListUserDocuments(ctx context.Context, uid string) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", models.OwnerUser, uid).
		Order("seq ASC").
		Find(&docs).Error
	return docs, err
}

// CreateService inserts a catalog entry
func (s *GormStore) CreateService(ctx context.Context, svc *models.Service) error {
	return translateGormError(s.db.WithContext(ctx).Create(svc).Error)
}

// GetService loads a catalog entry
func (s *GormStore) GetService(ctx context.Context, id string) (*models.Service, error) {
	var svc models.Service
	if err := s.db.WithContext(ctx).First(&svc, "id = ?", id).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &svc, nil
}

// ListServices returns the catalog ordered by name
func (s *GormStore) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	var services []models.Service
	query := s.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&services).Error
	return services, err
}

// UpdateService saves every field of a catalog entry
func (s *GormStore) UpdateService(ctx context.Context, svc *models.Service) error {
	res := s.db.WithContext(ctx).Model(svc).Select("*").Omit("created_at").Updates(svc)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteService removes a catalog entry
func (s *GormStore) DeleteService(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Service{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
