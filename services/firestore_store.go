package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore collection names
const (
	ordersCollection   = "orders"
	messagesCollection = "messages"
	usersCollection    = "users"
	servicesCollection = "services"
)

// FirestoreStore implements Store on Cloud Firestore. Timelines and documents are
// embedded arrays on their owning record, so every order mutation is one transaction.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps a Firestore client
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func translateFirestoreError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return ErrRecordNotFound
	case codes.AlreadyExists:
		return ErrDuplicate
	}
	return err
}

// Ping performs a cheap read to verify connectivity
func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.client.Collection(servicesCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

// CreateOrder stores a new order document
func (s *FirestoreStore) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.client.Collection(ordersCollection).Doc(order.ID).Create(ctx, order)
	return translateFirestoreError(err)
}

// GetOrder loads one order
func (s *FirestoreStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	doc, err := s.client.Collection(ordersCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translateFirestoreError(err)
	}
	var order models.Order
	if err := doc.DataTo(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders filters by equality in Firestore and applies search and paging in memory
func (s *FirestoreStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := s.client.Collection(ordersCollection).Query
	if filter.ClientID != "" {
		query = query.Where("clientId", "==", filter.ClientID)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	if filter.PaymentStatus != "" {
		query = query.Where("paymentStatus", "==", string(filter.PaymentStatus))
	}
	if filter.ServiceID != "" {
		query = query.Where("serviceId", "==", filter.ServiceID)
	}

	field := orderSortColumns["created_at"]
	if ValidOrderSort(filter.SortBy) {
		field = orderSortColumns[filter.SortBy]
	}
	dir := firestore.Asc
	if filter.SortDesc {
		dir = firestore.Desc
	}
	query = query.OrderBy(field, dir)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []models.Order
	search := strings.ToLower(filter.Search)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		var order models.Order
		if err := doc.DataTo(&order); err != nil {
			return nil, 0, err
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(order.ServiceName), search) &&
			!strings.Contains(strings.ToLower(order.ID), search) {
			continue
		}
		// list views carry no timeline or documents, same as the SQL store
		order.Timeline = nil
		order.Documents = nil
		orders = append(orders, order)
	}

	total := int64(len(orders))
	if filter.Limit > 0 {
		start := filter.Offset
		if start > len(orders) {
			start = len(orders)
		}
		end := start + filter.Limit
		if end > len(orders) {
			end = len(orders)
		}
		orders = orders[start:end]
	}
	return orders, total, nil
}

// ApplyOrderMutation reads, checks the version and rewrites the order in one transaction
func (s *FirestoreStore) ApplyOrderMutation(ctx context.Context, orderID string, m OrderMutation, now time.Time) (*models.Order, error) {
	ref := s.client.Collection(ordersCollection).Doc(orderID)
	var result models.Order

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var order models.Order
		if err := doc.DataTo(&order); err != nil {
			return err
		}
		if order.Version != m.ExpectedVersion {
			return ErrVersionConflict
		}
		seen := make(map[string]bool, len(m.RemoveDocumentIDs))
		for _, id := range m.RemoveDocumentIDs {
			if seen[id] || order.FindDocument(id) < 0 {
				return ErrDocumentNotFound
			}
			seen[id] = true
		}

		applyToOrder(&order, m, now)
		if err := tx.Set(ref, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, translateFirestoreError(err)
	}
	return &result, nil
}

// DeleteOrder removes an order and its messages
func (s *FirestoreStore) DeleteOrder(ctx context.Context, id string) error {
	ref := s.client.Collection(ordersCollection).Doc(id)
	if _, err := ref.Get(ctx); err != nil {
		return translateFirestoreError(err)
	}

	iter := s.client.Collection(messagesCollection).Where("orderId", "==", id).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return err
		}
	}

	_, err := ref.Delete(ctx)
	return translateFirestoreError(err)
}

// CreateMessage stores a chat message
func (s *FirestoreStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.client.Collection(messagesCollection).Doc(msg.ID).Set(ctx, msg)
	return err
}

func (s *FirestoreStore) orderMessages(ctx context.Context, orderID string) ([]*firestore.DocumentSnapshot, error) {
	return s.client.Collection(messagesCollection).
		Where("orderId", "==", orderID).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx).
		GetAll()
}

// ListMessages returns an order's messages oldest first
func (s *FirestoreStore) ListMessages(ctx context.Context, orderID string) ([]models.Message, error) {
	docs, err := s.orderMessages(ctx, orderID)
	if err != nil {
		return nil, err
	}
	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		var msg models.Message
		if err := doc.DataTo(&msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *FirestoreStore) unreadRefs(ctx context.Context, orderID, readerID string) ([]*firestore.DocumentRef, error) {
	docs, err := s.client.Collection(messagesCollection).
		Where("orderId", "==", orderID).
		Where("isRead", "==", false).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, err
	}
	var refs []*firestore.DocumentRef
	for _, doc := range docs {
		sender, _ := doc.DataAt("senderId")
		if sender != readerID {
			refs = append(refs, doc.Ref)
		}
	}
	return refs, nil
}

// MarkMessagesRead marks every unread message not sent by readerID as read
func (s *FirestoreStore) MarkMessagesRead(ctx context.Context, orderID, readerID string) (int64, error) {
	refs, err := s.unreadRefs(ctx, orderID, readerID)
	if err != nil || len(refs) == 0 {
		return 0, err
	}
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, ref := range refs {
			if err := tx.Update(ref, []firestore.Update{{Path: "isRead", Value: true}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(refs)), nil
}

// CountUnread counts unread messages not sent by readerID
func (s *FirestoreStore) CountUnread(ctx context.Context, orderID, readerID string) (int64, error) {
	refs, err := s.unreadRefs(ctx, orderID, readerID)
	return int64(len(refs)), err
}

// CreateUser stores a new user, failing if the uid is taken
func (s *FirestoreStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.client.Collection(usersCollection).Doc(user.UID).Create(ctx, user)
	return translateFirestoreError(err)
}

// GetUser loads a user by uid
func (s *FirestoreStore) GetUser(ctx context.Context, uid string) (*models.User, error) {
	doc, err := s.client.Collection(usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		return nil, translateFirestoreError(err)
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies the non-nil profile fields
func (s *FirestoreStore) UpdateUser(ctx context.Context, uid string, update UserUpdate) (*models.User, error) {
	updates := []firestore.Update{{Path: "updatedAt", Value: time.Now()}}
	add := func(path string, value *string) {
		if value != nil {
			updates = append(updates, firestore.Update{Path: path, Value: *value})
		}
	}
	add("displayName", update.DisplayName)
	add("photoURL", update.PhotoURL)
	add("phone", update.Phone)
	add("address", update.Address)
	add("companyName", update.CompanyName)
	add("taxId", update.TaxID)

	if _, err := s.client.Collection(usersCollection).Doc(uid).Update(ctx, updates); err != nil {
		return nil, translateFirestoreError(err)
	}
	return s.GetUser(ctx, uid)
}

// TouchSignIn records the latest sign-in time
func (s *FirestoreStore) TouchSignIn(ctx context.Context, uid string, at time.Time) error {
	_, err := s.client.Collection(usersCollection).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "lastSignInTime", Value: at},
	})
	return translateFirestoreError(err)
}

// ListUsersByRole returns users holding role, newest first
func (s *FirestoreStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	query := s.client.Collection(usersCollection).Query
	if role != "" {
		query = query.Where("role", "==", string(role))
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		var user models.User
		if err := doc.DataTo(&user); err != nil {
			return nil, err
		}
		user.Documents = nil
		users = append(users, user)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

// SetUserRole changes a user's role
func (s *FirestoreStore) SetUserRole(ctx context.Context, uid string, role models.Role) (*models.User, error) {
	_, err := s.client.Collection(usersCollection).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "role", Value: string(role)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return nil, translateFirestoreError(err)
	}
	return s.GetUser(ctx, uid)
}

// DeleteUser removes a user document, embedded profile documents included
func (s *FirestoreStore) DeleteUser(ctx context.Context, uid string) error {
	ref := s.client.Collection(usersCollection).Doc(uid)
	if _, err := ref.Get(ctx); err != nil {
		return translateFirestoreError(err)
	}
	_, err := ref.Delete(ctx)
	return err
}

func (s *FirestoreStore) updateUserDocuments(ctx context.Context, uid string, fn func(user *models.User) error) error {
	ref := s.client.Collection(usersCollection).Doc(uid)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var user models.User
		if err := doc.DataTo(&user); err != nil {
			return err
		}
		if err := fn(&user); err != nil {
			return err
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "documents", Value: user.Documents},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	return translateFirestoreError(err)
}

// AddUserDocument appends a document to a user profile
func (s *FirestoreStore) AddUserDocument(ctx context.Context, uid string, doc *models.Document) error {
	doc.OwnerID = uid
	doc.OwnerType = models.OwnerUser
	return s.updateUserDocuments(ctx, uid, func(user *models.User) error {
		user.Documents = append(user.Documents, *doc)
		return nil
	})
}

// RemoveUserDocument removes a document from a user profile
func (s *FirestoreStore) RemoveUserDocument(ctx context.Context, uid, documentID string) error {
	return s.updateUserDocuments(ctx, uid, func(user *models.User) error {
		for i := range user.Documents {
			if user.Documents[i].ID == documentID {
				user.Documents = append(user.Documents[:i], user.Documents[i+1:]...)
				return nil
			}
		}
		return ErrRecordNotFound
	})
}

// ListUserDocuments returns a user's profile documents in upload order
func (s *FirestoreStore) ListUserDocuments(ctx context.Context, uid string) ([]models.Document, error) {
	user, err := s.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return user.Documents, nil
}

// CreateService stores a catalog entry
func (s *FirestoreStore) CreateService(ctx context.Context, svc *models.Service) error {
	_, err := s.client.Collection(servicesCollection).Doc(svc.ID).Create(ctx, svc)
	return translateFirestoreError(err)
}

// GetService loads a catalog entry
func (s *FirestoreStore) GetService(ctx context.Context, id string) (*models.Service, error) {
	doc, err := s.client.Collection(servicesCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translateFirestoreError(err)
	}
	var svc models.Service
	if err := doc.DataTo(&svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// ListServices returns the catalog ordered by name
func (s *FirestoreStore) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	query := s.client.Collection(servicesCollection).OrderBy("name", firestore.Asc)
	if activeOnly {
		query = query.Where("isActive", "==", true)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	services := make([]models.Service, 0, len(docs))
	for _, doc := range docs {
		var svc models.Service
		if err := doc.DataTo(&svc); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, nil
}

// UpdateService overwrites a catalog entry that must already exist
func (s *FirestoreStore) UpdateService(ctx context.Context, svc *models.Service) error {
	ref := s.client.Collection(servicesCollection).Doc(svc.ID)
	return translateFirestoreError(s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, svc)
	}))
}

// DeleteService removes a catalog entry
func (s *FirestoreStore) DeleteService(ctx context.Context, id string) error {
	ref := s.client.Collection(servicesCollection).Doc(id)
	if _, err := ref.Get(ctx); err != nil {
		return translateFirestoreError(err)
	}
	_, err := ref.Delete(ctx)
	return err
}
