package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultDownloadStagger spaces out batch downloads so browsers don't block them
const DefaultDownloadStagger = 300 * time.Millisecond

// batchDeleteConcurrency bounds parallel blob deletes in a batch
const batchDeleteConcurrency = 4

// UploadFile is a file received from a client
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// BatchDeleteResult is the outcome for one id in a batch delete
type BatchDeleteResult struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
	Error      string `json:"error,omitempty"`
}

// DownloadLink is a fresh URL for one document plus the delay the client should wait before fetching it
type DownloadLink struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	DelayMs    int64  `json:"delay_ms"`
}

// DocumentService manages documents attached to orders and user profiles.
// Every upload is validated before storage, written to blob storage, then recorded;
// a failed record write deletes the blob again.
type DocumentService struct {
	orders  *OrderService
	users   UserStore
	blobs   BlobStorage
	logger  *zap.Logger
	stagger time.Duration
	now     func() time.Time
}

// NewDocumentService wires a DocumentService on top of the order service
func NewDocumentService(orders *OrderService, users UserStore, blobs BlobStorage, logger *zap.Logger, stagger time.Duration) *DocumentService {
	return &DocumentService{
		orders:  orders,
		users:   users,
		blobs:   blobs,
		logger:  logger,
		stagger: stagger,
		now:     time.Now,
	}
}

// SetClock overrides the time source (used by tests)
func (s *DocumentService) SetClock(now func() time.Time) {
	s.now = now
}

// prepareUpload validates size and type, reading only the leading bytes.
// It returns the content type and a reader positioned at the start of the file.
func prepareUpload(file UploadFile, rules utils.UploadRules) (string, io.Reader, error) {
	if err := utils.ValidateFileSize(file.Size, rules); err != nil {
		return "", nil, err
	}
	head := make([]byte, utils.SniffLength)
	n, err := io.ReadFull(file.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, utils.ValidationError("Failed to read uploaded file", err)
	}
	head = head[:n]

	contentType, err := utils.ValidateDocumentFile(file.Size, head, file.ContentType, rules)
	if err != nil {
		return "", nil, err
	}
	return contentType, io.MultiReader(bytes.NewReader(head), file.Body), nil
}

// storeBlob uploads then reads back metadata and URL. Any failure after the write removes the blob.
func storeBlob(ctx context.Context, blobs BlobStorage, logger *zap.Logger, key, contentType string, body io.Reader, size int64) (*BlobObject, string, error) {
	if err := blobs.Upload(ctx, key, contentType, body, size); err != nil {
		return nil, "", utils.Internal(utils.CodeStorage, "Failed to upload file", err)
	}
	meta, err := blobs.Metadata(ctx, key)
	if err == nil {
		var url string
		url, err = blobs.URL(ctx, key)
		if err == nil {
			return meta, url, nil
		}
	}
	cleanupBlob(ctx, blobs, logger, key)
	return nil, "", utils.Internal(utils.CodeStorage, "Failed to read uploaded file", err)
}

// cleanupBlob deletes an orphaned blob; failure is only logged
func cleanupBlob(ctx context.Context, blobs BlobStorage, logger *zap.Logger, key string) {
	if err := blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.Error("Failed to clean up orphaned blob", zap.String("key", key), zap.Error(err))
	}
}

func parseCategory(category models.DocumentCategory) (models.DocumentCategory, error) {
	if category == "" {
		return models.CategoryOther, nil
	}
	if !category.Valid() {
		return "", utils.ValidationError("Invalid document category", nil).WithDetails(string(category))
	}
	return category, nil
}

func newDocument(name, key, url string, meta *BlobObject, contentType string, category models.DocumentCategory, uploadedBy string, now time.Time) models.Document {
	doc := models.Document{
		ID:         uuid.NewString(),
		Name:       name,
		StorageKey: key,
		URL:        url,
		Type:       contentType,
		Size:       meta.Size,
		Category:   category,
		UploadedBy: uploadedBy,
		UploadedAt: now,
	}
	if meta.ContentType != "" && meta.ContentType != "application/octet-stream" {
		doc.Type = meta.ContentType
	}
	return doc
}

// UploadOrderDocument validates, stores and attaches a document to an order
func (s *DocumentService) UploadOrderDocument(ctx context.Context, actor Actor, orderID string, file UploadFile, category models.DocumentCategory) (*models.Document, error) {
	category, err := parseCategory(category)
	if err != nil {
		return nil, err
	}
	if _, err := s.orders.loadForActor(ctx, actor, orderID); err != nil {
		return nil, err
	}

	contentType, body, err := prepareUpload(file, utils.OrderDocumentRules)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := utils.BuildStorageKey(file.Name, now, "orders", orderID, string(category))
	meta, url, err := storeBlob(ctx, s.blobs, s.logger, key, contentType, body, file.Size)
	if err != nil {
		return nil, err
	}

	doc := newDocument(file.Name, key, url, meta, contentType, category, actor.UID, now)
	_, err = s.orders.mutate(ctx, orderID, func(order *models.Order, now time.Time) (OrderMutation, error) {
		return OrderMutation{
			AddDocument: &doc,
			AppendEvents: []models.OrderEvent{
				models.NewOrderEvent(models.EventDocumentAdded, fmt.Sprintf("Document uploaded: %s", doc.Name), actor.UID, now),
			},
		}, nil
	})
	if err != nil {
		cleanupBlob(ctx, s.blobs, s.logger, key)
		return nil, err
	}

	s.logger.Info("Order document uploaded",
		zap.String("order_id", orderID),
		zap.String("document_id", doc.ID),
		zap.String("category", string(category)),
		zap.Int64("size", doc.Size))
	return &doc, nil
}

// ListOrderDocuments returns an order's documents, optionally narrowed to one category
func (s *DocumentService) ListOrderDocuments(ctx context.Context, actor Actor, orderID string, category models.DocumentCategory) ([]models.Document, error) {
	order, err := s.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if category != "" && !category.Valid() {
		return nil, utils.ValidationError("Invalid document category", nil).WithDetails(string(category))
	}
	docs := make([]models.Document, 0, len(order.Documents))
	for _, doc := range order.Documents {
		if category == "" || doc.Category == category {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// CategoryCounts returns how many documents an order holds per category
func (s *DocumentService) CategoryCounts(ctx context.Context, actor Actor, orderID string) (map[models.DocumentCategory]int, error) {
	order, err := s.orders.loadForActor(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.DocumentCategory]int, len(models.DocumentCategories))
	for _, c := range models.DocumentCategories {
		counts[c] = 0
	}
	for _, doc := range order.Documents {
		counts[doc.Category]++
	}
	return counts, nil
}

// DeleteOrderDocument deletes the blob and then the record. A blob failure leaves the record in place.
func (s *DocumentService) DeleteOrderDocument(ctx context.Context, actor Actor, orderID, documentID string) error {
	order, err := s.orders.loadForActor(ctx, actor, orderID)
	if err != nil {
		return err
	}
	i := order.FindDocument(documentID)
	if i < 0 {
		return utils.NotFound(utils.CodeDocumentNotFound, "Document", nil)
	}
	doc := order.Documents[i]

	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return utils.Internal(utils.CodeStorage, "Failed to delete file", err)
	}

	_, err = s.orders.mutate(ctx, orderID, s.removeDocuments(actor, []models.Document{doc}))
	if err != nil {
		return err
	}
	s.logger.Info("Order document deleted", zap.String("order_id", orderID), zap.String("document_id", documentID))
	return nil
}

// removeDocuments builds a mutation dropping docs that are still attached, with one event each
func (s *DocumentService) removeDocuments(actor Actor, docs []models.Document) func(*models.Order, time.Time) (OrderMutation, error) {
	return func(order *models.Order, now time.Time) (OrderMutation, error) {
		var m OrderMutation
		seen := make(map[string]bool, len(docs))
		for _, doc := range docs {
			if seen[doc.ID] || order.FindDocument(doc.ID) < 0 {
				continue
			}
			seen[doc.ID] = true
			m.RemoveDocumentIDs = append(m.RemoveDocumentIDs, doc.ID)
			m.AppendEvents = append(m.AppendEvents,
				models.NewOrderEvent(models.EventDocumentRemoved, fmt.Sprintf("Document deleted: %s", doc.Name), actor.UID, now))
		}
		if len(m.RemoveDocumentIDs) == 0 {
			return m, utils.NotFound(utils.CodeDocumentNotFound, "Document", nil)
		}
		return m, nil
	}
}

// BatchDeleteOrderDocuments deletes many documents concurrently. There is no rollback:
// successes stay deleted and failures are reported per id with a PARTIAL_FAILURE error.
func (s *DocumentService) BatchDeleteOrderDocuments(ctx context.Context, actor Actor, orderID string, documentIDs []string) ([]BatchDeleteResult, error) {
	documentIDs = uniqueIDs(documentIDs)
	if len(documentIDs) == 0 {
		return nil, utils.ValidationError("document_ids must not be empty", nil)
	}
	order, err := s.orders.loadForActor(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	results := make([]BatchDeleteResult, len(documentIDs))
	deleted := make([]*models.Document, len(documentIDs))
	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	fail := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		results[i].Error = err.Error()
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", results[i].DocumentID, err))
	}

	g.SetLimit(batchDeleteConcurrency)
	for i, id := range documentIDs {
		results[i].DocumentID = id
		idx := order.FindDocument(id)
		if idx < 0 {
			fail(i, utils.NotFound(utils.CodeDocumentNotFound, "Document", nil))
			continue
		}
		doc := order.Documents[idx]
		g.Go(func() error {
			if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
				fail(i, err)
				return nil
			}
			deleted[i] = &doc
			return nil
		})
	}
	_ = g.Wait()

	var toRemove []models.Document
	for _, doc := range deleted {
		if doc != nil {
			toRemove = append(toRemove, *doc)
		}
	}
	if len(toRemove) > 0 {
		if _, err := s.orders.mutate(ctx, orderID, s.removeDocuments(actor, toRemove)); err != nil {
			for i, doc := range deleted {
				if doc != nil {
					deleted[i] = nil
					fail(i, err)
				}
			}
		}
	}
	for i, doc := range deleted {
		if doc != nil {
			results[i].Deleted = true
		}
	}

	if errs != nil {
		s.logger.Warn("Batch document delete partially failed",
			zap.String("order_id", orderID),
			zap.Int("requested", len(documentIDs)),
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Error(errs))
		return results, utils.NewAppError(utils.CodePartialFailure,
			fmt.Sprintf("%d of %d documents could not be deleted", len(multierr.Errors(errs)), len(documentIDs)),
			http.StatusMultiStatus, errs).WithDetails(results)
	}
	return results, nil
}

// uniqueIDs drops blank and repeated ids, keeping first-seen order
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// DownloadLinks returns fresh URLs for the selected documents (all when ids is empty),
// each with a staggered delay hint
func (s *DocumentService) DownloadLinks(ctx context.Context, actor Actor, orderID string, documentIDs []string) ([]DownloadLink, error) {
	order, err := s.orders.loadForActor(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	docs := order.Documents
	if len(documentIDs) > 0 {
		docs = make([]models.Document, 0, len(documentIDs))
		for _, id := range documentIDs {
			idx := order.FindDocument(id)
			if idx < 0 {
				return nil, utils.NotFound(utils.CodeDocumentNotFound, "Document", nil).WithDetails(id)
			}
			docs = append(docs, order.Documents[idx])
		}
	}

	links := make([]DownloadLink, 0, len(docs))
	for i, doc := range docs {
		url, err := s.blobs.URL(ctx, doc.StorageKey)
		if err != nil {
			return nil, utils.Internal(utils.CodeStorage, "Failed to generate download link", err)
		}
		links = append(links, DownloadLink{
			DocumentID: doc.ID,
			Name:       doc.Name,
			URL:        url,
			DelayMs:    int64(i) * s.stagger.Milliseconds(),
		})
	}
	return links, nil
}

func (s *DocumentService) canManageUserDocuments(actor Actor, uid string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.UID != uid && !actor.IsAdmin() {
		return utils.Forbidden("You can only manage your own documents")
	}
	return nil
}

func (s *DocumentService) userError(err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return utils.NotFound(utils.CodeUserNotFound, "User", err)
	}
	return utils.Internal(utils.CodeDatabase, "Failed to access user", err)
}

// UploadUserDocument stores a profile document. Any file type is accepted up to the larger ceiling.
func (s *DocumentService) UploadUserDocument(ctx context.Context, actor Actor, uid string, file UploadFile, category models.DocumentCategory) (*models.Document, error) {
	if err := s.canManageUserDocuments(actor, uid); err != nil {
		return nil, err
	}
	category, err := parseCategory(category)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, uid); err != nil {
		return nil, s.userError(err)
	}

	contentType, body, err := prepareUpload(file, utils.UserDocumentRules)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := utils.BuildStorageKey(file.Name, now, "users", uid, string(category))
	meta, url, err := storeBlob(ctx, s.blobs, s.logger, key, contentType, body, file.Size)
	if err != nil {
		return nil, err
	}

	doc := newDocument(file.Name, key, url, meta, contentType, category, actor.UID, now)
	if err := s.users.AddUserDocument(ctx, uid, &doc); err != nil {
		cleanupBlob(ctx, s.blobs, s.logger, key)
		return nil, s.userError(err)
	}
	return &doc, nil
}

// ListUserDocuments returns a user's profile documents, optionally narrowed to one category
func (s *DocumentService) ListUserDocuments(ctx context.Context, actor Actor, uid string, category models.DocumentCategory) ([]models.Document, error) {
	if err := s.canManageUserDocuments(actor, uid); err != nil {
		return nil, err
	}
	docs, err := s.users.ListUserDocuments(ctx, uid)
	if err != nil {
		return nil, s.userError(err)
	}
	out := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		if category != "" && doc.Category != category {
			continue
		}
		if url, err := s.blobs.URL(ctx, doc.StorageKey); err == nil {
			doc.URL = url
		} else {
			s.logger.Warn("Failed to resolve document URL", zap.String("document_id", doc.ID), zap.Error(err))
		}
		out = append(out, doc)
	}
	return out, nil
}

// DeleteUserDocument deletes the blob then the profile record
func (s *DocumentService) DeleteUserDocument(ctx context.Context, actor Actor, uid, documentID string) error {
	if err := s.canManageUserDocuments(actor, uid); err != nil {
		return err
	}
	docs, err := s.users.ListUserDocuments(ctx, uid)
	if err != nil {
		return s.userError(err)
	}

	var doc *models.Document
	for i := range docs {
		if docs[i].ID == documentID {
			doc = &docs[i]
			break
		}
	}
	if doc == nil {
		return utils.NotFound(utils.CodeDocumentNotFound, "Document", nil)
	}

	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return utils.Internal(utils.CodeStorage, "Failed to delete file", err)
	}
	if err := s.users.RemoveUserDocument(ctx, uid, documentID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return utils.NotFound(utils.CodeDocumentNotFound, "Document", err)
		}
		return utils.Internal(utils.CodeDatabase, "Failed to delete document", err)
	}
	return nil
}
