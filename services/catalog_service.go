package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/utils"
	"go.uber.org/zap"
)

// ServiceInput is the editable part of a catalog entry
type ServiceInput struct {
	Name         string
	Description  string
	Category     string
	Price        float64
	Currency     string
	Features     []string
	Deliverables []string
	IsActive     *bool
}

// CatalogService manages the service catalog clients buy from
type CatalogService struct {
	store  CatalogStore
	images ImageService
	logger *zap.Logger
	now    func() time.Time
}

// NewCatalogService wires a CatalogService
func NewCatalogService(store CatalogStore, images ImageService, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, images: images, logger: logger, now: time.Now}
}

func serviceError(err error) error {
	var appErr *utils.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ErrRecordNotFound):
		return utils.NotFound(utils.CodeServiceNotFound, "Service", err)
	}
	return utils.Internal(utils.CodeDatabase, "Failed to access service catalog", err)
}

func (s *CatalogService) withImageURL(ctx context.Context, svc *models.Service) {
	if svc.Image == nil {
		return
	}
	url, err := s.images.GetImageURL(ctx, *svc.Image)
	if err != nil {
		s.logger.Warn("Failed to resolve service image URL", zap.String("service_id", svc.ID), zap.Error(err))
		return
	}
	svc.ImageURL = url
}

func (in ServiceInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return utils.ValidationError("name is required", nil)
	}
	if in.Price < 0 {
		return utils.ValidationError("price must not be negative", nil)
	}
	if in.Currency != "" && !currencyPattern.MatchString(strings.ToUpper(in.Currency)) {
		return utils.ValidationError("Currency must be a three-letter ISO code", nil)
	}
	return nil
}

func (in ServiceInput) apply(svc *models.Service) {
	svc.Name = strings.TrimSpace(in.Name)
	svc.Description = in.Description
	svc.Category = in.Category
	svc.Price = in.Price
	if in.Currency != "" {
		svc.Currency = strings.ToUpper(in.Currency)
	}
	if svc.Currency == "" {
		svc.Currency = "INR"
	}
	svc.Features = in.Features
	if svc.Features == nil {
		svc.Features = []string{}
	}
	svc.Deliverables = in.Deliverables
	if svc.Deliverables == nil {
		svc.Deliverables = []string{}
	}
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
}

// ListServices returns the catalog. Inactive entries are only shown to staff.
func (s *CatalogService) ListServices(ctx context.Context, actor Actor, includeInactive bool) ([]models.Service, error) {
	services, err := s.store.ListServices(ctx, !(includeInactive && actor.IsStaff()))
	if err != nil {
		return nil, serviceError(err)
	}
	for i := range services {
		s.withImageURL(ctx, &services[i])
	}
	if services == nil {
		services = []models.Service{}
	}
	return services, nil
}

// GetService returns one catalog entry
func (s *CatalogService) GetService(ctx context.Context, actor Actor, id string) (*models.Service, error) {
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return nil, serviceError(err)
	}
	if !svc.IsActive && !actor.IsStaff() {
		return nil, utils.NotFound(utils.CodeServiceNotFound, "Service", nil)
	}
	s.withImageURL(ctx, svc)
	return svc, nil
}

// CreateService adds a catalog entry, active unless stated otherwise
func (s *CatalogService) CreateService(ctx context.Context, actor Actor, in ServiceInput) (*models.Service, error) {
	if !actor.IsAdmin() {
		return nil, utils.Forbidden("Only admins can manage services")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	svc := &models.Service{ID: uuid.NewString(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	in.apply(svc)
	if err := s.store.CreateService(ctx, svc); err != nil {
		return nil, serviceError(err)
	}
	s.logger.Info("Service created", zap.String("service_id", svc.ID), zap.String("name", svc.Name))
	return svc, nil
}

// UpdateService replaces the editable fields of a catalog entry
func (s *CatalogService) UpdateService(ctx context.Context, actor Actor, id string, in ServiceInput) (*models.Service, error) {
	if !actor.IsAdmin() {
		return nil, utils.Forbidden("Only admins can manage services")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return nil, serviceError(err)
	}
	in.apply(svc)
	svc.UpdatedAt = s.now()
	if err := s.store.UpdateService(ctx, svc); err != nil {
		return nil, serviceError(err)
	}
	s.withImageURL(ctx, svc)
	return svc, nil
}

// UploadServiceImage replaces a catalog entry's image
func (s *CatalogService) UploadServiceImage(ctx context.Context, actor Actor, id string, file UploadFile) (*models.Service, error) {
	if !actor.IsAdmin() {
		return nil, utils.Forbidden("Only admins can manage services")
	}
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return nil, serviceError(err)
	}

	key, err := s.images.UploadImage(ctx, "services/"+id, file)
	if err != nil {
		return nil, err
	}
	previous := svc.Image
	svc.Image = &key
	svc.UpdatedAt = s.now()
	if err := s.store.UpdateService(ctx, svc); err != nil {
		if delErr := s.images.DeleteImage(ctx, key); delErr != nil {
			s.logger.Error("Failed to clean up orphaned image", zap.String("key", key), zap.Error(delErr))
		}
		return nil, serviceError(err)
	}
	if previous != nil {
		if err := s.images.DeleteImage(ctx, *previous); err != nil {
			s.logger.Warn("Failed to delete previous service image", zap.String("key", *previous), zap.Error(err))
		}
	}
	s.withImageURL(ctx, svc)
	return svc, nil
}

// DeleteService removes a catalog entry and its image. Existing orders keep their denormalized name.
func (s *CatalogService) DeleteService(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return utils.Forbidden("Only admins can manage services")
	}
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return serviceError(err)
	}
	if err := s.store.DeleteService(ctx, id); err != nil {
		return serviceError(err)
	}
	if svc.Image != nil {
		if err := s.images.DeleteImage(ctx, *svc.Image); err != nil {
			s.logger.Warn("Failed to delete service image", zap.String("key", *svc.Image), zap.Error(err))
		}
	}
	return nil
}
