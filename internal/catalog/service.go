package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrSectionNotFound indicates the referenced section document does not exist.
	ErrSectionNotFound = errors.New("catalog: section not found")
	// ErrResourceNotFound indicates the referenced resource document does not exist.
	ErrResourceNotFound = errors.New("catalog: resource not found")
	noOpLogger = zap.NewNop()
)

// ServiceError carries a dotted operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code exposes the dotted operation code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "catalog.service.new"
	opAddSection      = "catalog.add_section"
	opUpdateSection   = "catalog.update_section"
	opDeleteSection   = "catalog.delete_section"
	opAddResource     = "catalog.add_resource"
	opUpdateResource  = "catalog.update_resource"
	opDeleteResource  = "catalog.delete_resource"
	opGetResource     = "catalog.get_resource"
	opListSections    = "catalog.list_sections"
	opListResources   = "catalog.list_resources"
	opPublishSections = "catalog.publish_sections"
	opPublishLinks    = "catalog.publish_links"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// SnapshotPublisher receives full collection snapshots after every accepted
// write. Consumers treat the replayed snapshots as the sole source of truth;
// the service never patches any in-memory view directly.
type SnapshotPublisher interface {
	PublishSections(sections []Section)
	PublishSectionsError(err error)
	PublishResources(resources []Resource)
	PublishResourcesError(err error)
}

// ServiceConfig bundles the dependencies of the catalog service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Publisher  SnapshotPublisher
	Logger     *zap.Logger
}

// Service is the write gateway for the sections and links collections.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	publisher  SnapshotPublisher
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		publisher:  cfg.Publisher,
		logger:     logger,
	}, nil
}

// AddSection validates and persists a new section document.
func (s *Service) AddSection(ctx context.Context, draft Section, createdBy UserID) (Section, error) {
	if err := ValidateSection(draft); err != nil {
		return Section{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddSection, "id_generation_failed", err)
		return Section{}, newServiceError(opAddSection, "id_generation_failed", err)
	}

	draft.ID = id
	draft.CreatedBy = createdBy.String()
	if err := s.db.WithContext(ctx).Create(&draft).Error; err != nil {
		s.logError(opAddSection, "insert_failed", err, zap.String("section_id", id))
		return Section{}, newServiceError(opAddSection, "insert_failed", err)
	}

	s.replaySections(ctx)
	return draft, nil
}

// UpdateSection validates and applies a full-document update to a section.
func (s *Service) UpdateSection(ctx context.Context, section Section) (Section, error) {
	sectionID, err := NewSectionID(section.ID)
	if err != nil {
		return Section{}, err
	}
	if err := ValidateSection(section); err != nil {
		return Section{}, err
	}

	var existing Section
	err = s.db.WithContext(ctx).Where("id = ?", sectionID.String()).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Section{}, fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID.String())
	} else if err != nil {
		s.logError(opUpdateSection, "select_failed", err, zap.String("section_id", sectionID.String()))
		return Section{}, newServiceError(opUpdateSection, "select_failed", err)
	}

	existing.Title = section.Title
	existing.Description = section.Description
	existing.Color = section.Color
	existing.IconName = section.IconName
	existing.UpdatedAt = s.clock().UTC()

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		s.logError(opUpdateSection, "update_failed", err, zap.String("section_id", sectionID.String()))
		return Section{}, newServiceError(opUpdateSection, "update_failed", err)
	}

	s.replaySections(ctx)
	return existing, nil
}

// DeleteSection removes a section and cascades over its resources. The two
// collections offer no cross-collection transaction, so the cascade is two
// separate deletes; a failure of the second leaves orphaned resources that
// the reconciler hides until their own delete eventually lands.
func (s *Service) DeleteSection(ctx context.Context, id SectionID) error {
	if err := s.db.WithContext(ctx).
		Where("id = ?", id.String()).
		Delete(&Section{}).Error; err != nil {
		s.logError(opDeleteSection, "section_delete_failed", err, zap.String("section_id", id.String()))
		return newServiceError(opDeleteSection, "section_delete_failed", err)
	}

	cascadeErr := s.db.WithContext(ctx).
		Where("section_id = ?", id.String()).
		Delete(&Resource{}).Error

	s.replaySections(ctx)
	s.replayResources(ctx)

	if cascadeErr != nil {
		s.logError(opDeleteSection, "cascade_failed", cascadeErr, zap.String("section_id", id.String()))
		return newServiceError(opDeleteSection, "cascade_failed", cascadeErr)
	}
	return nil
}

// AddResource validates and persists a new resource under the given section.
func (s *Service) AddResource(ctx context.Context, draft Resource, sectionID SectionID, createdBy UserID) (Resource, error) {
	draft.SectionID = sectionID.String()
	if err := ValidateResource(draft); err != nil {
		return Resource{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddResource, "id_generation_failed", err)
		return Resource{}, newServiceError(opAddResource, "id_generation_failed", err)
	}

	draft.ID = id
	draft.CreatedBy = createdBy.String()
	if err := s.db.WithContext(ctx).Create(&draft).Error; err != nil {
		s.logError(opAddResource, "insert_failed", err, zap.String("resource_id", id))
		return Resource{}, newServiceError(opAddResource, "insert_failed", err)
	}

	s.replayResources(ctx)
	return draft, nil
}

// UpdateResource validates and applies a full-document update to a resource.
// The section reference is never moved by an update.
func (s *Service) UpdateResource(ctx context.Context, resource Resource) (Resource, error) {
	resourceID, err := NewResourceID(resource.ID)
	if err != nil {
		return Resource{}, err
	}

	var existing Resource
	err = s.db.WithContext(ctx).Where("id = ?", resourceID.String()).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Resource{}, fmt.Errorf("%w: %s", ErrResourceNotFound, resourceID.String())
	} else if err != nil {
		s.logError(opUpdateResource, "select_failed", err, zap.String("resource_id", resourceID.String()))
		return Resource{}, newServiceError(opUpdateResource, "select_failed", err)
	}

	resource.SectionID = existing.SectionID
	if err := ValidateResource(resource); err != nil {
		return Resource{}, err
	}

	existing.Type = resource.Type
	existing.Title = resource.Title
	existing.Description = resource.Description
	existing.Tags = resource.Tags
	existing.UpdatedAt = s.clock().UTC()
	switch resource.Type {
	case ResourceTypeFile:
		existing.URL = resource.URL
	case ResourceTypeTable:
		existing.TableData = resource.TableData
	case ResourceTypeNotes:
		existing.Content = resource.Content
	}

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		s.logError(opUpdateResource, "update_failed", err, zap.String("resource_id", resourceID.String()))
		return Resource{}, newServiceError(opUpdateResource, "update_failed", err)
	}

	s.replayResources(ctx)
	return existing, nil
}

// DeleteResource removes a single resource document.
func (s *Service) DeleteResource(ctx context.Context, id ResourceID) error {
	if err := s.db.WithContext(ctx).
		Where("id = ?", id.String()).
		Delete(&Resource{}).Error; err != nil {
		s.logError(opDeleteResource, "delete_failed", err, zap.String("resource_id", id.String()))
		return newServiceError(opDeleteResource, "delete_failed", err)
	}

	s.replayResources(ctx)
	return nil
}

// GetResource loads a single resource document by id.
func (s *Service) GetResource(ctx context.Context, id ResourceID) (Resource, error) {
	var resource Resource
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).Take(&resource).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Resource{}, fmt.Errorf("%w: %s", ErrResourceNotFound, id.String())
	} else if err != nil {
		s.logError(opGetResource, "select_failed", err, zap.String("resource_id", id.String()))
		return Resource{}, newServiceError(opGetResource, "select_failed", err)
	}
	return resource, nil
}

// ListSections returns all sections ordered by title ascending. The order is
// byte-wise, matching the backend-side sort consumers rely on.
func (s *Service) ListSections(ctx context.Context) ([]Section, error) {
	var sections []Section
	if err := s.db.WithContext(ctx).
		Order("title ASC").
		Find(&sections).Error; err != nil {
		s.logError(opListSections, "query_failed", err)
		return nil, newServiceError(opListSections, "query_failed", err)
	}
	return sections, nil
}

// ListResources returns all resources ordered by creation time ascending.
func (s *Service) ListResources(ctx context.Context) ([]Resource, error) {
	var resources []Resource
	if err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&resources).Error; err != nil {
		s.logError(opListResources, "query_failed", err)
		return nil, newServiceError(opListResources, "query_failed", err)
	}
	return resources, nil
}

// replaySections re-reads the sections collection and broadcasts the snapshot.
// Consumers only ever learn about writes through this replay.
func (s *Service) replaySections(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	sections, err := s.ListSections(ctx)
	if err != nil {
		s.logError(opPublishSections, "snapshot_query_failed", err)
		s.publisher.PublishSectionsError(err)
		return
	}
	s.publisher.PublishSections(sections)
}

func (s *Service) replayResources(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	resources, err := s.ListResources(ctx)
	if err != nil {
		s.logError(opPublishLinks, "snapshot_query_failed", err)
		s.publisher.PublishResourcesError(err)
		return
	}
	s.publisher.PublishResources(resources)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("catalog service error", attrs...)
}
