package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/storage"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

const materialCategory = "materials"

type materialService struct {
	repo      repositories.Repository
	store     *storage.Store
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validator *validator.Validator
	maxSize   int64
}

func NewMaterialService(
	repo repositories.Repository,
	store *storage.Store,
	publisher events.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	validator *validator.Validator,
	maxSize int64,
) MaterialService {
	return &materialService{
		repo:      repo,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		validator: validator,
		maxSize:   maxSize,
	}
}

func (s *materialService) Upload(ctx context.Context, actor Actor, upload *MaterialUpload) (*models.Material, error) {
	title := strings.TrimSpace(upload.Title)
	switch {
	case title == "":
		return nil, NewValidationError("title", "is required", nil)
	case len(title) > 200:
		return nil, NewValidationError("title", "must be at most 200 characters", nil)
	case upload.Content == nil:
		return nil, NewValidationError("file", "is required", nil)
	}
	if _, err := requireClassManager(ctx, s.repo, actor, upload.ClassID, "material", "upload"); err != nil {
		return nil, err
	}

	stored, err := s.store.Save(ctx, materialCategory, upload.Content, storage.Policy{
		MaxSize: s.maxSize,
		Allowed: storage.MaterialTypes,
	})
	if err != nil {
		return nil, err
	}

	material := &models.Material{
		ClassID:     upload.ClassID,
		Title:       title,
		Description: upload.Description,
		FileName:    cleanFileName(upload.FileName, stored.Key),
		StorageKey:  stored.Key,
		MimeType:    stored.MimeType,
		Size:        stored.Size,
		UploadedBy:  actor.ID,
	}
	if err := s.repo.Material().Create(ctx, material); err != nil {
		s.removeFile(stored.Key)
		return nil, fmt.Errorf("failed to create material: %w", err)
	}
	s.metrics.Upload(materialCategory)

	s.logger.Info("Material uploaded",
		"material_id", material.ID,
		"class_id", material.ClassID,
		"mime_type", material.MimeType,
		"size", material.Size,
		"uploaded_by", actor.ID)
	publishEvent(ctx, s.publisher, s.logger, events.TopicMaterials, events.MaterialUploaded, events.MaterialEvent{
		MaterialID: material.ID,
		ClassID:    material.ClassID,
		Title:      material.Title,
		UploadedBy: actor.ID,
	})
	return material, nil
}

// cleanFileName keeps the base name the client sent, falling back to the
// stored key.
func cleanFileName(name, key string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return path.Base(key)
	}
	if len(name) > 255 {
		ext := path.Ext(name)
		name = name[:255-len(ext)] + ext
	}
	return name
}

func (s *materialService) load(ctx context.Context, id uint) (*models.Material, error) {
	material, err := s.repo.Material().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrMaterialNotFound, "get material")
	}
	return material, nil
}

func (s *materialService) GetByID(ctx context.Context, actor Actor, id uint) (*models.Material, error) {
	material, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := requireClassReader(ctx, s.repo, actor, material.ClassID, "material", "view"); err != nil {
		return nil, err
	}
	return material, nil
}

func (s *materialService) List(ctx context.Context, actor Actor, filters MaterialListFilters) (*models.ListResponse[*models.Material], error) {
	page := filters.Pagination.Normalize()
	repoFilters := repositories.MaterialFilters{
		ListOptions: repositories.ListOptions{Pagination: page, Search: filters.Search},
		ClassID:     filters.ClassID,
	}
	switch {
	case actor.IsStaff():
	case actor.IsTeacher():
		repoFilters.TeacherID = &actor.ID
	default:
		repoFilters.StudentID = &actor.ID
	}

	materials, total, err := s.repo.Material().List(ctx, repoFilters)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return models.NewListResponse(materials, total, page), nil
}

func (s *materialService) Update(ctx context.Context, actor Actor, id uint, req *MaterialUpdateRequest) (*models.Material, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	material, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := requireClassManager(ctx, s.repo, actor, material.ClassID, "material", "update"); err != nil {
		return nil, err
	}

	if req.Title != nil {
		material.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		material.Description = req.Description
	}
	if err := s.repo.Material().Update(ctx, material); err != nil {
		return nil, notFoundAs(err, ErrMaterialNotFound, "update material")
	}
	return material, nil
}

func (s *materialService) Delete(ctx context.Context, actor Actor, id uint) error {
	material, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := requireClassManager(ctx, s.repo, actor, material.ClassID, "material", "delete"); err != nil {
		return err
	}
	if err := s.repo.Material().Delete(ctx, id); err != nil {
		return notFoundAs(err, ErrMaterialNotFound, "delete material")
	}
	s.removeFile(material.StorageKey)

	s.logger.Info("Material deleted", "material_id", id, "deleted_by", actor.ID)
	return nil
}

func (s *materialService) Download(ctx context.Context, actor Actor, id uint) (*FileDownload, error) {
	material, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	f, err := s.store.Open(material.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	modTime := material.UpdatedAt
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	return &FileDownload{
		Name:     material.FileName,
		MimeType: material.MimeType,
		ModTime:  modTime,
		Content:  f,
	}, nil
}

func (s *materialService) removeFile(key string) {
	if err := s.store.Delete(key); err != nil {
		s.logger.Warn("Failed to delete stored file", "key", key, "error", err)
	}
}

