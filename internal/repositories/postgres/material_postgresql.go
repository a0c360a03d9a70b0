package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

var materialSortColumns = map[string]bool{
	"id":         true,
	"title":      true,
	"size":       true,
	"created_at": true,
}

type MaterialPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewMaterialPostgreSQL(db *gorm.DB) repositories.MaterialRepository {
	return &MaterialPostgreSQL{db: db, helpers: NewSharedHelpers()}
}

func (m *MaterialPostgreSQL) Create(ctx context.Context, material *models.Material) error {
	if err := m.db.WithContext(ctx).Omit("Class").Create(material).Error; err != nil {
		return translateError(err, "create material")
	}
	return nil
}

func (m *MaterialPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Material, error) {
	var material models.Material
	if err := m.db.WithContext(ctx).Preload("Class").First(&material, id).Error; err != nil {
		return nil, translateError(err, "get material")
	}
	return &material, nil
}

func (m *MaterialPostgreSQL) Update(ctx context.Context, material *models.Material) error {
	result := m.db.WithContext(ctx).Model(&models.Material{}).Where("id = ?", material.ID).Updates(map[string]interface{}{
		"title":       material.Title,
		"description": material.Description,
	})
	return checkAffected(result, "update material")
}

func (m *MaterialPostgreSQL) Delete(ctx context.Context, id uint) error {
	return checkAffected(m.db.WithContext(ctx).Delete(&models.Material{}, id), "delete material")
}

func (m *MaterialPostgreSQL) List(ctx context.Context, filters repositories.MaterialFilters) ([]*models.Material, int64, error) {
	db := m.db.WithContext(ctx)
	query := db.Model(&models.Material{})
	query = m.helpers.ApplySearch(query, filters.Search, "title", "description", "file_name")
	if filters.ClassID != nil {
		query = query.Where("class_id = ?", *filters.ClassID)
	}
	if filters.TeacherID != nil {
		query = query.Where("class_id IN (?)", taughtClassIDs(db, *filters.TeacherID))
	}
	if filters.StudentID != nil {
		query = query.Where("class_id IN (?)", approvedClassIDs(db, *filters.StudentID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count materials")
	}

	var materials []*models.Material
	query = m.helpers.ApplyPaginationAndSort(query, filters.ListOptions, materialSortColumns, "created_at")
	if err := query.Preload("Class").Find(&materials).Error; err != nil {
		return nil, 0, translateError(err, "list materials")
	}
	return materials, total, nil
}
