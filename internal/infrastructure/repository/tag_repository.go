package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"tickettracker/internal/infrastructure/persistence/models"
)

// TagRepository provides persistence operations for tags.
type TagRepository struct{}

// NewTagRepository creates a new tag repository.
func NewTagRepository() *TagRepository {
	return &TagRepository{}
}

// ListOrdered returns all tags sorted by name.
func (r *TagRepository) ListOrdered(db *gorm.DB) ([]models.Tag, error) {
	var tags []models.Tag
	if err := db.Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// EnsureNames returns tags for the given names, creating any that do not
// exist. Blank names are skipped and duplicates collapsed.
func (r *TagRepository) EnsureNames(db *gorm.DB, names []string) ([]models.Tag, error) {
	normalized := make([]string, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		normalized = append(normalized, trimmed)
		seen[trimmed] = true
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	var existing []models.Tag
	if err := db.Where("name IN ?", normalized).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to look up tags: %w", err)
	}
	byName := make(map[string]models.Tag, len(existing))
	for _, tag := range existing {
		byName[tag.Name] = tag
	}

	tags := make([]models.Tag, 0, len(normalized))
	for _, name := range normalized {
		if tag, ok := byName[name]; ok {
			tags = append(tags, tag)
			continue
		}
		tag := models.Tag{Name: name}
		if err := db.Create(&tag).Error; err != nil {
			return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
