package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "tickettracker/internal/shared/errors"
	"tickettracker/internal/infrastructure/persistence/models"
)

// AttachmentRepository provides persistence operations for attachments.
type AttachmentRepository struct{}

// NewAttachmentRepository creates a new attachment repository.
func NewAttachmentRepository() *AttachmentRepository {
	return &AttachmentRepository{}
}

// GetByID loads a single attachment.
func (r *AttachmentRepository) GetByID(db *gorm.DB, id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	err := db.First(&attachment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Attachment %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attachment %d: %w", id, err)
	}
	return &attachment, nil
}

// ListByTicketIDs returns all attachments for the given tickets ordered by id.
func (r *AttachmentRepository) ListByTicketIDs(db *gorm.DB, ticketIDs []uint) ([]models.Attachment, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	var attachments []models.Attachment
	if err := db.Where("ticket_id IN ?", ticketIDs).Order("id ASC").Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}
