// Package migrations applies idempotent, additive schema migrations that
// AutoMigrate alone does not cover, along with their data backfills.
package migrations

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"tickettracker/internal/infrastructure/persistence/models"
	"tickettracker/internal/infrastructure/uploads"
	"tickettracker/internal/shared/logger"
)

// Run applies all pending migrations. Each step checks for its own marker
// column so the function is safe to call on every startup.
func Run(db *gorm.DB, uploadsDir string) error {
	migrator := db.Migrator()
	if migrator.HasTable("tickets") {
		if err := ensureTicketAgeReference(db); err != nil {
			return err
		}
	}
	if migrator.HasTable("attachments") {
		if err := ensureAttachmentMetadata(db, uploadsDir); err != nil {
			return err
		}
	}
	return nil
}

func ensureTicketAgeReference(db *gorm.DB) error {
	if db.Migrator().HasColumn(&models.Ticket{}, "age_reference_date") {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("ALTER TABLE tickets ADD COLUMN age_reference_date DATE").Error; err != nil {
			return fmt.Errorf("failed to add age_reference_date column: %w", err)
		}
		if err := tx.Exec(
			"UPDATE tickets SET age_reference_date = DATE(created_at) WHERE age_reference_date IS NULL",
		).Error; err != nil {
			return fmt.Errorf("failed to backfill age_reference_date: %w", err)
		}
		return nil
	})
}

func ensureAttachmentMetadata(db *gorm.DB, uploadsDir string) error {
	migrator := db.Migrator()
	needsChecksum := !migrator.HasColumn(&models.Attachment{}, "checksum")
	needsUUID := !migrator.HasColumn(&models.Attachment{}, "file_uuid")

	if needsChecksum || needsUUID {
		err := db.Transaction(func(tx *gorm.DB) error {
			if needsChecksum {
				if err := tx.Exec("ALTER TABLE attachments ADD COLUMN checksum VARCHAR(64)").Error; err != nil {
					return fmt.Errorf("failed to add checksum column: %w", err)
				}
			}
			if needsUUID {
				if err := tx.Exec("ALTER TABLE attachments ADD COLUMN file_uuid VARCHAR(36)").Error; err != nil {
					return fmt.Errorf("failed to add file_uuid column: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return backfillAttachmentMetadata(db, uploadsDir)
}

// backfillAttachmentMetadata hashes attachment files that predate the
// checksum column and assigns one canonical file UUID per checksum so
// duplicate files share an identity.
func backfillAttachmentMetadata(db *gorm.DB, uploadsDir string) error {
	var attachments []models.Attachment
	if err := db.Order("id ASC").Find(&attachments).Error; err != nil {
		return fmt.Errorf("failed to list attachments: %w", err)
	}

	type canonicalEntry struct {
		fileUUID       string
		storedFilename string
	}
	canonical := make(map[string]canonicalEntry)

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range attachments {
			attachment := &attachments[i]
			if attachment.StoredFilename == "" {
				continue
			}

			filePath := filepath.Join(uploadsDir, filepath.FromSlash(attachment.StoredFilename))
			if _, err := os.Stat(filePath); err != nil {
				continue
			}

			dirty := false
			checksum := ""
			if attachment.Checksum != nil {
				checksum = *attachment.Checksum
			}
			if checksum == "" {
				computed, err := uploads.HashFile(filePath)
				if err != nil {
					logger.Warn("skipping attachment backfill", "id", attachment.ID, "error", err)
					continue
				}
				checksum = computed
				attachment.Checksum = &checksum
				dirty = true
			}

			entry, exists := canonical[checksum]
			if !exists {
				fileUUID := ""
				if attachment.FileUUID != nil {
					fileUUID = *attachment.FileUUID
				}
				if fileUUID == "" {
					generated, err := uploads.GenerateUUIDv7()
					if err != nil {
						return fmt.Errorf("failed to generate file uuid: %w", err)
					}
					fileUUID = generated
				}
				entry = canonicalEntry{fileUUID: fileUUID, storedFilename: attachment.StoredFilename}
				canonical[checksum] = entry
			}

			if attachment.FileUUID == nil || *attachment.FileUUID != entry.fileUUID {
				fileUUID := entry.fileUUID
				attachment.FileUUID = &fileUUID
				dirty = true
			}

			if dirty {
				updates := map[string]any{
					"checksum":  attachment.Checksum,
					"file_uuid": attachment.FileUUID,
				}
				if err := tx.Model(&models.Attachment{}).
					Where("id = ?", attachment.ID).
					Updates(updates).Error; err != nil {
					return fmt.Errorf("failed to backfill attachment %d: %w", attachment.ID, err)
				}
			}
		}
		return nil
	})
}
