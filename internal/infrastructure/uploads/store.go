package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"tickettracker/internal/infrastructure/persistence/models"
	"tickettracker/internal/shared/logger"
)

// Upload is an incoming file to be attached to a ticket.
type Upload struct {
	Filename string
	Mimetype string
	Content  io.ReadSeeker
}

// Store writes uploaded files under the uploads root, deduplicating content
// by checksum: identical bytes share one physical file regardless of which
// ticket they belong to.
type Store struct {
	root string
}

// NewStore creates a store rooted at the given uploads directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the uploads root directory.
func (s *Store) Root() string {
	return s.root
}

// Save stores one upload and creates its Attachment row inside the caller's
// transaction. Uploads with an empty filename are skipped and return nil.
// The caller is responsible for committing.
func (s *Store) Save(tx *gorm.DB, upload Upload, ticketID uint, updateID *uint) (*models.Attachment, error) {
	if strings.TrimSpace(upload.Filename) == "" || upload.Content == nil {
		return nil, nil
	}

	checksum, err := HashStream(upload.Content)
	if err != nil {
		return nil, err
	}

	storedFilename, fileUUID, size, err := s.resolvePlacement(tx, checksum, upload)
	if err != nil {
		return nil, err
	}

	attachment := &models.Attachment{
		TicketID:         ticketID,
		UpdateID:         updateID,
		OriginalFilename: upload.Filename,
		StoredFilename:   storedFilename,
		Checksum:         &checksum,
		FileUUID:         &fileUUID,
		Size:             &size,
		UploadedAt:       time.Now().UTC(),
	}
	if upload.Mimetype != "" {
		mimetype := upload.Mimetype
		attachment.Mimetype = &mimetype
	}
	if err := tx.Create(attachment).Error; err != nil {
		return nil, fmt.Errorf("failed to create attachment record: %w", err)
	}
	return attachment, nil
}

// SaveAll stores a batch of uploads, skipping empty entries.
func (s *Store) SaveAll(tx *gorm.DB, files []Upload, ticketID uint, updateID *uint) ([]*models.Attachment, error) {
	var stored []*models.Attachment
	for _, upload := range files {
		attachment, err := s.Save(tx, upload, ticketID, updateID)
		if err != nil {
			return stored, err
		}
		if attachment != nil {
			stored = append(stored, attachment)
		}
	}
	return stored, nil
}

// resolvePlacement decides where the upload's bytes live. A prior attachment
// with the same checksum whose file is still on disk is reused; otherwise the
// bytes are written to a new shared path. Dedup is global across tickets.
func (s *Store) resolvePlacement(tx *gorm.DB, checksum string, upload Upload) (string, string, int64, error) {
	var existing models.Attachment
	err := tx.Where("checksum = ?", checksum).Order("id ASC").First(&existing).Error
	switch {
	case err == nil:
		existingPath := s.AbsolutePath(existing.StoredFilename)
		info, statErr := os.Stat(existingPath)
		if statErr == nil {
			fileUUID, uuidErr := s.ensureFileUUID(tx, &existing)
			if uuidErr != nil {
				return "", "", 0, uuidErr
			}
			size := info.Size()
			if existing.Size != nil {
				size = *existing.Size
			}
			logger.Debug("attachment content deduplicated",
				"checksum", checksum, "stored_filename", existing.StoredFilename)
			return existing.StoredFilename, fileUUID, size, nil
		}
		// Stored file vanished out-of-band; fall through and rewrite.
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First occurrence of this content.
	default:
		return "", "", 0, fmt.Errorf("failed to look up attachment checksum: %w", err)
	}

	return s.writeFresh(upload)
}

func (s *Store) ensureFileUUID(tx *gorm.DB, existing *models.Attachment) (string, error) {
	if existing.FileUUID != nil && *existing.FileUUID != "" {
		return *existing.FileUUID, nil
	}
	fileUUID, err := GenerateUUIDv7()
	if err != nil {
		return "", err
	}
	if err := tx.Model(&models.Attachment{}).
		Where("id = ?", existing.ID).
		Update("file_uuid", fileUUID).Error; err != nil {
		return "", fmt.Errorf("failed to backfill file uuid: %w", err)
	}
	existing.FileUUID = &fileUUID
	return fileUUID, nil
}

func (s *Store) writeFresh(upload Upload) (string, string, int64, error) {
	fileUUID, err := GenerateUUIDv7()
	if err != nil {
		return "", "", 0, err
	}

	now := time.Now().UTC()
	timestamp := now.Format("20060102150405") + fmt.Sprintf("%06d", now.Nanosecond()/1000)
	ext := filepath.Ext(SanitizeFilename(upload.Filename))
	storedFilename := "shared/" + fileUUID + "-" + timestamp + ext

	targetPath := s.AbsolutePath(storedFilename)
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", "", 0, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", "", 0, fmt.Errorf("failed to rewind upload: %w", err)
	}
	file, err := os.Create(targetPath)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	size, err := io.Copy(file, upload.Content)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(targetPath)
		return "", "", 0, fmt.Errorf("failed to write upload file: %w", err)
	}
	return storedFilename, fileUUID, size, nil
}

// AbsolutePath resolves a stored filename to its on-disk location.
func (s *Store) AbsolutePath(storedFilename string) string {
	return filepath.Join(s.root, filepath.FromSlash(storedFilename))
}
