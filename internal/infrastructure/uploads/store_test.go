package uploads

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tickettracker/internal/infrastructure/persistence/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Attachment{}))
	return db
}

func newUpload(name, content string) Upload {
	return Upload{
		Filename: name,
		Mimetype: "text/plain",
		Content:  bytes.NewReader([]byte(content)),
	}
}

func TestHashStreamMatchesHashFile(t *testing.T) {
	content := []byte("identical bytes in stream and file")

	path := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	fromFile, err := HashFile(path)
	require.NoError(t, err)

	reader := bytes.NewReader(content)
	fromStream, err := HashStream(reader)
	require.NoError(t, err)
	assert.Equal(t, fromFile, fromStream)

	// The stream is rewound so the caller can still read it.
	remaining, err := os.ReadFile(path)
	require.NoError(t, err)
	streamed := make([]byte, len(content))
	n, err := reader.Read(streamed)
	require.NoError(t, err)
	assert.Equal(t, len(content), n)
	assert.Equal(t, remaining, streamed)
}

func TestHashStreamEmptyContent(t *testing.T) {
	a, err := HashStream(bytes.NewReader(nil))
	require.NoError(t, err)
	b, err := HashStream(bytes.NewReader([]byte{}))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestGenerateUUIDv7Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id, err := GenerateUUIDv7()
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true

		parts := strings.Split(id, "-")
		require.Len(t, parts, 5)
		assert.Equal(t, byte('7'), parts[2][0], "version nibble")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"report.csv", "report.csv"},
		{"my file.txt", "my_file.txt"},
		{"../../etc/passwd", "etc_passwd"},
		{"données.txt", "donnes.txt"},
		{"...", "attachment"},
		{"", "attachment"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeFilename(tt.input), tt.input)
	}
}

func TestStoreDeduplicatesIdenticalContent(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(t.TempDir())

	first, err := store.Save(db, newUpload("report-a.txt", "shared content"), 1, nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := store.Save(db, newUpload("report-b.txt", "shared content"), 2, nil)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.StoredFilename, second.StoredFilename)
	assert.Equal(t, *first.Checksum, *second.Checksum)
	assert.Equal(t, *first.FileUUID, *second.FileUUID)
	assert.NotEqual(t, first.ID, second.ID)

	// Display names keep the user's original text.
	assert.Equal(t, "report-a.txt", first.DisplayName())
	assert.Equal(t, "report-b.txt", second.DisplayName())

	// Exactly one physical file under shared/.
	entries, err := os.ReadDir(filepath.Join(store.Root(), "shared"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreRewritesWhenFileMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(t.TempDir())

	first, err := store.Save(db, newUpload("doc.txt", "self healing"), 1, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(store.AbsolutePath(first.StoredFilename)))

	second, err := store.Save(db, newUpload("doc.txt", "self healing"), 1, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.StoredFilename, second.StoredFilename)
	data, err := os.ReadFile(store.AbsolutePath(second.StoredFilename))
	require.NoError(t, err)
	assert.Equal(t, "self healing", string(data))
}

func TestStoreBackfillsMissingFileUUID(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(t.TempDir())

	first, err := store.Save(db, newUpload("legacy.txt", "legacy row"), 1, nil)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Attachment{}).
		Where("id = ?", first.ID).
		Update("file_uuid", nil).Error)

	second, err := store.Save(db, newUpload("legacy.txt", "legacy row"), 1, nil)
	require.NoError(t, err)
	require.NotNil(t, second.FileUUID)
	assert.NotEmpty(t, *second.FileUUID)

	var reloaded models.Attachment
	require.NoError(t, db.First(&reloaded, first.ID).Error)
	require.NotNil(t, reloaded.FileUUID)
	assert.Equal(t, *second.FileUUID, *reloaded.FileUUID)
}

func TestStoreSkipsEmptyFilename(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(t.TempDir())

	attachment, err := store.Save(db, newUpload("", "content"), 1, nil)
	require.NoError(t, err)
	assert.Nil(t, attachment)

	var count int64
	require.NoError(t, db.Model(&models.Attachment{}).Count(&count).Error)
	assert.Zero(t, count)
}
