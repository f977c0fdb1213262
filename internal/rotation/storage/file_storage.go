package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStorage implements RecordStore using the filesystem
type FileStorage struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(baseDir string) *FileStorage {
	return &FileStorage{
		baseDir: baseDir,
	}
}

// DefaultStorageDir returns the default storage directory
func DefaultStorageDir() string {
	// Check for test environment variable first
	if testDir := os.Getenv("KEYROT_ROTATION_DIR"); testDir != "" {
		return testDir
	}

	// Try to use XDG_DATA_HOME first
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "keyrot", "rotation")
	}

	// Fall back to ~/.local/share
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "keyrot", "rotation")
	}

	// Last resort: use temp directory
	return filepath.Join(os.TempDir(), "keyrot", "rotation")
}

// SaveRecord durably writes a rotation record for a principal. The write goes
// through a temp file and rename so a crash mid-write cannot leave a torn
// record behind.
func (fs *FileStorage) SaveRecord(record *RotationRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	recordDir := filepath.Join(fs.baseDir, "records")
	if err := os.MkdirAll(recordDir, 0700); err != nil {
		return fmt.Errorf("failed to create records directory: %w", err)
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rotation record: %w", err)
	}

	filename := filepath.Join(recordDir, fmt.Sprintf("%s.json", sanitizeFilename(record.Principal)))
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write rotation record: %w", err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("failed to commit rotation record: %w", err)
	}

	return nil
}

// GetRecord retrieves the rotation record for a principal
func (fs *FileStorage) GetRecord(principal string) (*RotationRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	filename := filepath.Join(fs.baseDir, "records", fmt.Sprintf("%s.json", sanitizeFilename(principal)))
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rotation record: %w", err)
	}

	var record RotationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rotation record: %w", err)
	}

	return &record, nil
}

// ListUnfinished returns records that still need work, oldest first.
func (fs *FileStorage) ListUnfinished() ([]RotationRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	recordDir := filepath.Join(fs.baseDir, "records")
	if _, err := os.Stat(recordDir); os.IsNotExist(err) {
		return []RotationRecord{}, nil
	}

	files, err := os.ReadDir(recordDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read records directory: %w", err)
	}

	var records []RotationRecord
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(recordDir, file.Name()))
		if err != nil {
			continue // Skip files that can't be read
		}
		var record RotationRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue // Skip invalid JSON files
		}
		if record.Phase.Terminal() && record.Phase != PhaseAborted {
			continue
		}
		if record.Phase == PhaseAborted && record.NewCredentialID == "" {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// SaveStatus saves the current rotation status for a principal
func (fs *FileStorage) SaveStatus(status *RotationStatus) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	statusDir := filepath.Join(fs.baseDir, "status")
	if err := os.MkdirAll(statusDir, 0700); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	filename := filepath.Join(statusDir, fmt.Sprintf("%s.json", sanitizeFilename(status.Principal)))
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}

	return nil
}

// GetStatus retrieves the current rotation status for a principal
func (fs *FileStorage) GetStatus(principal string) (*RotationStatus, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	filename := filepath.Join(fs.baseDir, "status", fmt.Sprintf("%s.json", sanitizeFilename(principal)))
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no status found for principal %s", principal)
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status RotationStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return &status, nil
}

// ListStatuses retrieves the statuses of all known principals
func (fs *FileStorage) ListStatuses() ([]RotationStatus, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	statusDir := filepath.Join(fs.baseDir, "status")
	if _, err := os.Stat(statusDir); os.IsNotExist(err) {
		return []RotationStatus{}, nil
	}

	files, err := os.ReadDir(statusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	var statuses []RotationStatus
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(statusDir, file.Name()))
		if err != nil {
			continue
		}
		var status RotationStatus
		if err := json.Unmarshal(data, &status); err != nil {
			continue
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Principal < statuses[j].Principal
	})
	return statuses, nil
}

// SaveHistory saves a rotation history entry
func (fs *FileStorage) SaveHistory(entry *HistoryEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	historyDir := filepath.Join(fs.baseDir, "history", sanitizeFilename(entry.Principal))
	if err := os.MkdirAll(historyDir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	filename := filepath.Join(historyDir, fmt.Sprintf("%s-%s.json", entry.Timestamp.Format("20060102-150405"), entry.ID[:8]))
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}

	return nil
}

// GetHistory retrieves rotation history for a principal
func (fs *FileStorage) GetHistory(principal string, limit int) ([]HistoryEntry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.readHistory(principal, limit)
}

func (fs *FileStorage) readHistory(principal string, limit int) ([]HistoryEntry, error) {
	historyDir := filepath.Join(fs.baseDir, "history", sanitizeFilename(principal))

	if _, err := os.Stat(historyDir); os.IsNotExist(err) {
		return []HistoryEntry{}, nil
	}

	files, err := os.ReadDir(historyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	// Sort files by name (newest first)
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() > files[j].Name()
	})

	var entries []HistoryEntry
	count := 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(historyDir, file.Name()))
		if err != nil {
			continue // Skip files that can't be read
		}

		var entry HistoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue // Skip invalid JSON files
		}

		entries = append(entries, entry)
		count++

		if limit > 0 && count >= limit {
			break
		}
	}

	return entries, nil
}

// GetAllHistory retrieves rotation history for all principals
func (fs *FileStorage) GetAllHistory(limit int) ([]HistoryEntry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	historyDir := filepath.Join(fs.baseDir, "history")

	if _, err := os.Stat(historyDir); os.IsNotExist(err) {
		return []HistoryEntry{}, nil
	}

	principalDirs, err := os.ReadDir(historyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var allEntries []HistoryEntry
	for _, principalDir := range principalDirs {
		if !principalDir.IsDir() {
			continue
		}
		entries, err := fs.readHistory(principalDir.Name(), -1)
		if err != nil {
			continue // Skip principals with errors
		}
		allEntries = append(allEntries, entries...)
	}

	// Sort all entries by timestamp (newest first)
	sort.Slice(allEntries, func(i, j int) bool {
		return allEntries[i].Timestamp.After(allEntries[j].Timestamp)
	})

	if limit > 0 && len(allEntries) > limit {
		allEntries = allEntries[:limit]
	}

	return allEntries, nil
}

// CleanupOldEntries removes history entries older than the specified duration
func (fs *FileStorage) CleanupOldEntries(olderThan time.Duration) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	historyDir := filepath.Join(fs.baseDir, "history")
	cutoffTime := time.Now().Add(-olderThan)

	err := filepath.Walk(historyDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !info.IsDir() && filepath.Ext(path) == ".json" {
			// Filename starts with 20060102-150405
			filename := filepath.Base(path)
			if len(filename) >= 15 {
				timestampStr := filename[:15]
				if timestamp, err := time.Parse("20060102-150405", timestampStr); err == nil {
					if timestamp.Before(cutoffTime) {
						if err := os.Remove(path); err != nil {
							fmt.Fprintf(os.Stderr, "Failed to remove old history file %s: %v\n", path, err)
						}
					}
				}
			}
		}

		return nil
	})

	return err
}

// sanitizeFilename replaces characters that might be problematic in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
