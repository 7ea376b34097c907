package data

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TranscriptStore provides file operations for session transcripts. It is
// the default backing for the engine's persistence side-channel: partial
// content on progress, final content on completion.
type TranscriptStore struct {
	dir string
}

// NewTranscriptStore creates a new TranscriptStore with the default directory.
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		dir: GetTranscriptDirPath(),
	}
}

// GetDir returns the transcript directory path.
func (t *TranscriptStore) GetDir() string {
	return t.dir
}

// EnsureDir creates the transcript directory if it doesn't exist.
func (t *TranscriptStore) EnsureDir() error {
	return os.MkdirAll(t.dir, 0755)
}

// List returns all transcript keys (without extension), sorted by
// modification time (newest first).
func (t *TranscriptStore) List() ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	type fileInfo struct {
		name    string
		modTime int64
	}

	var files []fileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			name:    strings.TrimSuffix(name, ".txt"),
			modTime: info.ModTime().Unix(),
		})
	}

	// Sort by modification time (newest first)
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime > files[j].modTime
	})

	result := make([]string, len(files))
	for i, f := range files {
		result[i] = f.name
	}
	return result, nil
}

// Load reads a transcript by key.
func (t *TranscriptStore) Load(key string) (string, error) {
	path := t.getPath(key)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("transcript '%s' not found", key)
		}
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(content), nil
}

// Save writes a transcript, replacing any previous content for the key.
// Progress updates overwrite in place, so the file always holds the full
// accumulated text rather than an append log.
func (t *TranscriptStore) Save(key string, content string) error {
	if err := t.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(t.getPath(key), []byte(content), 0644)
}

// Delete removes a transcript.
func (t *TranscriptStore) Delete(key string) error {
	err := os.Remove(t.getPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

// Exists checks if a transcript exists.
func (t *TranscriptStore) Exists(key string) bool {
	_, err := os.Stat(t.getPath(key))
	return err == nil
}

func (t *TranscriptStore) getPath(key string) string {
	safeName := sanitizeFileName(key)
	if !strings.HasSuffix(safeName, ".txt") {
		safeName = safeName + ".txt"
	}
	return filepath.Join(t.dir, safeName)
}

// sanitizeFileName removes or replaces characters that are not safe for file names.
func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
