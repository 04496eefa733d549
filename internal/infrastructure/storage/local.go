// Package storage holds the audio artifact stores.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/internal/domain/repositories"
)

const audioDir = "audio"

// LocalAudioStore writes recordings under <dataDir>/audio/<meeting id>/
type LocalAudioStore struct {
	dir    string
	logger *zap.Logger
}

var _ repositories.AudioStore = (*LocalAudioStore)(nil)

func NewLocalAudioStore(dataDir string, logger *zap.Logger) *LocalAudioStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalAudioStore{dir: filepath.Join(dataDir, audioDir), logger: logger}
}

// SaveAudio copies r to disk and returns the absolute file path.
// A previous recording of the same meeting is replaced.
func (l *LocalAudioStore) SaveAudio(ctx context.Context, meetingID int64, r io.Reader, size int64, contentType string) (string, error) {
	path, err := filepath.Abs(filepath.Join(l.dir, audioObjectName(meetingID, contentType)))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".recording-*")
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("short audio upload: got %d of %d bytes", written, size)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store audio file: %w", err)
	}

	l.logger.Info("recording stored", zap.Int64("meeting_id", meetingID), zap.String("path", path), zap.Int64("bytes", written))
	return path, nil
}

// ResolveAudio only hands out files below the store directory
func (l *LocalAudioStore) ResolveAudio(_ context.Context, path string) (repositories.AudioLocation, error) {
	root, err := filepath.Abs(l.dir)
	if err != nil {
		return repositories.AudioLocation{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return repositories.AudioLocation{}, entities.ErrAudioNotFound
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return repositories.AudioLocation{}, entities.ErrAudioNotFound
	}
	if info, err := os.Stat(abs); err != nil || info.IsDir() {
		return repositories.AudioLocation{}, entities.ErrAudioNotFound
	}
	return repositories.AudioLocation{File: abs}, nil
}

// audioObjectName is the object key / relative path of a meeting recording
func audioObjectName(meetingID int64, contentType string) string {
	return filepath.ToSlash(filepath.Join(strconv.FormatInt(meetingID, 10), "recording"+extensionFor(contentType)))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".webm"
	}
}
