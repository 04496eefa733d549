package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

func TestLocalAudioStoreSaveAudio(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalAudioStore(dir, nil)

	path, err := store.SaveAudio(context.Background(), 42, strings.NewReader("RIFFdata"), 8, "audio/webm")
	require.NoError(t, err)

	want, _ := filepath.Abs(filepath.Join(dir, "audio", "42", "recording.webm"))
	assert.Equal(t, want, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(data))

	// a second upload replaces the first
	path2, err := store.SaveAudio(context.Background(), 42, strings.NewReader("new"), -1, "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	data, _ = os.ReadFile(path2)
	assert.Equal(t, "new", string(data))
}

func TestLocalAudioStoreRejectsShortUpload(t *testing.T) {
	store := NewLocalAudioStore(t.TempDir(), nil)

	_, err := store.SaveAudio(context.Background(), 1, strings.NewReader("abc"), 10, "audio/wav")
	assert.ErrorContains(t, err, "short audio upload")
}

func TestAudioObjectName(t *testing.T) {
	assert.Equal(t, "7/recording.wav", audioObjectName(7, "audio/wav"))
	assert.Equal(t, "7/recording.webm", audioObjectName(7, "application/octet-stream"))
}

func TestLocalAudioStoreResolveAudio(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalAudioStore(dir, nil)

	path, err := store.SaveAudio(ctx, 3, strings.NewReader("ogg"), 3, "audio/ogg")
	require.NoError(t, err)

	loc, err := store.ResolveAudio(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, loc.File)
	assert.Empty(t, loc.URL)

	outside := filepath.Join(dir, "companies.json")
	require.NoError(t, os.WriteFile(outside, []byte("[]"), 0o644))
	for _, p := range []string{outside, filepath.Join(dir, "audio", "..", "companies.json"), filepath.Join(dir, "audio", "9", "recording.webm")} {
		_, err := store.ResolveAudio(ctx, p)
		assert.ErrorIs(t, err, entities.ErrAudioNotFound, p)
	}
}
