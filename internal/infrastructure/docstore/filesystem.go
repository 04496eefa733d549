package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/internal/domain/repositories"
)

const (
	companiesFile = "companies.json"
	meetingsDir   = "meetings"
)

// FileBackend stores documents as indented JSON files under a data directory:
//
//	<dir>/companies.json
//	<dir>/meetings/<id>.json
type FileBackend struct {
	dir string
}

// NewFileBackend creates a filesystem document backend rooted at dir
func NewFileBackend(dir string) repositories.DocumentBackend {
	return &FileBackend{dir: dir}
}

func (b *FileBackend) LoadCompanies(ctx context.Context) ([]entities.Company, error) {
	var companies []entities.Company
	if err := readJSON(filepath.Join(b.dir, companiesFile), &companies); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []entities.Company{}, nil
		}
		return nil, err
	}
	if companies == nil {
		companies = []entities.Company{}
	}
	return companies, nil
}

func (b *FileBackend) SaveCompanies(ctx context.Context, companies []entities.Company) error {
	if companies == nil {
		companies = []entities.Company{}
	}
	return writeJSON(filepath.Join(b.dir, companiesFile), companies)
}

func (b *FileBackend) ListMeetingIDs(ctx context.Context) ([]int64, error) {
	entries, err := os.ReadDir(filepath.Join(b.dir, meetingsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (b *FileBackend) LoadMeeting(ctx context.Context, id int64) (*entities.Meeting, error) {
	var m entities.Meeting
	if err := readJSON(b.meetingPath(id), &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (b *FileBackend) SaveMeeting(ctx context.Context, meeting *entities.Meeting) error {
	return writeJSON(b.meetingPath(meeting.ID), meeting)
}

func (b *FileBackend) DeleteMeeting(ctx context.Context, id int64) error {
	if err := os.Remove(b.meetingPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete meeting %d: %w", id, err)
	}
	return nil
}

func (b *FileBackend) meetingPath(id int64) string {
	return filepath.Join(b.dir, meetingsDir, strconv.FormatInt(id, 10)+".json")
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path through a temp file in the same directory
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
