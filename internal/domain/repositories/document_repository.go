package repositories

import (
	"context"
	"io"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

// DocumentBackend persists raw company and meeting documents.
// Implementations do not interpret documents; the library service owns
// identifier allocation, defaults, and cascade rules.
type DocumentBackend interface {
	// LoadCompanies returns the flat company list. A missing collection is an empty list.
	LoadCompanies(ctx context.Context) ([]entities.Company, error)
	SaveCompanies(ctx context.Context, companies []entities.Company) error

	// ListMeetingIDs returns the identifiers of every stored meeting document
	ListMeetingIDs(ctx context.Context) ([]int64, error)
	// LoadMeeting returns entities.ErrMeetingNotFound when the document does not exist
	LoadMeeting(ctx context.Context, id int64) (*entities.Meeting, error)
	SaveMeeting(ctx context.Context, meeting *entities.Meeting) error
	DeleteMeeting(ctx context.Context, id int64) error
}

// AudioStore keeps recorded audio artifacts and returns the path they are reachable at
type AudioStore interface {
	SaveAudio(ctx context.Context, meetingID int64, r io.Reader, size int64, contentType string) (string, error)
	// ResolveAudio turns a path returned by SaveAudio into a downloadable
	// location. Paths the store does not own yield entities.ErrAudioNotFound.
	ResolveAudio(ctx context.Context, path string) (AudioLocation, error)
}

// AudioLocation is either a local file or a temporary URL
type AudioLocation struct {
	File string
	URL  string
}
