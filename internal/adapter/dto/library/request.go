package library

import (
	"time"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	libraryUsecase "github.com/johnquangdev/meeting-copilot/internal/usecase/library"
)

// CreateCompanyRequest represents the request to create a company
type CreateCompanyRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

func (r CreateCompanyRequest) ToNewCompany() libraryUsecase.NewCompany {
	return libraryUsecase.NewCompany{Name: r.Name, Description: r.Description, Color: r.Color}
}

// UpdateCompanyRequest represents the request to update a company
type UpdateCompanyRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

func (r UpdateCompanyRequest) ToPatch() entities.CompanyPatch {
	return entities.CompanyPatch{Name: r.Name, Description: r.Description, Color: r.Color}
}

// CreateMeetingRequest represents the request to create a meeting in a company
type CreateMeetingRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description,omitempty"`
	Service     string `json:"service,omitempty" validate:"omitempty,max=64"`
}

func (r CreateMeetingRequest) ToNewMeeting(companyID int64) libraryUsecase.NewMeeting {
	return libraryUsecase.NewMeeting{
		CompanyID:   companyID,
		Title:       r.Title,
		Description: r.Description,
		Service:     r.Service,
	}
}

// UpdateMeetingRequest represents the request to update meeting fields
type UpdateMeetingRequest struct {
	Title           *string    `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description     *string    `json:"description,omitempty"`
	Status          *string    `json:"status,omitempty" validate:"omitempty,oneof=recording done"`
	DurationSeconds *int       `json:"duration_seconds,omitempty" validate:"omitempty,min=0"`
	AudioPath       *string    `json:"audio_path,omitempty"`
	RecordedAt      *time.Time `json:"recorded_at,omitempty"`
}

func (r UpdateMeetingRequest) ToPatch() entities.MeetingPatch {
	patch := entities.MeetingPatch{
		Title:           r.Title,
		Description:     r.Description,
		DurationSeconds: r.DurationSeconds,
		AudioPath:       r.AudioPath,
		RecordedAt:      r.RecordedAt,
	}
	if r.Status != nil {
		status := entities.MeetingStatus(*r.Status)
		patch.Status = &status
	}
	return patch
}

// UpdateActionRequest represents the request to change an action's status
type UpdateActionRequest struct {
	Status string `json:"status" validate:"required,oneof=todo done"`
}
