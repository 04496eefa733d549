package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	repo "github.com/johnquangdev/meeting-copilot/internal/domain/repositories"
)

type companyDocument struct {
	ID   int64          `gorm:"primaryKey;autoIncrement:false"`
	Body datatypes.JSON `gorm:"type:jsonb;not null"`
}

func (companyDocument) TableName() string { return "company_documents" }

type meetingDocument struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false"`
	CompanyID int64          `gorm:"index;not null"`
	Body      datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (meetingDocument) TableName() string { return "meeting_documents" }

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a document backend that keeps each document as a JSONB row
func NewDocumentRepository(db *gorm.DB) repo.DocumentBackend {
	return &documentRepository{db: db}
}

func (r *documentRepository) LoadCompanies(ctx context.Context) ([]entities.Company, error) {
	var rows []companyDocument
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}

	companies := make([]entities.Company, 0, len(rows))
	for _, row := range rows {
		var c entities.Company
		if err := json.Unmarshal(row.Body, &c); err != nil {
			return nil, fmt.Errorf("failed to decode company %d: %w", row.ID, err)
		}
		companies = append(companies, c)
	}
	return companies, nil
}

func (r *documentRepository) SaveCompanies(ctx context.Context, companies []entities.Company) error {
	rows := make([]companyDocument, 0, len(companies))
	for _, c := range companies {
		body, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode company %d: %w", c.ID, err)
		}
		rows = append(rows, companyDocument{ID: c.ID, Body: datatypes.JSON(body)})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&companyDocument{}).Error; err != nil {
			return fmt.Errorf("failed to clear companies: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to save companies: %w", err)
		}
		return nil
	})
}

func (r *documentRepository) ListMeetingIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&meetingDocument{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	return ids, nil
}

func (r *documentRepository) LoadMeeting(ctx context.Context, id int64) (*entities.Meeting, error) {
	var row meetingDocument
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to load meeting %d: %w", id, err)
	}

	var m entities.Meeting
	if err := json.Unmarshal(row.Body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode meeting %d: %w", id, err)
	}
	return &m, nil
}

func (r *documentRepository) SaveMeeting(ctx context.Context, meeting *entities.Meeting) error {
	body, err := json.Marshal(meeting)
	if err != nil {
		return fmt.Errorf("failed to encode meeting %d: %w", meeting.ID, err)
	}

	row := meetingDocument{
		ID:        meeting.ID,
		CompanyID: meeting.CompanyID,
		Body:      datatypes.JSON(body),
		UpdatedAt: time.Now().UTC(),
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"company_id", "body", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save meeting %d: %w", meeting.ID, err)
	}
	return nil
}

func (r *documentRepository) DeleteMeeting(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&meetingDocument{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete meeting %d: %w", id, err)
	}
	return nil
}
