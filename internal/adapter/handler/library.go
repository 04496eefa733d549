package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/errors"
	dto "github.com/johnquangdev/meeting-copilot/internal/adapter/dto/library"
	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/internal/domain/repositories"
	libraryUsecase "github.com/johnquangdev/meeting-copilot/internal/usecase/library"
)

// Library handles company, meeting and action requests
type Library struct {
	library libraryUsecase.Service
	audio   repositories.AudioStore
	logger  *zap.Logger
}

func NewLibraryHandler(library libraryUsecase.Service, audio repositories.AudioStore, logger *zap.Logger) *Library {
	return &Library{library: library, audio: audio, logger: logger}
}

// ListCompanies handles GET /v1/companies
func (h *Library) ListCompanies(c echo.Context) error {
	return HandleSuccess(h.logger, c, h.library.ListCompanies(c.Request().Context()))
}

// CreateCompany handles POST /v1/companies
func (h *Library) CreateCompany(c echo.Context) error {
	var req dto.CreateCompanyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	company, err := h.library.CreateCompany(c.Request().Context(), req.ToNewCompany())
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleCreated(h.logger, c, company)
}

// UpdateCompany handles PATCH /v1/companies/:id
func (h *Library) UpdateCompany(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	var req dto.UpdateCompanyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	company, err := h.library.UpdateCompany(c.Request().Context(), id, req.ToPatch())
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, company)
}

// DeleteCompany handles DELETE /v1/companies/:id. Meetings that could not be
// removed are reported with 207 and listed in the error info.
func (h *Library) DeleteCompany(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	report, err := h.library.DeleteCompany(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if cascadeErr := report.Err(); cascadeErr != nil {
		return HandleError(h.logger, c, errors.ErrCascadePartial(id, cascadeErr))
	}
	return HandleSuccess(h.logger, c, report)
}

// ListMeetings handles GET /v1/companies/:id/meetings
func (h *Library) ListMeetings(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, h.library.ListMeetings(c.Request().Context(), id))
}

// CreateMeeting handles POST /v1/companies/:id/meetings
func (h *Library) CreateMeeting(c echo.Context) error {
	companyID, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	var req dto.CreateMeetingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	meeting, err := h.library.CreateMeeting(c.Request().Context(), req.ToNewMeeting(companyID))
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleCreated(h.logger, c, meeting)
}

// GetMeeting handles GET /v1/meetings/:id
func (h *Library) GetMeeting(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	meeting, err := h.library.GetMeeting(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, meeting)
}

// UpdateMeeting handles PATCH /v1/meetings/:id
func (h *Library) UpdateMeeting(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	var req dto.UpdateMeetingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	meeting, err := h.library.UpdateMeeting(c.Request().Context(), id, req.ToPatch())
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, meeting)
}

// DeleteMeeting handles DELETE /v1/meetings/:id
func (h *Library) DeleteMeeting(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	if err := h.library.DeleteMeeting(c.Request().Context(), id); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, map[string]int64{"deleted": id})
}

// SaveMeetingData handles PUT /v1/meetings/:id/data, replacing every derived
// array of the meeting at once
func (h *Library) SaveMeetingData(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	var payload entities.MeetingPayload
	if err := c.Bind(&payload); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload(err))
	}
	if payload.DurationSeconds < 0 {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("duration_seconds must not be negative"))
	}

	meeting, err := h.library.SaveMeetingData(c.Request().Context(), id, payload)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, meeting)
}

// UploadMeetingAudio handles PUT /v1/meetings/:id/audio with the raw recording as body
func (h *Library) UploadMeetingAudio(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	ctx := c.Request().Context()

	if _, err := h.library.GetMeeting(ctx, id); err != nil {
		return HandleError(h.logger, c, err)
	}

	req := c.Request()
	path, err := h.audio.SaveAudio(ctx, id, req.Body, req.ContentLength, req.Header.Get(echo.HeaderContentType))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrStorageFailed("save audio", err))
	}

	meeting, err := h.library.UpdateMeeting(ctx, id, entities.MeetingPatch{AudioPath: &path})
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, meeting.Header())
}

// DownloadMeetingAudio handles GET /v1/meetings/:id/audio. Local recordings are
// streamed; object storage recordings redirect to a temporary link.
func (h *Library) DownloadMeetingAudio(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	ctx := c.Request().Context()

	meeting, err := h.library.GetMeeting(ctx, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if meeting.AudioPath == "" {
		return HandleError(h.logger, c, entities.ErrAudioNotFound)
	}

	loc, err := h.audio.ResolveAudio(ctx, meeting.AudioPath)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if loc.URL != "" {
		return c.Redirect(http.StatusFound, loc.URL)
	}
	return c.File(loc.File)
}

// UpdateAction handles PATCH /v1/actions/:id
func (h *Library) UpdateAction(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	var req dto.UpdateActionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	action, err := h.library.ToggleActionStatus(c.Request().Context(), id, entities.ActionStatus(req.Status))
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, action)
}
