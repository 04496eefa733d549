package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/errors"
	dto "github.com/johnquangdev/meeting-copilot/internal/adapter/dto/session"
	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/internal/domain/repositories"
	"github.com/johnquangdev/meeting-copilot/internal/usecase/live"
	"github.com/johnquangdev/meeting-copilot/pkg/middleware"
)

const (
	maxTranscriptFrame = 4 << 20
	sseKeepAlive       = 15 * time.Second
)

// SessionMetrics receives transcript ingress counters
type SessionMetrics interface {
	RecordTranscript(source string, final bool)
}

// EventSubscriber hands out per-session event streams
type EventSubscriber interface {
	Subscribe(sessionID string) (<-chan live.Event, func())
}

type nopSessionMetrics struct{}

func (nopSessionMetrics) RecordTranscript(string, bool) {}

// Session handles live session requests
type Session struct {
	manager         *live.Manager
	events          EventSubscriber
	audio           repositories.AudioStore
	metrics         SessionMetrics
	logger          *zap.Logger
	defaultLanguage string
	upgrader        websocket.Upgrader
	keepAlive       time.Duration
}

func NewSessionHandler(
	manager *live.Manager,
	events EventSubscriber,
	audio repositories.AudioStore,
	metrics SessionMetrics,
	defaultLanguage string,
	logger *zap.Logger,
) *Session {
	if metrics == nil {
		metrics = nopSessionMetrics{}
	}
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Session{
		manager:         manager,
		events:          events,
		audio:           audio,
		metrics:         metrics,
		logger:          logger,
		defaultLanguage: defaultLanguage,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// the recorder runs on the same machine as the API
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		keepAlive: sseKeepAlive,
	}
}

// Start handles POST /v1/sessions
func (h *Session) Start(c echo.Context) error {
	var req dto.StartSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	language := req.Language
	if language == "" {
		language = h.defaultLanguage
	}

	s, err := h.manager.Start(c.Request().Context(), req.MeetingID, language)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleCreated(h.logger, c, s.Snapshot())
}

// Get handles GET /v1/sessions/:id
func (h *Session) Get(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, s.Snapshot())
}

// Stop handles POST /v1/sessions/:id/stop
func (h *Session) Stop(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	s.Stop()
	return HandleSuccess(h.logger, c, s.Snapshot())
}

// Delete handles DELETE /v1/sessions/:id. Pending work is dropped; a new
// session has to be started to record again.
func (h *Session) Delete(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if err := h.manager.Discard(s.ID()); err != nil {
		return HandleError(h.logger, c, errors.ErrSessionNotFound(s.ID()))
	}
	return HandleSuccess(h.logger, c, map[string]string{"deleted": s.ID()})
}

// SetLanguage handles PUT /v1/sessions/:id/language
func (h *Session) SetLanguage(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	var req dto.SetLanguageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	if err := s.SetLanguage(req.Language); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, s.Snapshot())
}

// SetSpeakers handles PUT /v1/sessions/:id/speakers
func (h *Session) SetSpeakers(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	var req dto.SetSpeakersRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	for speaker, name := range req.Names {
		s.SetSpeakerName(speaker, name)
	}
	return HandleSuccess(h.logger, c, s.Snapshot())
}

// Transcript handles POST /v1/sessions/:id/transcript with one full
// recognizer update
func (h *Session) Transcript(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	var update entities.TranscriptUpdate
	if err := c.Bind(&update); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload(err))
	}
	if err := h.ingest(s, update, "http"); err != nil {
		return HandleError(h.logger, c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// TranscriptSocket handles GET /v1/sessions/:id/transcript/ws. Each text frame
// is one recognizer update; malformed frames are skipped.
func (h *Session) TranscriptSocket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the client
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", s.ID()), zap.Error(err))
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(maxTranscriptFrame)

	logger := h.logger.With(zap.String("session_id", s.ID()))
	logger.Info("transcript socket connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("transcript socket closed unexpectedly", zap.Error(err))
			} else {
				logger.Info("transcript socket disconnected")
			}
			return nil
		}

		var update entities.TranscriptUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			logger.Warn("skipping malformed transcript frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		if err := h.ingest(s, update, "websocket"); err != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return nil
		}
	}
}

// Events handles GET /v1/sessions/:id/events as a server-sent event stream.
// The first event is a snapshot of the session.
func (h *Session) Events(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	events, unsubscribe := h.events.Subscribe(s.ID())
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeSSE(res, "snapshot", s.Snapshot()); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(res, string(evt.Type), evt); err != nil {
				h.logger.Debug("event stream write failed", zap.String("session_id", s.ID()), zap.Error(err))
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// UploadAudio handles PUT /v1/sessions/:id/audio. The path is saved with the
// meeting when the analysis completes.
func (h *Session) UploadAudio(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if s.MeetingID() == 0 {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("session has no meeting to attach audio to"))
	}

	req := c.Request()
	path, err := h.audio.SaveAudio(req.Context(), s.MeetingID(), req.Body, req.ContentLength, req.Header.Get(echo.HeaderContentType))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrStorageFailed("save audio", err))
	}
	s.SetAudioPath(path)
	return HandleSuccess(h.logger, c, map[string]string{"audio_path": path})
}

func (h *Session) ingest(s *live.Session, update entities.TranscriptUpdate, source string) error {
	if err := s.HandleTranscript(update); err != nil {
		return err
	}
	h.metrics.RecordTranscript(source, update.Final)
	return nil
}

// session prefers the session resolved by middleware and falls back to the manager
func (h *Session) session(c echo.Context) (*live.Session, error) {
	if s, ok := middleware.SessionFrom(c); ok {
		return s, nil
	}
	id := c.Param("id")
	s, err := h.manager.Get(id)
	if err != nil {
		return nil, errors.ErrSessionNotFound(id)
	}
	return s, nil
}

func writeSSE(res *echo.Response, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
