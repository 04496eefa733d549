package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/johnquangdev/meeting-copilot/internal/usecase/live"
	"github.com/johnquangdev/meeting-copilot/pkg/config"
	"github.com/johnquangdev/meeting-copilot/pkg/middleware"
)

// Prober checks that the completion service answers
type Prober interface {
	Probe(ctx context.Context) (string, error)
}

// Router holds all handlers
type Router struct {
	cfg            *config.Config
	libraryHandler *Library
	sessionHandler *Session
	sessions       *live.Manager
	metrics        http.Handler
	llm            Prober
}

// NewRouter creates a new router with all handlers. metrics and llm may be nil.
func NewRouter(cfg *config.Config, libraryHandler *Library, sessionHandler *Session, sessions *live.Manager, metrics http.Handler, llm Prober) *Router {
	return &Router{
		cfg:            cfg,
		libraryHandler: libraryHandler,
		sessionHandler: sessionHandler,
		sessions:       sessions,
		metrics:        metrics,
		llm:            llm,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)
	if rt.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(rt.metrics))
	}

	v1 := e.Group("/v1")

	rt.setupLibraryRoutes(v1)
	rt.setupSessionRoutes(v1)
}

// setupLibraryRoutes configures company, meeting and action routes
func (rt *Router) setupLibraryRoutes(g *echo.Group) {
	h := rt.libraryHandler

	companies := g.Group("/companies")
	companies.GET("", h.ListCompanies)
	companies.POST("", h.CreateCompany)
	companies.PATCH("/:id", h.UpdateCompany)
	companies.DELETE("/:id", h.DeleteCompany)
	companies.GET("/:id/meetings", h.ListMeetings)
	companies.POST("/:id/meetings", h.CreateMeeting)

	meetings := g.Group("/meetings")
	meetings.GET("/:id", h.GetMeeting)
	meetings.PATCH("/:id", h.UpdateMeeting)
	meetings.DELETE("/:id", h.DeleteMeeting)
	meetings.PUT("/:id/data", h.SaveMeetingData)
	meetings.PUT("/:id/audio", h.UploadMeetingAudio)
	meetings.GET("/:id/audio", h.DownloadMeetingAudio)

	g.PATCH("/actions/:id", h.UpdateAction)
}

// setupSessionRoutes configures live session routes
func (rt *Router) setupSessionRoutes(g *echo.Group) {
	h := rt.sessionHandler

	sessions := g.Group("/sessions")
	sessions.POST("", h.Start)

	session := sessions.Group("/:id", middleware.RequireSession(rt.sessions))
	session.GET("", h.Get)
	session.DELETE("", h.Delete)
	session.POST("/stop", h.Stop)
	session.PUT("/language", h.SetLanguage)
	session.PUT("/speakers", h.SetSpeakers)
	session.POST("/transcript", h.Transcript)
	session.GET("/transcript/ws", h.TranscriptSocket)
	session.GET("/events", h.Events)
	session.PUT("/audio", h.UploadAudio)
}

// healthCheck returns health status. An unreachable completion service
// degrades the status but is not an error; the pipeline keeps recording.
func (rt *Router) healthCheck(c echo.Context) error {
	body := map[string]interface{}{
		"status":      "ok",
		"time":        time.Now().UTC().Format(time.RFC3339),
		"environment": rt.cfg.Server.Environment,
		"sessions":    len(rt.sessions.List()),
	}

	if rt.llm != nil {
		llm := map[string]interface{}{"reachable": true}
		if model, err := rt.llm.Probe(c.Request().Context()); err != nil {
			llm["reachable"] = false
			llm["error"] = err.Error()
			body["status"] = "degraded"
		} else if model != "" {
			llm["model"] = model
		}
		body["llm"] = llm
	}

	return c.JSON(http.StatusOK, body)
}
