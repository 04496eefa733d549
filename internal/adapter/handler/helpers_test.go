package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/johnquangdev/meeting-copilot/errors"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/docstore"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/events"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/storage"
	libraryUsecase "github.com/johnquangdev/meeting-copilot/internal/usecase/library"
	"github.com/johnquangdev/meeting-copilot/internal/usecase/live"
	"github.com/johnquangdev/meeting-copilot/pkg/ai"
	"github.com/johnquangdev/meeting-copilot/pkg/config"
	"github.com/johnquangdev/meeting-copilot/pkg/validator"
)

// scriptedLLM answers by system prompt, like a local model would
type scriptedLLM struct {
	mu      sync.Mutex
	offline bool
	prompts live.PromptSet
}

func newScriptedLLM(t *testing.T) *scriptedLLM {
	t.Helper()
	prompts, err := live.DefaultPrompts().For("en")
	require.NoError(t, err)
	return &scriptedLLM{prompts: prompts}
}

func (l *scriptedLLM) setOffline(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offline = v
}

func (l *scriptedLLM) Probe(context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.offline {
		return "", errors.New("connection refused")
	}
	return "test-model", nil
}

func (l *scriptedLLM) Stream(ctx context.Context, req ai.ChatRequest) (*ai.StreamReader, error) {
	content, err := l.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	chunk, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	body := "data: " + string(chunk) + "\n\ndata: [DONE]\n\n"
	return ai.NewStreamReader(strings.NewReader(body)), nil
}

func (l *scriptedLLM) Complete(_ context.Context, req ai.ChatRequest) (string, error) {
	last := req.Messages[len(req.Messages)-1].Content
	switch req.Messages[0].Content {
	case l.prompts.Questions:
		if strings.Contains(last, "?") {
			return "QUESTION: Can we ship on Friday?", nil
		}
		return "NOTHING", nil
	case l.prompts.Answer:
		return "Only if QA signs off.", nil
	case l.prompts.Actions:
		return "ACTION: Confirm the ship date with QA\n", nil
	case l.prompts.Summary:
		return `{"summary":"Release timing discussed.","next_steps":"QA sign-off."}`, nil
	}
	return "", nil
}

type testApp struct {
	e       *echo.Echo
	library libraryUsecase.Service
	manager *live.Manager
	hub     *events.Hub
	llm     *scriptedLLM
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	library := libraryUsecase.NewService(docstore.NewFileBackend(dir), logger)
	audio := storage.NewLocalAudioStore(dir, logger)
	hub := events.NewHub(logger, nil)
	llm := newScriptedLLM(t)
	manager := live.NewManager(live.SessionDeps{
		LLM:       llm,
		Store:     library,
		Publisher: hub,
		Logger:    logger,
	})

	cfg := &config.Config{}
	cfg.Server.Environment = "test"

	e := echo.New()
	e.Validator = validator.New()
	NewRouter(
		cfg,
		NewLibraryHandler(library, audio, logger),
		NewSessionHandler(manager, hub, audio, nil, "en", logger),
		manager,
		nil,
		llm,
	).Setup(e)

	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
	})
	return &testApp{e: e, library: library, manager: manager, hub: hub, llm: llm}
}

type envelope struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details map[string]string `json:"details"`
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func errorCode(c appErrors.ErrorCode) int { return int(c) }

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func httpRequest(method, path, body string) *http.Request {
	return httptest.NewRequest(method, path, strings.NewReader(body))
}

func serve(a *testApp, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}
