package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoqa/backend/internal/api/handlers"
	"autoqa/backend/internal/config"
	"autoqa/backend/internal/executor"
	"autoqa/backend/internal/models"
	"autoqa/backend/internal/recorder"
	"autoqa/backend/internal/repository"
	"autoqa/backend/internal/services"
)

type fakeEngine struct {
	mu   sync.Mutex
	sink recorder.Sink
}

func (f *fakeEngine) Start(_ context.Context, _, _ string, sink recorder.Sink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
	return nil
}

func (f *fakeEngine) Close(context.Context) error { return nil }

func (f *fakeEngine) step(step models.CapturedStep) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink.OnStep(step)
}

type fakePlayer struct{}

func (fakePlayer) Replay(_ context.Context, data models.ScrollData, _ string) *executor.Result {
	now := time.Now()
	return &executor.Result{
		Success:   true,
		StartTime: now,
		EndTime:   now.Add(25 * time.Millisecond),
		Logs:      []models.ReplayLog{{Timestamp: now, Level: "info", Message: "replayed " + data.URL}},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	engine *fakeEngine
	fs     afero.Fs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fs := afero.NewMemMapFs()
	engine := &fakeEngine{}
	mgr := recorder.NewManager(recorder.Options{OutputDir: "/rec"}, fs,
		func() recorder.Engine { return engine }, nil)
	recordings := services.NewRecordingService(repository.NewMemoryRepository(), fs,
		config.RecorderConfig{OutputDir: "/rec", ExportDir: "/exports"}, nil)
	exec := executor.New(fakePlayer{}, 1, nil)
	t.Cleanup(exec.Shutdown)

	h := handlers.New(handlers.Options{
		Recorder:   mgr,
		Recordings: recordings,
		Replays:    services.NewReplayService(recordings, exec, nil),
		Fs:         fs,
		ExportDir:  "/exports",
	})
	return &testServer{router: SetupRoutes(h, nil), engine: engine, fs: fs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func (s *testServer) record(t *testing.T, name string) uint {
	t.Helper()
	env := s.do(t, http.MethodPost, "/api/v1/recording/start", gin.H{"url": "https://example.com", "device": "iPhone X"})
	require.True(t, env.Success, env.Message)

	s.engine.step(models.CapturedStep{Action: models.ActionClick, Selector: "#buy", X: 10, Y: 20, Timestamp: 1})
	s.engine.step(models.CapturedStep{Action: models.ActionInput, Selector: "#q", Value: "shoes", Timestamp: 2})

	env = s.do(t, http.MethodPost, "/api/v1/recording/stop", gin.H{"name": name})
	require.True(t, env.Success, env.Message)
	var data struct {
		RecordingID uint            `json:"recording_id"`
		Result      recorder.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 2, data.Result.StepCount)
	return data.RecordingID
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	env := s.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"recording":false`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recordings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecordingLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := s.record(t, "checkout")

	env := s.do(t, http.MethodGet, "/api/v1/recording/status", nil)
	assert.Contains(t, string(env.Data), `"state":"stopped"`)
	assert.Contains(t, string(env.Data), `"selector":"#buy"`)

	env = s.do(t, http.MethodGet, "/api/v1/recordings", nil)
	var list struct {
		List  []models.Recording `json:"list"`
		Total int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "checkout", list.List[0].Name)
	assert.Empty(t, list.List[0].Content)

	env = s.do(t, http.MethodGet, "/api/v1/recordings/"+itoa(id), nil)
	var rec models.Recording
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Contains(t, rec.Content, "await page.goto('https://example.com');")
	assert.Contains(t, rec.Content, "await page.locator('#q').fill('shoes');")

	env = s.do(t, http.MethodPost, "/api/v1/recordings/"+itoa(id)+"/export", nil)
	require.True(t, env.Success, env.Message)
	assert.Contains(t, string(env.Data), `"status":"exported"`)

	env = s.do(t, http.MethodDelete, "/api/v1/recordings/"+itoa(id), nil)
	assert.True(t, env.Success)
	env = s.do(t, http.MethodGet, "/api/v1/recordings/"+itoa(id), nil)
	assert.False(t, env.Success)
	assert.Equal(t, 404, env.Code)
}

func TestRecordingErrors(t *testing.T) {
	s := newTestServer(t)

	env := s.do(t, http.MethodPost, "/api/v1/recording/stop", nil)
	assert.False(t, env.Success)
	assert.Equal(t, 404, env.Code)

	env = s.do(t, http.MethodPost, "/api/v1/recording/start", gin.H{"url": "not a url"})
	assert.Equal(t, 400, env.Code)

	env = s.do(t, http.MethodPost, "/api/v1/recording/start", gin.H{"url": "https://example.com"})
	require.True(t, env.Success)
	env = s.do(t, http.MethodPost, "/api/v1/recording/start", gin.H{"url": "https://example.com"})
	assert.Equal(t, 409, env.Code)

	env = s.do(t, http.MethodPost, "/api/v1/recording/save", nil)
	assert.Equal(t, 404, env.Code)

	env = s.do(t, http.MethodGet, "/api/v1/recordings/abc", nil)
	assert.Equal(t, 400, env.Code)
}

func TestReplayRecording(t *testing.T) {
	s := newTestServer(t)
	id := s.record(t, "replayable")

	env := s.do(t, http.MethodPost, "/api/v1/recordings/"+itoa(id)+"/replay", nil)
	require.True(t, env.Success, env.Message)
	assert.Contains(t, string(env.Data), `"status":"running"`)

	require.Eventually(t, func() bool {
		env := s.do(t, http.MethodGet, "/api/v1/recordings/"+itoa(id)+"/replays", nil)
		return strings.Contains(string(env.Data), `"status":"passed"`)
	}, time.Second, 10*time.Millisecond)

	env = s.do(t, http.MethodGet, "/api/v1/recordings/"+itoa(id)+"/replays", nil)
	var list struct {
		List []models.Replay `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.List, 1)
	assert.Equal(t, 25, list.List[0].Duration)
	logs, err := list.List[0].GetLogs()
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "replayed https://example.com", logs[0].Message)

	env = s.do(t, http.MethodPost, "/api/v1/replays/999/cancel", nil)
	assert.Equal(t, 404, env.Code)
}

func TestRepairEndpoints(t *testing.T) {
	s := newTestServer(t)

	env := s.do(t, http.MethodPost, "/api/v1/selectors/repair", gin.H{"selector": ".4rating"})
	var fixed struct {
		Fixed   string `json:"fixed"`
		Changed bool   `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fixed))
	assert.Equal(t, `.\34 rating`, fixed.Fixed)
	assert.True(t, fixed.Changed)

	env = s.do(t, http.MethodPost, "/api/v1/selectors/repair", gin.H{})
	assert.Equal(t, 400, env.Code)

	require.NoError(t, afero.WriteFile(s.fs, "/exports/a.spec.js",
		[]byte("await page.locator('.4rating').click();\n"), 0o644))
	require.NoError(t, afero.WriteFile(s.fs, "/exports/notes.txt", []byte("locator('.4rating')"), 0o644))

	env = s.do(t, http.MethodPost, "/api/v1/scripts/repair", nil)
	require.True(t, env.Success, env.Message)
	var summary struct {
		Processed int `json:"processed"`
		Changed   int `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Changed)

	raw, err := afero.ReadFile(s.fs, "/exports/a.spec.js")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `locator('.\\34 rating')`)
}

func TestRecordingWebSocket(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws/recording"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg["type"])
	conn.Close()

	env := s.do(t, http.MethodPost, "/api/v1/recording/start", gin.H{"url": "https://example.com"})
	require.True(t, env.Success)

	conn, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connected", msg["type"])

	s.engine.step(models.CapturedStep{Action: models.ActionClick, Selector: "#go", Timestamp: 3})
	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "step", msg["type"])
	assert.Equal(t, "#go", msg["step"].(map[string]any)["selector"])

	env = s.do(t, http.MethodPost, "/api/v1/recording/stop", nil)
	require.True(t, env.Success, env.Message)
	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "stopped", msg["type"])
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
