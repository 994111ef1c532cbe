package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praevisio/vigilance/internal/config"
	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/domain/repo/token"
	"github.com/praevisio/vigilance/internal/server"
	"github.com/praevisio/vigilance/internal/vigilance"
	"github.com/praevisio/vigilance/pkg/fetch"
)

const bearer = "s3cr3t"

var startTime = time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

type staticSnapshots struct{}

func (staticSnapshots) Snapshot(context.Context) entity.Snapshot {
	return entity.Snapshot{
		Seismic:     entity.ExternalRecord{Payload: []entity.SeismicEvent{}, IsMock: true, SourceError: "Failed to fetch seismic data."},
		GeneratedAt: startTime,
	}
}

type testEnv struct {
	router *gin.Engine
	hub    *vigilance.Hub
	clock  clockwork.FakeClock
}

type envOption func(*config.Server, *config.Vigilance, *server.Services)

func withProduction() envOption {
	return func(s *config.Server, _ *config.Vigilance, _ *server.Services) {
		s.Production = true
	}
}

func withKeepAlive(d time.Duration) envOption {
	return func(_ *config.Server, v *config.Vigilance, _ *server.Services) {
		v.KeepAlive = d
	}
}

func withSeismic(f fetch.Fetcher[[]entity.SeismicEvent]) envOption {
	return func(_ *config.Server, _ *config.Vigilance, s *server.Services) {
		s.Seismic = f
	}
}

func newTestEnv(t *testing.T, opts ...envOption) testEnv {
	t.Helper()

	clock := clockwork.NewFakeClockAt(startTime)

	hub, err := vigilance.NewHub(vigilance.HubConfig{HistoryCapacity: 100, RecentEvents: 10}, clock, prometheus.NewRegistry(), logr.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	serverConf := config.Server{BearerToken: bearer}
	vigilanceConf := config.Vigilance{SubscriberBuffer: 16}
	services := server.Services{
		Tokens:   vigilance.NewTokenService(token.NewMemoryStore(clock), clock, 15*time.Minute),
		Hub:      hub,
		Emitter:  vigilance.NewEmitter(hub, clock, vigilance.DefaultOrigin),
		Reporter: vigilance.NewReporter(hub, clock, nil, logr.Discard()),
		Seismic: fetch.FetcherFunc[[]entity.SeismicEvent](func(context.Context) ([]entity.SeismicEvent, error) {
			return []entity.SeismicEvent{{ID: "us7000abcd", Magnitude: 6.1, Place: "Offshore"}}, nil
		}),
		Snapshots: staticSnapshots{},
	}

	for _, opt := range opts {
		opt(&serverConf, &vigilanceConf, &services)
	}

	return testEnv{
		router: server.NewRouter(serverConf, vigilanceConf, services, clock, logr.Discard()),
		hub:    hub,
		clock:  clock,
	}
}

func (e testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func (e testEnv) issueToken(t *testing.T) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/eternal-vigilance/token", "{}", map[string]string{"Authorization": "Bearer " + bearer})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return resp.Token
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)

	return resp.Error
}

// readFrame returns the lines of the next SSE frame, without the blank separator.
func readFrame(t *testing.T, r *bufio.Reader) []string {
	t.Helper()

	ret := []string{}

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)

		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			return ret
		}

		ret = append(ret, line)
	}
}

func openStream(t *testing.T, srv *httptest.Server, sseToken string) (*http.Response, *bufio.Reader) {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(srv.URL + "/api/eternal-vigilance/stream?token=" + sseToken)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	init := readFrame(t, reader)
	require.Len(t, init, 2)
	assert.Equal(t, "event: init", init[0])
	assert.True(t, strings.HasPrefix(init[1], "data: "))

	var state entity.VigilanceState
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(init[1], "data: ")), &state))
	assert.Equal(t, "watching", state.Status)

	return resp, reader
}

func emit(t *testing.T, srv *httptest.Server, message string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/eternal-vigilance/emit", strings.NewReader(`{"message":"`+message+`"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func eventOf(t *testing.T, frame []string) entity.VigilanceEvent {
	t.Helper()

	require.Len(t, frame, 1)

	var ret entity.VigilanceEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame[0], "data: ")), &ret))

	return ret
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	m.Run()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBearer(t *testing.T) {
	testCases := []struct {
		name          string
		authorization string
		expected      string
	}{
		{name: "no header", expected: "missing_bearer"},
		{name: "no scheme", authorization: bearer, expected: "missing_bearer"},
		{name: "empty token", authorization: "Bearer ", expected: "missing_bearer"},
		{name: "wrong token", authorization: "Bearer nope", expected: "invalid_bearer"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)

			headers := map[string]string{}
			if tc.authorization != "" {
				headers["Authorization"] = tc.authorization
			}

			for _, path := range []string{"/api/eternal-vigilance/token", "/api/eternal-vigilance/emit"} {
				rec := env.do(t, http.MethodPost, path, `{"message":"hello"}`, headers)

				assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
				assert.Equal(t, tc.expected, errorOf(t, rec), path)
			}
		})
	}
}

func TestIssueToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/eternal-vigilance/token", "", map[string]string{"Authorization": "Bearer " + bearer})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Len(t, resp.Token, 43)
	assert.Equal(t, startTime.Add(15*time.Minute), resp.ExpiresAt)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	cookie := cookies[0]
	assert.Equal(t, server.TokenCookie, cookie.Name)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 900, cookie.MaxAge)
}

func TestIssueTokenWithTTL(t *testing.T) {
	env := newTestEnv(t, withProduction())

	rec := env.do(t, http.MethodPost, "/api/eternal-vigilance/token", `{"ttlSeconds":60,"scope":"dashboard"}`, map[string]string{"Authorization": "Bearer " + bearer})
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 60, cookies[0].MaxAge)

	rec = env.do(t, http.MethodPost, "/api/eternal-vigilance/token", `{"ttlSeconds":"soon"}`, map[string]string{"Authorization": "Bearer " + bearer})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", errorOf(t, rec))
}

func TestStreamRejectsTokens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/eternal-vigilance/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_token", errorOf(t, rec))

	rec = env.do(t, http.MethodGet, "/api/eternal-vigilance/stream?token=unknown", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", errorOf(t, rec))

	sseToken := env.issueToken(t)
	env.clock.Advance(16 * time.Minute)

	rec = env.do(t, http.MethodGet, "/api/eternal-vigilance/stream?token="+sseToken, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", errorOf(t, rec))
}

func TestStreamDeliversEventsInOrder(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	sseToken := env.issueToken(t)

	respA, readerA := openStream(t, srv, sseToken)
	defer respA.Body.Close()

	respB, readerB := openStream(t, srv, sseToken)
	defer respB.Body.Close()

	emit(t, srv, "first")
	emit(t, srv, "second")

	for _, reader := range []*bufio.Reader{readerA, readerB} {
		first := eventOf(t, readFrame(t, reader))
		second := eventOf(t, readFrame(t, reader))

		assert.Equal(t, "first", first.Message)
		assert.Equal(t, vigilance.DefaultEventType, first.Type)
		assert.Equal(t, "second", second.Message)
	}
}

func TestStreamWithCookie(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/eternal-vigilance/stream", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: server.TokenCookie, Value: env.issueToken(t)})

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"event: init"}, readFrame(t, bufio.NewReader(resp.Body))[:1])
}

func TestStreamKeepAlive(t *testing.T) {
	env := newTestEnv(t, withKeepAlive(15*time.Second))
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	resp, reader := openStream(t, srv, env.issueToken(t))
	defer resp.Body.Close()

	env.clock.BlockUntil(1)
	env.clock.Advance(15 * time.Second)

	assert.Equal(t, []string{": ping"}, readFrame(t, reader))
}

func TestDisconnectedSubscriberDoesNotBreakEmit(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	sseToken := env.issueToken(t)

	gone, _ := openStream(t, srv, sseToken)
	stay, reader := openStream(t, srv, sseToken)
	defer stay.Body.Close()

	require.NoError(t, gone.Body.Close())

	assert.Eventually(t, func() bool {
		state, err := env.hub.State(context.Background())

		return err == nil && state.Subscribers == 1
	}, 5*time.Second, 10*time.Millisecond)

	emit(t, srv, "still here")

	assert.Equal(t, "still here", eventOf(t, readFrame(t, reader)).Message)
}

func TestEmitMissingMessage(t *testing.T) {
	env := newTestEnv(t)
	headers := map[string]string{"Authorization": "Bearer " + bearer}

	for _, body := range []string{"", "{}", `{"message":"   "}`, `{"message":42}`} {
		rec := env.do(t, http.MethodPost, "/api/eternal-vigilance/emit", body, headers)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "missing_message", errorOf(t, rec), body)
	}
}

func TestEmitThenReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/eternal-vigilance/emit", `{"message":"E2E test event 123","type":"e2e"}`, map[string]string{"Authorization": "Bearer " + bearer})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                  `json:"success"`
		Event   entity.VigilanceEvent `json:"event"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "e2e", resp.Event.Type)
	assert.Equal(t, startTime, resp.Event.Timestamp)
	assert.NotEmpty(t, resp.Event.ID)

	rec = env.do(t, http.MethodPost, "/api/eternal-vigilance/report", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "E2E test event 123")
	assert.Empty(t, rec.Header().Get(server.HeaderArchiveKey))

	rec = env.do(t, http.MethodGet, "/api/eternal-vigilance/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state entity.VigilanceState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, uint64(1), state.TotalEvents)
	assert.Equal(t, 0, state.Subscribers)
}

func TestSeismicActivity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/seismic/activity", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", rec.Header().Get(server.HeaderMock))

	var events []entity.SeismicEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "us7000abcd", events[0].ID)
}

func TestSeismicActivityFallback(t *testing.T) {
	failing := fetch.FetcherFunc[[]entity.SeismicEvent](func(context.Context) ([]entity.SeismicEvent, error) {
		return nil, &fetch.RetriesExhaustedError{Message: "Failed to fetch seismic data.", Attempts: 3, Last: errors.New("connection refused")}
	})

	env := newTestEnv(t, withSeismic(failing))

	rec := env.do(t, http.MethodGet, "/api/seismic/activity", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(server.HeaderMock))

	var events []entity.SeismicEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.NotEmpty(t, events)
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/snapshot", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot struct {
		Seismic struct {
			IsMock      bool   `json:"isMock"`
			SourceError string `json:"sourceError"`
		} `json:"seismic"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.True(t, snapshot.Seismic.IsMock)
	assert.Equal(t, "Failed to fetch seismic data.", snapshot.Seismic.SourceError)
}

func TestStreamEndsWhenHubStops(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)

	hub, err := vigilance.NewHub(vigilance.HubConfig{HistoryCapacity: 10}, clock, prometheus.NewRegistry(), logr.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := server.NewRouter(config.Server{BearerToken: bearer}, config.Vigilance{SubscriberBuffer: 4}, server.Services{
		Tokens: vigilance.NewTokenService(token.NewMemoryStore(clock), clock, time.Minute),
		Hub:    hub,
	}, clock, logr.Discard())

	env := testEnv{router: router, hub: hub, clock: clock}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp, reader := openStream(t, srv, env.issueToken(t))
	defer resp.Body.Close()

	cancel()

	_, err = reader.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}
