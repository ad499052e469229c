package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"clicky-game/internal/config"
	"clicky-game/internal/leaderboard"
	"clicky-game/internal/metrics"
	"clicky-game/internal/model"
	"clicky-game/internal/service"
	"clicky-game/internal/storage"
)

type fakeService struct {
	mu     sync.Mutex
	rows   []model.LeaderboardRow
	err    error
	resets int
}

func (f *fakeService) Rows(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.LeaderboardRow, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeService) Entry(ctx context.Context, name string) (*model.LeaderboardRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.rows {
		if f.rows[i].Name == name {
			row := f.rows[i]
			return &row, nil
		}
	}
	return nil, model.ErrEntryNotFound
}

func (f *fakeService) SubmitScore(ctx context.Context, name string, score int64) (*model.LeaderboardRow, bool, error) {
	name, err := service.ValidateSubmission(name, score)
	if err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	for i := range f.rows {
		if f.rows[i].Name == name {
			if score > f.rows[i].Score {
				f.rows[i].Score = score
			}
			row := f.rows[i]
			return &row, false, nil
		}
	}
	row := model.LeaderboardRow{ID: uuid.New(), Name: name, Score: score, CreatedAt: time.Now()}
	f.rows = append(f.rows, row)
	return &row, true, nil
}

func (f *fakeService) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.resets++
	f.rows = nil
	for _, e := range leaderboard.Seed(leaderboard.DefaultRand, leaderboard.ResetFillerCount) {
		f.rows = append(f.rows, model.LeaderboardRow{ID: uuid.New(), Name: e.Name, Score: e.Score})
	}
	return nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(ctx context.Context) error { return f.err }

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		AllowedOrigins: []string{"https://clicky.example"},
		SubmitRate:     100,
		SubmitBurst:    100,
	}
}

func newTestRouter(svc *fakeService, token string) http.Handler {
	m := metrics.New()
	return NewRouter(testServerConfig(), token, NewHandler(svc, fakeHealth{}, m), m)
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitScore_Statuses(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc, "")

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"insert", `{"name":"me","score":10}`, http.StatusCreated},
		{"update", `{"name":"me","score":20}`, http.StatusOK},
		{"lower keeps row", `{"name":"me","score":5}`, http.StatusOK},
		{"blank name", `{"name":"  ","score":5}`, http.StatusBadRequest},
		{"long name", `{"name":"abcdefghijklmnopqrstu","score":5}`, http.StatusBadRequest},
		{"negative", `{"name":"me","score":-1}`, http.StatusBadRequest},
		{"missing score", `{"name":"me"}`, http.StatusBadRequest},
		{"fractional score", `{"name":"me","score":1.5}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/leaderboard", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rows, _ := svc.Rows(context.Background(), 0)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(20), rows[0].Score)
}

func TestSubmitScore_ReturnsRow(t *testing.T) {
	h := newTestRouter(&fakeService{}, "")

	rec := do(t, h, http.MethodPost, "/api/leaderboard", `{"name":"ClickyGuy123","score":7}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var rows []model.LeaderboardRow
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "ClickyGuy123", rows[0].Name)
	assert.NotEqual(t, uuid.Nil, rows[0].ID)
}

func TestGetLeaderboard(t *testing.T) {
	svc := &fakeService{rows: []model.LeaderboardRow{{Name: "a", Score: 2}, {Name: "b", Score: 1}}}
	h := newTestRouter(svc, "")

	rec := do(t, h, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	for _, key := range []string{"id", "name", "score", "created_at"} {
		assert.Contains(t, got[0], key)
	}

	svc.err = errors.New("db down")
	rec = do(t, h, http.MethodGet, "/api/leaderboard", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetEntry(t *testing.T) {
	svc := &fakeService{rows: []model.LeaderboardRow{{Name: "Click Master", Score: 7}}}
	h := newTestRouter(svc, "")

	rec := do(t, h, http.MethodGet, "/api/leaderboard/entry/Click%20Master", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var row model.LeaderboardRow
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&row))
	assert.Equal(t, "Click Master", row.Name)
	assert.Equal(t, int64(7), row.Score)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/entry/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.err = errors.New("db down")
	rec = do(t, h, http.MethodGet, "/api/leaderboard/entry/nobody", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestRouter(&fakeService{}, "")

	rec := do(t, h, http.MethodDelete, "/api/leaderboard", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodGet)

	rec = do(t, h, http.MethodGet, "/api/leaderboard/reset", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestResetLeaderboard(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc, "s3cret")

	rec := do(t, h, http.MethodPost, "/api/leaderboard/reset", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/leaderboard/reset", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, svc.resets)

	rec = do(t, h, http.MethodPost, "/api/leaderboard/reset", "", map[string]string{"Authorization": "Bearer s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Leaderboard reset successfully"}`, rec.Body.String())

	rows, _ := svc.Rows(context.Background(), 0)
	assert.Len(t, rows, len(leaderboard.SeedEntries)+leaderboard.ResetFillerCount)
}

func TestResetLeaderboard_NoTokenConfigured(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc, "")

	rec := do(t, h, http.MethodPost, "/api/leaderboard/reset", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.resets)
}

func TestCORS(t *testing.T) {
	h := newTestRouter(&fakeService{}, "")

	rec := do(t, h, http.MethodOptions, "/api/leaderboard", "", map[string]string{"Origin": "https://clicky.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://clicky.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/leaderboard", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	mw := CORSMiddleware([]string{"*"})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := do(t, h, http.MethodGet, "/", "", map[string]string{"Origin": "https://anywhere.example"})
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.SubmitRate = 0.001
	cfg.SubmitBurst = 2
	m := metrics.New()
	h := NewRouter(cfg, "", NewHandler(&fakeService{}, nil, m), m)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, h, http.MethodPost, "/api/leaderboard", `{"name":"me","score":1}`, nil).Code
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Reads are never limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/leaderboard", "", nil).Code)
}

func TestSubmitLimiter_SweepsRefilledBuckets(t *testing.T) {
	l := newSubmitLimiter(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		assert.True(t, l.allow(uuid.NewString()))
	}
	assert.True(t, l.allow("slow"))
	assert.False(t, l.allow("slow"))
	assert.Equal(t, 51, l.tracked())

	now = now.Add(sweepInterval)
	assert.True(t, l.allow("fresh"))
	assert.Equal(t, 1, l.tracked())
}

func TestSubmitLimiter_KeepsDrainedBuckets(t *testing.T) {
	l := newSubmitLimiter(rate.Every(time.Hour), 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("spender"))
	now = now.Add(sweepInterval)
	assert.True(t, l.allow("other"))
	assert.Equal(t, 2, l.tracked())
	assert.False(t, l.allow("spender"))
}

func TestRateLimit_ForwardedForNeedsTrustedProxy(t *testing.T) {
	submit := func(h http.Handler, forwardedFor string) int {
		header := map[string]string{"X-Forwarded-For": forwardedFor}
		return do(t, h, http.MethodPost, "/api/leaderboard", `{"name":"me","score":1}`, header).Code
	}

	cfg := testServerConfig()
	cfg.SubmitRate = 0.001
	cfg.SubmitBurst = 1
	m := metrics.New()
	h := NewRouter(cfg, "", NewHandler(&fakeService{}, nil, m), m)
	assert.Equal(t, http.StatusCreated, submit(h, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, submit(h, "203.0.113.2"))

	cfg.TrustProxy = true
	h = NewRouter(cfg, "", NewHandler(&fakeService{}, nil, m), m)
	assert.Equal(t, http.StatusCreated, submit(h, "203.0.113.1"))
	assert.Equal(t, http.StatusOK, submit(h, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, submit(h, "203.0.113.2"))
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	h := NewRouter(testServerConfig(), "", NewHandler(&fakeService{}, fakeHealth{}, m), m)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
	do(t, h, http.MethodGet, "/api/leaderboard", "", nil)

	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clicky_http_requests_total")

	down := NewRouter(testServerConfig(), "", NewHandler(&fakeService{}, fakeHealth{err: errors.New("no db")}, nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/healthz", "", nil).Code)
}

// The HTTP client and the synchronizer work end to end against the router.
func TestClientAgainstRouter(t *testing.T) {
	svc := &fakeService{}
	ts := httptest.NewServer(newTestRouter(svc, "tok"))
	defer ts.Close()

	client := leaderboard.NewClient(ts.URL, time.Second, leaderboard.WithResetToken("tok"))
	syncer := leaderboard.NewSynchronizer(client, storage.NewMemoryStore(), nil)
	ctx := context.Background()

	assert.Equal(t, leaderboard.StatusSynced, syncer.Upsert(ctx, "me", 42))
	rank, ok := syncer.Rank("me")
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	assert.Equal(t, leaderboard.StatusSynced, syncer.ResetAll(ctx))
	assert.Len(t, syncer.Entries(), len(leaderboard.SeedEntries)+leaderboard.ResetFillerCount)

	unauthorized := leaderboard.NewClient(ts.URL, time.Second)
	err := unauthorized.Reset(ctx)
	assert.True(t, leaderboard.IsStatus(err, http.StatusUnauthorized))
}
