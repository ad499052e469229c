package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clicky-game/internal/model"
)

func TestClient_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/leaderboard", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"6f1c","name":"a","score":9,"created_at":"2024-01-01T00:00:00Z"},{"name":"b","score":1}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	entries, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.LeaderboardEntry{{Name: "a", Score: 9}, {Name: "b", Score: 1}}, entries)
}

func TestClient_Submit(t *testing.T) {
	var got submitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.Submit(context.Background(), "alice", 42))
	assert.Equal(t, submitRequest{Name: "alice", Score: 42}, got)
}

func TestClient_ResetSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Leaderboard reset successfully"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).Reset(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "unauthorized")

	err = NewClient(srv.URL, time.Second, WithResetToken("s3cret")).Reset(context.Background())
	assert.NoError(t, err)
}

func TestClient_ServerErrorDegradesSynchronizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database down"}`))
	}))
	defer srv.Close()

	s := NewSynchronizer(NewClient(srv.URL, time.Second), newEmptyStore(), testRand())
	status := s.Upsert(context.Background(), "alice", 12)

	assert.Equal(t, StatusDegraded, status)
	assert.Equal(t, []model.LeaderboardEntry{{Name: "alice", Score: 12}}, s.Entries())
}
