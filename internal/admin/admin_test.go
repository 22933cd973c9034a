package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamnguyen-dev/chat-dispatch/internal/credentials"
	"github.com/lamnguyen-dev/chat-dispatch/internal/models"
	"github.com/lamnguyen-dev/chat-dispatch/internal/pool"
	"github.com/lamnguyen-dev/chat-dispatch/internal/quota"
	"github.com/lamnguyen-dev/chat-dispatch/internal/shard"
)

type fakeStore struct {
	users map[string]*models.User
}

func (f *fakeStore) GetUserByKey(ctx context.Context, key string) (*models.User, error) {
	if u, ok := f.users[key]; ok {
		return u, nil
	}
	return nil, shard.ErrNotFound
}

func (f *fakeStore) ExpireSubscription(ctx context.Context, userID int64) error {
	return nil
}

func newTestAdmin(t *testing.T) (*mux.Router, *quota.Ledger, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	p := pool.New([]string{s.Addr()})
	t.Cleanup(p.Close)

	ledger := quota.NewLedger(p)
	locator := shard.NewLocator([]shard.Store{&fakeStore{users: map[string]*models.User{
		"known@example.com": {ID: 5, IdentityKey: "known@example.com", Tier: "plus"},
	}}})

	handler := NewAdminHandler(credentials.New([]string{"sk-a", "", "junk"}), p, ledger, locator)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router, ledger, s
}

func TestCredentialReport(t *testing.T) {
	router, _, _ := newTestAdmin(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/credentials", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report credentials.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.ValidCount)
	assert.Equal(t, []int{2}, report.MissingSlots)
	assert.Equal(t, []int{3}, report.MalformedSlots)
}

func TestBackendHealth(t *testing.T) {
	router, _, s := newTestAdmin(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/backends", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []backendStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, s.Addr(), statuses[0].Addr)
	assert.True(t, statuses[0].Alive)
}

func TestResetQuota_Guest(t *testing.T) {
	router, ledger, _ := newTestAdmin(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ledger.Track(ctx, quota.GuestKey("203.0.113.50"), 5, time.Hour)
	}
	require.False(t, ledger.Track(ctx, quota.GuestKey("203.0.113.50"), 5, time.Hour).Admitted)

	body := bytes.NewBufferString(`{"guest_ip":"203.0.113.50"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/quota/reset", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, ledger.Track(ctx, quota.GuestKey("203.0.113.50"), 5, time.Hour).Admitted)
}

func TestResetQuota_RequiresIdentity(t *testing.T) {
	router, _, _ := newTestAdmin(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/quota/reset", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupUser(t *testing.T) {
	router, _, _ := newTestAdmin(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/users/known@example.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Partition int          `json:"partition"`
		User      *models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Partition)
	assert.Equal(t, int64(5), resp.User.ID)

	req = httptest.NewRequest(http.MethodGet, "/admin/users/ghost@example.com", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
