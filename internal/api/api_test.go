package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/coldstore"
	"github.com/skyblock-archive/auctions/internal/hotstore"
	"github.com/skyblock-archive/auctions/internal/migrator"
	"github.com/skyblock-archive/auctions/internal/offset"
	"github.com/skyblock-archive/auctions/internal/query"
)

type fakeRestorer struct {
	restored []auction.Auction
	retired  []auction.ID
}

func (f *fakeRestorer) Restore(_ context.Context, a auction.Auction) error {
	f.restored = append(f.restored, a)
	return nil
}

func (f *fakeRestorer) Retire(_ context.Context, id auction.ID) error {
	f.retired = append(f.retired, id)
	return nil
}

func newTestServer(t *testing.T) (*Server, hotstore.Store, *coldstore.Store, *fakeRestorer) {
	gin.SetMode(gin.TestMode)
	hot := hotstore.NewMemStore()
	cold := coldstore.New(coldstore.NewLocalClient(t.TempDir()))
	router := query.NewTierRouter(hot, cold, true, 3)
	engine := query.NewEngine(router, hot, query.NewMemSummaryStore(), nil, nil)
	mig := migrator.New(hot, cold, []string{"HYPERION"}, 3)
	offsets := offset.NewTracker(offset.NewMemCache(), 0)
	restorer := &fakeRestorer{}
	return NewServer(engine, hot, cold, mig, offsets, restorer), hot, cold, restorer
}

func TestGetAuctionReturns404ForUnknownUUID(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/auction/"+auction.NewRandomID().String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAuctionReturnsCombinedAuction(t *testing.T) {
	s, hot, _, _ := newTestServer(t)
	r := s.Router()
	ctx := context.Background()

	id := auction.NewRandomID()
	a := auction.Auction{UUID: id, ItemTag: "HYPERION", Seller: auction.NewRandomID(),
		Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour)}
	require.NoError(t, hot.Insert(ctx, a, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/api/auction/"+id.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
}

func TestGetAuctionRejectsMalformedUUID(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/auction/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecentOverviewReturnsUpToTwelve(t *testing.T) {
	s, hot, _, _ := newTestServer(t)
	r := s.Router()
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 15; i++ {
		a := auction.Auction{
			UUID: auction.NewRandomID(), ItemTag: "HYPERION", Seller: auction.NewRandomID(),
			Start: now.Add(-2 * time.Hour), End: now.Add(-time.Duration(i) * time.Minute),
			Bids: []auction.Bid{{Bidder: auction.NewRandomID(), Amount: int64(1000 + i)}},
		}
		require.NoError(t, hot.Insert(ctx, a, now))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/tag/HYPERION/recent/overview", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 12)
}

func TestSetImportOffsetRequiresIntegerID(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/import/offset?id=notanumber", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetImportOffsetAdvancesTracker(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/import/offset?id=5000", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5000), s.Offsets.Current())
}

func TestListArchivedMonthsEmptyByDefault(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/archive/HYPERION/months", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestRestoreRejectsUnknownUUID(t *testing.T) {
	s, _, _, restorer := newTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/restore/"+auction.NewRandomID().String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code)
	assert.Empty(t, restorer.restored)
}

func TestRestoreReinsertsKnownHotAuction(t *testing.T) {
	s, hot, _, restorer := newTestServer(t)
	r := s.Router()
	ctx := context.Background()

	id := auction.NewRandomID()
	a := auction.Auction{UUID: id, ItemTag: "HYPERION", Seller: auction.NewRandomID(),
		Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour)}
	require.NoError(t, hot.Insert(ctx, a, time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/api/restore/"+id.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, restorer.restored, 1)
	assert.Equal(t, id, restorer.restored[0].UUID)
}

func TestTriggerMigrationSkipsEmptyTags(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/archive/migrate", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
