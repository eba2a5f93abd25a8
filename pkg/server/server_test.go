package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"walletfolio/pkg/models"
	"walletfolio/pkg/pricefeed"
	"walletfolio/pkg/provider"
	"walletfolio/pkg/registry"
	"walletfolio/pkg/storage"
	"walletfolio/pkg/watcher"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA = "0x" + strings.Repeat("a", 40)
	addrB = "0x" + strings.Repeat("b", 40)
)

type staticFetcher struct{}

func (staticFetcher) FetchPriceQuote(ctx context.Context, coinID string) (models.PriceData, error) {
	return models.PriceData{CoinID: coinID, Quote: models.PriceQuote{USD: 1000}}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := storage.NewMemoryStore()
	reg := registry.New(store, nil)
	vm := registry.NewViewMode(store, nil)
	require.NoError(t, vm.Load(context.Background()))
	w := watcher.NewWatcher(reg, vm, pricefeed.NewPoller("ethereum", staticFetcher{}, nil), nil, nil)
	return NewServer(w, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp := decode[map[string]interface{}](t, rr)
	assert.Contains(t, resp, "wallets")
	assert.Contains(t, resp, "valuation")
	assert.Equal(t, "combined", resp["view_mode"])
}

func TestHandleValuation(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/api/valuation", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	v := decode[models.Valuation](t, rr)
	assert.Equal(t, models.ViewCombined, v.Mode)
	assert.Zero(t, v.ValueUSD)
}

func TestHandleDisconnect(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodPost, "/api/disconnect", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	store := storage.NewMemoryStore()
	vm := registry.NewViewMode(store, nil)
	require.NoError(t, vm.Load(context.Background()))
	w := watcher.NewWatcher(registry.New(store, nil), vm,
		pricefeed.NewPoller("ethereum", staticFetcher{}, nil),
		provider.NewRPCProvider(nil, addrA, nil), nil)
	s := NewServer(w, nil)

	rr = do(t, s, http.MethodPost, "/api/disconnect", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[map[string]interface{}](t, rr)
	assert.Equal(t, "", resp["connected_address"])

	rr = do(t, s, http.MethodPost, "/api/disconnect", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestWalletLifecycle(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/wallets", `{"address":"`+addrA+`","label":"Hot"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	a := decode[models.Wallet](t, rr)
	assert.True(t, a.IsPrimary)
	assert.Equal(t, "Hot", a.Label)

	rr = do(t, s, http.MethodPost, "/api/wallets", `{"address":"`+"0x"+strings.ToUpper(addrA[2:])+`"}`)
	assert.Equal(t, http.StatusOK, rr.Code, "duplicate returns the existing wallet")
	assert.Equal(t, a.ID, decode[models.Wallet](t, rr).ID)

	rr = do(t, s, http.MethodPost, "/api/wallets", `{"address":"`+addrB+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	b := decode[models.Wallet](t, rr)
	assert.Equal(t, "Wallet 2", b.Label)

	rr = do(t, s, http.MethodPatch, "/api/wallets/"+b.ID, `{"label":"Cold","is_primary":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	st := decode[registry.State](t, rr)
	assert.Equal(t, "Cold", st.Wallets[1].Label)
	assert.True(t, st.Wallets[1].IsPrimary)
	assert.False(t, st.Wallets[0].IsPrimary)

	rr = do(t, s, http.MethodPost, "/api/wallets/"+a.ID+"/primary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[registry.State](t, rr).Wallets[0].IsPrimary)

	rr = do(t, s, http.MethodPost, "/api/wallets/"+a.ID+"/select", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, a.ID, decode[registry.State](t, rr).SelectedWalletID)

	rr = do(t, s, http.MethodDelete, "/api/wallets/"+a.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	st = decode[registry.State](t, rr)
	require.Len(t, st.Wallets, 1)
	assert.True(t, st.Wallets[0].IsPrimary)
	assert.Equal(t, b.ID, st.SelectedWalletID)

	rr = do(t, s, http.MethodGet, "/api/wallets", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[registry.State](t, rr).Wallets, 1)
}

func TestAddWallet_BadRequests(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/wallets", `{"address":"0x1234"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, registry.ErrInvalidAddress.Error(), decode[errorResponse](t, rr).Error)

	rr = do(t, s, http.MethodPost, "/api/wallets", `{`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownWallet(t *testing.T) {
	s := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPatch, "/api/wallets/nope"},
		{http.MethodDelete, "/api/wallets/nope"},
		{http.MethodPost, "/api/wallets/nope/primary"},
		{http.MethodPost, "/api/wallets/nope/select"},
	} {
		rr := do(t, s, tc.method, tc.path, `{}`)
		assert.Equal(t, http.StatusNotFound, rr.Code, tc.method+" "+tc.path)
	}
}

func TestViewModeRoutes(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/view-mode", "")
	assert.Equal(t, models.ViewCombined, decode[viewModeBody](t, rr).Mode)

	rr = do(t, s, http.MethodPost, "/api/view-mode/toggle", "")
	assert.Equal(t, models.ViewIndividual, decode[viewModeBody](t, rr).Mode)

	rr = do(t, s, http.MethodPut, "/api/view-mode", `{"mode":"combined"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.ViewCombined, decode[viewModeBody](t, rr).Mode)

	rr = do(t, s, http.MethodPut, "/api/view-mode", `{"mode":"grid"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, s, http.MethodGet, "/api/view-mode", "")
	assert.Equal(t, models.ViewCombined, decode[viewModeBody](t, rr).Mode)
}

func TestHandleWS(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.forward(ctx, s.watcher.Subscribe())

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	var msg map[string]interface{}
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "initial", msg["type"])

	rr := do(t, s, http.MethodPost, "/api/view-mode/toggle", "")
	require.Equal(t, http.StatusOK, rr.Code)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, string(watcher.EventViewModeChanged), msg["type"])
	assert.Equal(t, "individual", msg["data"])
}
