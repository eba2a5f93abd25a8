package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"walletfolio/pkg/models"
	"walletfolio/pkg/registry"
	"walletfolio/pkg/watcher"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	watcher *watcher.Watcher
	log     *zap.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	router  *chi.Mux
}

func NewServer(w *watcher.Watcher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		watcher: w,
		log:     log,
		clients: make(map[*websocket.Conn]bool),
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Get("/valuation", s.handleValuation)

		api.Route("/wallets", func(wr chi.Router) {
			wr.Get("/", s.handleListWallets)
			wr.Post("/", s.handleAddWallet)
			wr.Route("/{id}", func(one chi.Router) {
				one.Patch("/", s.handleUpdateWallet)
				one.Delete("/", s.handleRemoveWallet)
				one.Post("/primary", s.handleSetPrimary)
				one.Post("/select", s.handleSelect)
			})
		})

		api.Get("/view-mode", s.handleGetViewMode)
		api.Put("/view-mode", s.handleSetViewMode)
		api.Post("/view-mode/toggle", s.handleToggleViewMode)
		api.Post("/disconnect", s.handleDisconnect)
	})
	r.Get("/ws", s.handleWS)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	go s.forward(ctx, s.watcher.Subscribe())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("API server listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.watcher.Snapshot())
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.watcher.Valuation())
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	snap := s.watcher.Snapshot()
	writeJSON(w, http.StatusOK, registry.State{
		Wallets:          snap.Wallets,
		SelectedWalletID: snap.SelectedWalletID,
	})
}

type addWalletRequest struct {
	Address string `json:"address"`
	Label   string `json:"label"`
}

func (s *Server) handleAddWallet(w http.ResponseWriter, r *http.Request) {
	var req addWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wallet, created, err := s.watcher.AddWallet(req.Address, req.Label)
	if errors.Is(err, registry.ErrInvalidAddress) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, wallet)
}

// walletID resolves the {id} parameter, writing a 404 when it is unknown.
func (s *Server) walletID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, ok := s.watcher.Wallet(id); !ok {
		writeError(w, http.StatusNotFound, "wallet not found")
		return "", false
	}
	return id, true
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.walletID(w, r)
	if !ok {
		return
	}
	var upd models.WalletUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, s.watcher.UpdateWallet(id, upd))
}

func (s *Server) handleRemoveWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.walletID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.watcher.RemoveWallet(id))
}

func (s *Server) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.walletID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.watcher.SetPrimaryWallet(id))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.walletID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.watcher.SelectWallet(id))
}

type viewModeBody struct {
	Mode models.ViewMode `json:"mode"`
}

func (s *Server) handleGetViewMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewModeBody{Mode: s.watcher.Snapshot().ViewMode})
}

func (s *Server) handleSetViewMode(w http.ResponseWriter, r *http.Request) {
	var req viewModeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.watcher.SetViewMode(req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleToggleViewMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewModeBody{Mode: s.watcher.ToggleViewMode()})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if !s.watcher.Disconnect() {
		writeError(w, http.StatusConflict, "no wallet connected")
		return
	}
	writeJSON(w, http.StatusOK, s.watcher.Snapshot())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	// Register before the initial write so no event is lost in between.
	s.mu.Lock()
	s.clients[conn] = true
	err = conn.WriteJSON(watcher.Event{Type: "initial", Data: s.watcher.Snapshot()})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// forward relays watcher events to every websocket client.
func (s *Server) forward(ctx context.Context, sub watcher.Subscriber) {
	defer s.watcher.Unsubscribe(sub)

	for {
		select {
		case event := <-sub:
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(event watcher.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
