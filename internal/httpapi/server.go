// Package httpapi serves a read-only HTTP view of a ledger.
//
// Mutations are not exposed: the caller's identity comes from the local key
// file, which an HTTP peer cannot present.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/ledger"
	"github.com/roach88/chitchat/internal/store"
)

// DefaultEventLimit caps /v1/events when no limit is given.
const DefaultEventLimit = 500

// Server routes read requests to a ledger.
type Server struct {
	ledger *ledger.Ledger
	router *mux.Router
}

// New creates a server for l and registers its routes.
func New(l *ledger.Ledger) *Server {
	s := &Server{ledger: l, router: mux.NewRouter()}

	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(l.Metrics().Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/conversations/{a}/{b}", s.conversation).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{a}/{b}/messages", s.messages).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{a}/{b}/messages/{index:[0-9]+}", s.message).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.events).Methods(http.MethodGet)

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	slog.Info("http api listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("http api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http api shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	slog.Info("http api stopped", "addr", addr)
	return nil
}

type conversationResponse struct {
	Key    ir.ConversationKey `json:"key"`
	Length int64              `json:"length"`
}

type messagesResponse struct {
	Key      ir.ConversationKey `json:"key"`
	Messages []ir.MessageView   `json:"messages"`
}

type eventsResponse struct {
	Events  []ir.ChangeEvent `json:"events"`
	LastSeq int64            `json:"last_seq"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": ir.Version})
}

func (s *Server) conversation(w http.ResponseWriter, r *http.Request) {
	a, b, key, ok := pairFromVars(w, r)
	if !ok {
		return
	}
	n, err := s.ledger.ConversationLength(r.Context(), a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{Key: key, Length: n})
}

func (s *Server) messages(w http.ResponseWriter, r *http.Request) {
	a, b, key, ok := pairFromVars(w, r)
	if !ok {
		return
	}
	msgs, err := s.ledger.Conversation(r.Context(), a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]ir.MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = m.View(int64(i))
	}
	writeJSON(w, http.StatusOK, messagesResponse{Key: key, Messages: views})
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	a, b, _, ok := pairFromVars(w, r)
	if !ok {
		return
	}
	index, err := strconv.ParseInt(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		writeBadRequest(w, "index: "+err.Error())
		return
	}
	msg, err := s.ledger.Message(r.Context(), a, b, index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg.View(index))
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.EventFilter{Limit: DefaultEventLimit}

	if c := q.Get("conversation"); c != "" {
		key, err := ir.ResolveConversation(c)
		if err != nil {
			writeError(w, err)
			return
		}
		f.Key = &key
	}
	if v := q.Get("after"); v != "" {
		after, err := strconv.ParseInt(v, 10, 64)
		if err != nil || after < 0 {
			writeBadRequest(w, "after must be a non-negative integer")
			return
		}
		f.AfterSeq = after
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		f.Limit = limit
	}

	events, err := s.ledger.Events(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	lastSeq, err := s.ledger.Store().LastSeq(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, LastSeq: lastSeq})
}

func pairFromVars(w http.ResponseWriter, r *http.Request) (ir.Identity, ir.Identity, ir.ConversationKey, bool) {
	vars := mux.Vars(r)
	a, err := ir.ParseIdentity(vars["a"])
	if err != nil {
		writeBadRequest(w, err.Error())
		return ir.Identity{}, ir.Identity{}, ir.ConversationKey{}, false
	}
	b, err := ir.ParseIdentity(vars["b"])
	if err != nil {
		writeBadRequest(w, err.Error())
		return ir.Identity{}, ir.Identity{}, ir.ConversationKey{}, false
	}
	key, err := ir.DeriveConversationKey(a, b)
	if err != nil {
		writeError(w, err)
		return ir.Identity{}, ir.Identity{}, ir.ConversationKey{}, false
	}
	return a, b, key, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http api: encode response", "error", err)
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{
		"error": {Code: "BAD_REQUEST", Message: message},
	})
}

// writeError maps domain rejections to 4xx and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	e, ok := ir.AsError(err)
	if !ok {
		slog.Error("http api: request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{
			"error": {Code: "INTERNAL", Message: "internal error"},
		})
		return
	}

	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ir.ErrIndexOutOfBounds):
		status = http.StatusNotFound
	case e.Kind == ir.KindAuthorization:
		status = http.StatusForbidden
	case e.Kind == ir.KindStateConflict:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]errorBody{
		"error": {Code: string(e.Code), Message: e.Error()},
	})
}
