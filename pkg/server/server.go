// Package server exposes the shopping assistant as an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jllopis/shopper/pkg/agent"
	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/memory"
	"github.com/jllopis/shopper/pkg/retrieval"
	"github.com/jllopis/shopper/pkg/tools"
)

const maxBodyBytes = 1 << 20

// Asker runs the agent loop for one question.
type Asker interface {
	Run(ctx context.Context, goal string, opts ...agent.RunOption) (*agent.Outcome, error)
}

// Preferences is the slice of the preference store the API needs.
type Preferences interface {
	Add(ctx context.Context, text string) (string, error)
	Records(ctx context.Context) ([]memory.PreferenceRecord, error)
	Nearest(ctx context.Context, query string, k int) ([]memory.PreferenceRecord, error)
}

// Options wires the server dependencies. Preferences may be nil when memory
// is disabled.
type Options struct {
	Agent        Asker
	Registry     *tools.Registry
	Preferences  Preferences
	DefaultK     int
	SnippetChars int
	Version      string
	Logger       *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	opts   Options
	router chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = retrieval.DefaultK
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = retrieval.DefaultSnippetChars
	}
	if opts.Registry == nil {
		opts.Registry = tools.MustRegistry()
	}
	s := &Server{opts: opts}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(withSession)
	r.Use(s.logRequests)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.ask)
		r.Get("/tools", s.listTools)
		r.Route("/memories", func(r chi.Router) {
			r.Get("/", s.listMemories)
			r.Post("/", s.addMemory)
			r.Get("/search", s.searchMemories)
		})
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server.listen", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.opts.Logger.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// SessionHeader lets a client group its requests in the logs.
const SessionHeader = "X-Session-ID"

func withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if id == "" || len(id) > 128 {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(core.WithSessionID(r.Context(), id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.opts.Logger.InfoContext(r.Context(), "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", chiMiddleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	memoryStatus := "disabled"
	if s.opts.Preferences != nil {
		memoryStatus = "enabled"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.opts.Version,
		"tools":   s.opts.Registry.Len(),
		"memory":  memoryStatus,
	})
}

type askRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
	MaxTurns int    `json:"max_turns,omitempty"`
	NoMemory bool   `json:"no_memory,omitempty"`
}

type askResponse struct {
	*agent.Outcome
	Summary string     `json:"summary"`
	Error   *errorBody `json:"error,omitempty"`
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, errors.New(errors.CodeInvalidInput, "question is required", nil))
		return
	}

	var runOpts []agent.RunOption
	switch {
	case req.NoMemory || s.opts.Preferences == nil:
		runOpts = append(runOpts, agent.WithoutRetrieval())
	case req.K > 0:
		runOpts = append(runOpts, agent.UsingRetriever(&retrieval.Retriever{
			Store:        s.opts.Preferences,
			K:            req.K,
			SnippetChars: s.opts.SnippetChars,
			Logger:       s.opts.Logger,
		}))
	}
	if req.MaxTurns > 0 {
		runOpts = append(runOpts, agent.WithRunMaxTurns(req.MaxTurns))
	}

	out, err := s.opts.Agent.Run(r.Context(), req.Question, runOpts...)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := askResponse{Outcome: out, Summary: out.Summary()}
	status := http.StatusOK
	if !out.Done() && out.Err != nil {
		resp.Error = &errorBody{Code: string(out.Err.Code), Message: out.Err.Message}
		status = statusFor(out.Err)
	}
	writeJSON(w, status, resp)
}

type toolView struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  []core.Parameter `json:"parameters"`
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	list := make([]toolView, 0, s.opts.Registry.Len())
	for _, t := range s.opts.Registry.Tools() {
		list = append(list, toolView{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": list})
}

func (s *Server) preferences(w http.ResponseWriter) (Preferences, bool) {
	if s.opts.Preferences == nil {
		writeError(w, errors.New(errors.CodeUnavailable, "preference memory is disabled", nil))
		return nil, false
	}
	return s.opts.Preferences, true
}

func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	prefs, ok := s.preferences(w)
	if !ok {
		return
	}
	records, err := prefs.Records(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []memory.PreferenceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": records, "count": len(records)})
}

type addMemoryRequest struct {
	Text string `json:"text"`
}

func (s *Server) addMemory(w http.ResponseWriter, r *http.Request) {
	prefs, ok := s.preferences(w)
	if !ok {
		return
	}
	var req addMemoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := prefs.Add(r.Context(), req.Text)
	if err != nil {
		if stderrors.Is(err, memory.ErrEmptyText) {
			err = errors.New(errors.CodeInvalidInput, "text is required", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) searchMemories(w http.ResponseWriter, r *http.Request) {
	prefs, ok := s.preferences(w)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, errors.New(errors.CodeInvalidInput, "query parameter q is required", nil))
		return
	}
	k := s.opts.DefaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, errors.Newf(errors.CodeInvalidInput, "invalid k %q", raw))
			return
		}
		k = n
	}
	records, err := prefs.Nearest(r.Context(), q, k)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []memory.PreferenceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": records})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New(errors.CodeInvalidInput, "invalid JSON body", err)
	}
	return nil
}
