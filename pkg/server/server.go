// Package server exposes the workspace, the editor sessions, and the runtime
// lifecycle over HTTP, for use by UI collaborators such as a tree view or an
// editor pane.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/scratchpad/pkg/editor"
	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/metrics"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/sync"
	"github.com/sidkik/scratchpad/pkg/tree"
)

// Workspace is the file view served by the API.
type Workspace interface {
	Tree() []*tree.FileNode
	FilteredTree(text string) []*tree.FileNode
	RefreshTree(ctx context.Context)
	ActivePath() (string, bool)
	SetActivePath(path string)
	ClearActivePath()
	Content(ctx context.Context, path string) (string, error)
	Save(ctx context.Context, path, content string) error
	CreateFile(ctx context.Context, path string) error
	CreateDirectory(ctx context.Context, path string) error
	Delete(ctx context.Context, path string, isDir bool) error
	Rename(ctx context.Context, oldPath, newPath string) error
}

// Editor is the set of open editor sessions served by the API.
type Editor interface {
	Sessions() []editor.Session
	Activate(ctx context.Context, path string) error
	Edit(path, content string) error
	Close(ctx context.Context, path string) error
	SaveCurrent(ctx context.Context, path string) error
	SaveActive(ctx context.Context) error
}

// Lifecycle boots and resets the runtime.
type Lifecycle interface {
	Initialize(ctx context.Context) error
	Reset(ctx context.Context) error
	State() sync.State
}

type server struct {
	ws        Workspace
	editor    Editor
	lifecycle Lifecycle
}

// New returns the HTTP handler for the API.
func New(ws Workspace, ed Editor, lifecycle Lifecycle) http.Handler {
	s := server{ws: ws, editor: ed, lifecycle: lifecycle}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer, logRequests, instrument)

	router.Get("/metrics", metrics.Handler().ServeHTTP)
	router.Route("/api", func(router chi.Router) {
		router.Get("/tree", s.getTree)
		router.Post("/tree/refresh", s.refreshTree)
		router.Get("/active", s.getActive)
		router.Get("/files/*", s.getContent)
		router.Get("/sessions", s.getSessions)
		router.Post("/boot", s.boot)
		router.Post("/reset", s.reset)

		// Changes need a booted runtime.
		router.Group(func(router chi.Router) {
			router.Use(s.requireReady)
			router.Put("/active", s.setActive)
			router.Put("/files/*", s.save)
			router.Post("/files/*", s.createFile)
			router.Delete("/files/*", s.delete)
			router.Post("/dirs/*", s.createDirectory)
			router.Post("/rename", s.rename)
			router.Post("/sessions/*", s.activate)
			router.Patch("/sessions/*", s.edit)
			router.Delete("/sessions/*", s.closeSession)
			router.Post("/save/*", s.saveSession)
			router.Post("/save", s.saveActive)
		})
	})
	return router
}

func (s server) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if state := s.lifecycle.State(); state != sync.Ready {
			writeError(w, errors.WithContext(errors.ErrNotReady, state.String()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type badRequest struct {
	msg string
}

func (err badRequest) Error() string {
	return err.msg
}

func statusCode(err error) int {
	var initErr errors.InitializationError
	var timeoutErr errors.TimeoutError
	var reqErr badRequest
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrRuntimeUnavailable),
		errors.Is(err, errors.ErrNotReady),
		errors.Is(err, errors.ErrDisposed),
		errors.As(err, &initErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.IsNotExist(err):
		return http.StatusNotFound
	case errors.Is(err, os.ErrExist):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).Warn("Request failed")
	}
	writeJSON(w, code, errorResponse{err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}

func readJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest{"invalid request body: " + err.Error()}
	}
	return nil
}

func readBody(r *http.Request) (string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", badRequest{"read request body: " + err.Error()}
	}
	return string(body), nil
}

func pathParam(r *http.Request) string {
	return runtime.Clean(chi.URLParam(r, "*"))
}
