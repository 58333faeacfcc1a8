package server

import (
	"net/http"

	"github.com/sidkik/scratchpad/pkg/editor"
	"github.com/sidkik/scratchpad/pkg/runtime"
)

func (s server) getTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.FilteredTree(r.URL.Query().Get("filter")))
}

func (s server) refreshTree(w http.ResponseWriter, r *http.Request) {
	s.ws.RefreshTree(r.Context())
	writeJSON(w, http.StatusOK, s.ws.Tree())
}

type activeRequest struct {
	Path *string `json:"path"`
}

func (s server) getActive(w http.ResponseWriter, _ *http.Request) {
	var resp activeRequest
	if path, ok := s.ws.ActivePath(); ok {
		resp.Path = &path
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s server) setActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.Path == nil {
		s.ws.ClearActivePath()
	} else {
		s.ws.SetActivePath(*req.Path)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s server) getContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.ws.Content(r.Context(), pathParam(r))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func (s server) save(w http.ResponseWriter, r *http.Request) {
	content, err := readBody(r)
	if err == nil {
		err = s.ws.Save(r.Context(), pathParam(r), content)
	}
	respond(w, http.StatusNoContent, err)
}

func (s server) createFile(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusCreated, s.ws.CreateFile(r.Context(), pathParam(r)))
}

func (s server) createDirectory(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusCreated, s.ws.CreateDirectory(r.Context(), pathParam(r)))
}

func (s server) delete(w http.ResponseWriter, r *http.Request) {
	isDir := r.URL.Query().Get("dir") == "true"
	respond(w, http.StatusNoContent, s.ws.Delete(r.Context(), pathParam(r), isDir))
}

type renameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s server) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.From == "" || req.To == "" {
		writeError(w, badRequest{"both from and to are required"})
		return
	}
	if runtime.Clean(req.From) == runtime.Root {
		writeError(w, badRequest{"the root directory can't be renamed"})
		return
	}
	respond(w, http.StatusNoContent, s.ws.Rename(r.Context(), req.From, req.To))
}

type stateResponse struct {
	State string `json:"state"`
}

func (s server) boot(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.Initialize(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{s.lifecycle.State().String()})
}

func (s server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.Reset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{s.lifecycle.State().String()})
}

type sessionResponse struct {
	editor.Session
	Modified bool `json:"modified"`
}

type sessionsResponse struct {
	Active   *string           `json:"active"`
	Sessions []sessionResponse `json:"sessions"`
}

func (s server) getSessions(w http.ResponseWriter, _ *http.Request) {
	resp := sessionsResponse{Sessions: []sessionResponse{}}
	if path, ok := s.ws.ActivePath(); ok {
		resp.Active = &path
	}
	for _, session := range s.editor.Sessions() {
		resp.Sessions = append(resp.Sessions, sessionResponse{session, session.Modified()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s server) activate(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusNoContent, s.editor.Activate(r.Context(), pathParam(r)))
}

func (s server) edit(w http.ResponseWriter, r *http.Request) {
	content, err := readBody(r)
	if err == nil {
		err = s.editor.Edit(pathParam(r), content)
	}
	respond(w, http.StatusNoContent, err)
}

func (s server) closeSession(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusNoContent, s.editor.Close(r.Context(), pathParam(r)))
}

func (s server) saveSession(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusNoContent, s.editor.SaveCurrent(r.Context(), pathParam(r)))
}

func (s server) saveActive(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusNoContent, s.editor.SaveActive(r.Context()))
}

func respond(w http.ResponseWriter, code int, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(code)
}
