// Package server provides the HTTP API for browsing a bucket and
// visualising its tabular files.
//
// Endpoints:
//
//	POST   /sessions                  connect; returns a session ID
//	GET    /sessions/{id}             current session state
//	GET    /sessions/{id}/entries     list a prefix (?prefix=, ?up=true)
//	POST   /sessions/{id}/visualize   load up to max_files files and pick charts
//	DELETE /sessions/{id}             forget the session and its credentials
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/session"
	"github.com/tomasbasham/bucketview/internal/storage"
	"github.com/tomasbasham/bucketview/internal/visualize"
)

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	store   session.Store
	connect storage.Connector
	lister  *listing.Lister
	log     zerolog.Logger
	mux     *http.ServeMux

	// visualizeOptions are applied to every visualize request.
	visualizeOptions visualize.Options
}

// New creates a Server wired to the given store and connector.
func New(store session.Store, connect storage.Connector, lister *listing.Lister, opts visualize.Options, log zerolog.Logger) *Server {
	s := &Server{
		store:            store,
		connect:          connect,
		lister:           lister,
		log:              log,
		visualizeOptions: opts,
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /sessions", s.handleConnect)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("GET /sessions/{id}/entries", s.handleList)
	s.mux.HandleFunc("POST /sessions/{id}/visualize", s.handleVisualize)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)

	return s
}

// ServeHTTP lets the Server be mounted directly or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

// connectRequest is the JSON body for POST /sessions.
type connectRequest struct {
	URI       string `json:"uri"`
	Anonymous bool   `json:"anonymous"`

	// ServiceAccountJSON is the uploaded GCS key file, embedded verbatim.
	ServiceAccountJSON json.RawMessage `json:"service_account_json,omitempty"`

	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`
	Region          string `json:"region,omitempty"`
}

type visualizeRequest struct {
	// Files are base names within the session's current folder, in the
	// order they were selected.
	Files []string `json:"files"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}

	uri, err := storage.ParseURI(req.URI)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	key := []byte(req.ServiceAccountJSON)
	if string(key) == "null" {
		key = nil
	}
	input := storage.CredentialInput{
		Anonymous:          req.Anonymous,
		ServiceAccountJSON: key,
		AccessKeyID:        req.AccessKeyID,
		SecretAccessKey:    req.SecretAccessKey,
		SessionToken:       req.SessionToken,
		Region:             req.Region,
	}
	creds, err := input.Credentials(uri.Scheme)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	log := s.log.With().Str("uri", uri.String()).Str("credentials", storage.Variant(creds)).Logger()
	h, err := s.connect(r.Context(), uri, creds)
	if err != nil {
		log.Warn().Err(err).Msg("connect failed")
		writeStorageError(w, err)
		return
	}

	sess, err := s.store.Create(h, uri)
	if err != nil {
		_ = h.Close()
		writeError(w, http.StatusInternalServerError, "failed to create session: "+err.Error(), "")
		return
	}
	log.Info().Str("session", sess.ID).Msg("connected")

	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleList lists the requested prefix, or the current one when none is
// given, and makes it the session's current folder.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	target := sess.Current
	q := r.URL.Query()
	if q.Has("prefix") {
		target = target.WithPrefix(q.Get("prefix"))
	}
	if q.Get("up") == "true" {
		target = target.Parent()
	}

	l, err := s.lister.List(r.Context(), sess.Handle, target.Prefix)
	if err != nil {
		s.log.Warn().Err(err).Str("uri", target.String()).Msg("list failed")
		writeStorageError(w, err)
		return
	}
	if _, err := s.store.Navigate(sess.ID, target); err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "")
		return
	}

	s.log.Debug().
		Str("uri", target.String()).
		Int("subfolders", len(l.Subfolders)).
		Int("files", len(l.Files)).
		Msg("listed prefix")

	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req visualizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "files is required", "")
		return
	}

	l, err := s.lister.List(r.Context(), sess.Handle, sess.Current.Prefix)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	files := make([]listing.FileEntry, 0, len(req.Files))
	for _, name := range req.Files {
		f, ok := l.Lookup(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("file %q not found in %s", name, sess.Current), "")
			return
		}
		files = append(files, f)
	}

	result := visualize.Run(r.Context(), sess.Handle, files, s.visualizeOptions)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required", "")
		return nil, false
	}
	sess, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "")
		return nil, false
	}
	return sess, true
}

// statusFor maps an error kind to the HTTP status reported for it.
func statusFor(kind storage.Kind) int {
	switch kind {
	case storage.KindUnsupportedScheme, storage.KindInvalidCredentials:
		return http.StatusBadRequest
	case storage.KindNoAmbientCredentials:
		return http.StatusPreconditionFailed
	case storage.KindAccessDenied:
		return http.StatusForbidden
	case storage.KindUnreachable:
		return http.StatusBadGateway
	case storage.KindParseError:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeStorageError(w http.ResponseWriter, err error) {
	kind := storage.KindOf(err)
	var se *storage.Error
	if !errors.As(err, &se) {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeError(w, statusFor(kind), storage.Message(err), kind)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, kind storage.Kind) {
	body := map[string]string{"error": msg}
	if kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, status, body)
}
