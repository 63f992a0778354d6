package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/gitshelf/internal/engine"
	"github.com/mattjoyce/gitshelf/internal/journal"
	"github.com/mattjoyce/gitshelf/internal/query"
)

// handleRoot handles GET /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "gitshelf: GET /workspaces/{name}?version=<revision>&path=<path>")
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "Healthy!")
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:               "ok",
		UptimeSeconds:        int64(time.Since(s.startedAt).Seconds()),
		ActiveQueries:        s.active.Load(),
		MaxConcurrentQueries: s.config.MaxConcurrentQueries,
		JournalEnabled:       s.journal != nil,
	})
}

// handleListWorkspaces handles GET /workspaces. Listing is not offered.
func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotImplemented, "listing workspaces is not supported")
}

// handleQueryWorkspace handles GET /workspaces/{name}?version=&path=&raw=.
func (s *Server) handleQueryWorkspace(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	req := engine.Request{
		Workspace: chi.URLParam(r, "name"),
		Revision:  params.Get("version"),
		Path:      params.Get("path"),
	}
	raw, err := parseBoolParam(params.Get("raw"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "raw must be a boolean")
		return
	}

	start := time.Now()
	res, err := s.engine.Query(r.Context(), req)
	s.record(r, req, res, err, time.Since(start))
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	if res.IsDirectory() {
		respondJSON(w, http.StatusOK, DirectoryResponse{
			ResultHeader: header(res),
			Entries:      res.Entries,
		})
		return
	}

	digest := contentDigest(res.Contents)
	if raw {
		s.writeRaw(w, r, res, digest)
		return
	}

	resp := FileResponse{
		ResultHeader: header(res),
		Size:         len(res.Contents),
		Contents:     res.Contents,
		BLAKE3:       digest,
	}
	if utf8.Valid(res.Contents) {
		text := string(res.Contents)
		resp.Text = &text
	}
	respondJSON(w, http.StatusOK, resp)
}

// writeRaw serves file bytes with a BLAKE3 ETag and honours If-None-Match.
func (s *Server) writeRaw(w http.ResponseWriter, r *http.Request, res *query.Result, digest string) {
	etag := `"` + digest + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Gitshelf-Commit", res.Commit)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(res.Contents))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Contents)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Contents)
}

// handleDiffWorkspace handles GET /workspaces/{name}/diff?from=&to=&path=.
func (s *Server) handleDiffWorkspace(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	req := engine.DiffRequest{
		Workspace: chi.URLParam(r, "name"),
		From:      params.Get("from"),
		To:        params.Get("to"),
		Path:      params.Get("path"),
		MaxLines:  s.config.MaxDiffLines,
	}
	if strings.TrimSpace(req.From) == "" {
		s.writeError(w, http.StatusBadRequest, "from is required")
		return
	}
	if strings.Trim(req.Path, `/\ `) == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	res, err := s.engine.Diff(r.Context(), req)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleListQueries handles GET /queries?limit=.
func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "query journal is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list queries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list queries")
		return
	}
	respondJSON(w, http.StatusOK, QueriesResponse{Queries: entries})
}

// record appends the outcome to the journal. It outlives the request
// context so a disconnecting client still leaves a trace.
func (s *Server) record(r *http.Request, req engine.Request, res *query.Result, qerr error, elapsed time.Duration) {
	if s.journal == nil {
		return
	}

	entry := journal.Entry{
		Workspace:  req.Workspace,
		Revision:   req.Revision,
		Path:       req.Path,
		DurationMS: elapsed.Milliseconds(),
	}
	var qe *query.Error
	switch {
	case res != nil:
		entry.Workspace, entry.Revision, entry.Path = res.Workspace, res.Revision, res.Path
		entry.Outcome = string(res.Kind)
		entry.Commit = res.Commit
	case errors.As(qerr, &qe):
		entry.Workspace, entry.Revision, entry.Path = qe.Workspace, qe.Revision, qe.Path
		entry.Outcome = string(qe.Kind)
	default:
		entry.Outcome = string(query.KindOf(qerr))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if _, err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record query",
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
}

// writeQueryError maps a query failure to its HTTP status. Only the public
// message of internal failures reaches the client.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		s.writeError(w, http.StatusGatewayTimeout, "query timed out")
		return
	}

	var qe *query.Error
	if !errors.As(err, &qe) {
		s.logger.Error("query failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, StatusFor(qe.Kind), ErrorResponse{
		Error:     qe.Message(),
		Kind:      string(qe.Kind),
		Workspace: qe.Workspace,
		Revision:  qe.Revision,
		Path:      qe.Path,
	})
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind query.ErrorKind) int {
	switch kind {
	case query.KindBadRequest:
		return http.StatusBadRequest
	case query.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case query.KindWorkspaceNotFound, query.KindRevisionNotFound, query.KindPathNotFound:
		return http.StatusNotFound
	case query.KindEmptyWorkspace:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func header(res *query.Result) ResultHeader {
	return ResultHeader{
		Kind:      string(res.Kind),
		Workspace: res.Workspace,
		Revision:  res.Revision,
		Commit:    res.Commit,
		Path:      res.Path,
	}
}

func contentDigest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func etagMatches(ifNoneMatch, etag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func parseBoolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
