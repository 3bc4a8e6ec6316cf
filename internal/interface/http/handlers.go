package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/planboard/planboard-core/internal/application/query"
	"github.com/planboard/planboard-core/internal/domain/member"
	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/internal/domain/ranking"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every registered check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, status, nil)
}

// handleReady reports whether the directory has been loaded at least once.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Directory == nil || s.deps.Directory.Snapshot().Len() == 0 {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", "member directory has not been loaded")
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"}, nil)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// BOARD
// ══════════════════════════════════════════════════════════════════════════════

// handleBoard handles GET /api/board?mode=progress_desc&project=a,b
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Board == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "board is not configured")
		return
	}

	mode := s.deps.DefaultMode
	if raw := r.URL.Query().Get("mode"); raw != "" {
		parsed, err := ranking.ParseMode(raw)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_mode", err.Error())
			return
		}
		mode = parsed
	}

	view, err := s.deps.Board.Handle(r.Context(), query.GetBoardQuery{
		ProjectIDs: projectIDs(r),
		Mode:       mode,
		Session:    sessionKey(r),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view, &ResponseMeta{TotalCount: len(view.Entries)})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressResponse is the body of GET /api/progress.
type ProgressResponse struct {
	Token      uint64                      `json:"token"`
	Progress   map[string]project.Progress `json:"progress"`
	ComputedAt time.Time                   `json:"computed_at"`
	Failed     []string                    `json:"failed,omitempty"`

	// Source is "computed", "local" or "shared".
	Source string `json:"source"`
}

// handleProgress handles GET /api/progress.
//
// With ?project= it recomputes those projects on the caller's own session
// aggregator. Without it, it serves the aggregate the scheduler published in
// this process, or the one a worker published to the shared store when this
// process has not computed anything yet.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if ids := projectIDs(r); len(ids) > 0 {
		if s.deps.Computers == nil {
			writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "progress is not configured")
			return
		}
		agg, err := s.deps.Computers.For(sessionKey(r)).ComputeAll(r.Context(), ids)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		if agg.Superseded {
			s.writeDomainError(w, r, query.ErrBoardSuperseded)
			return
		}
		s.writeJSON(w, r, http.StatusOK, fromAggregate(agg, "computed"), nil)
		return
	}

	if s.deps.Progress == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "progress is not configured")
		return
	}

	current := s.deps.Progress.Current()
	if current.IsZero() && s.deps.Shared != nil {
		snap, err := s.deps.Shared.Load(r.Context())
		if err == nil {
			s.writeJSON(w, r, http.StatusOK, ProgressResponse{
				Token:      snap.Token,
				Progress:   snap.Progress,
				ComputedAt: snap.PublishedAt,
				Source:     "shared",
			}, nil)
			return
		}
		logger.FromContext(r.Context()).Debug("shared progress unavailable", logger.Err(err))
	}
	s.writeJSON(w, r, http.StatusOK, fromAggregate(current, "local"), nil)
}

func fromAggregate(agg query.Aggregate, source string) ProgressResponse {
	return ProgressResponse{
		Token:      agg.Token,
		Progress:   agg.Progress,
		ComputedAt: agg.ComputedAt,
		Failed:     agg.Failed,
		Source:     source,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// DirectoryResponse is the body of GET /api/directory.
type DirectoryResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Members     []member.Member `json:"members"`
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Directory == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "directory is not configured")
		return
	}
	snap := s.deps.Directory.Snapshot()
	s.writeJSON(w, r, http.StatusOK, DirectoryResponse{
		Fingerprint: snap.Fingerprint(),
		Members:     snap.Members(),
	}, &ResponseMeta{TotalCount: snap.Len()})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps error kinds to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrSuperseded):
		writeJSONError(w, r, http.StatusConflict, "superseded", "a newer request replaced this one")
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case shared.IsCanceled(err):
		// The client went away; nobody reads this response.
		logger.FromContext(r.Context()).Debug("request canceled by client", logger.Err(err))
		writeJSONError(w, r, statusClientClosedRequest, "canceled", "request canceled")
	case shared.IsRetryable(err):
		w.Header().Set("Retry-After", "5")
		writeJSONError(w, r, http.StatusServiceUnavailable, "unavailable", "task store is unavailable")
	default:
		logger.FromContext(r.Context()).Error("request failed", logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "request failed")
	}
}

// statusClientClosedRequest is the non-standard 499 used by nginx.
const statusClientClosedRequest = 499

// HeaderSession names the caller's board session. Requests of one session
// supersede each other; requests of different sessions never do.
const HeaderSession = "X-Board-Session"

// sessionKey reads the X-Board-Session header, falling back to ?session=.
func sessionKey(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HeaderSession)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("session"))
}

// projectIDs reads ?project=a&project=b and ?project=a,b.
func projectIDs(r *http.Request) []string {
	var ids []string
	for _, v := range r.URL.Query()["project"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
