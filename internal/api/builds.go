package api

import (
	"encoding/json"
	stdErrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/build/queue"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

const maxRequestBytes = 1 << 20

// BuildRequest names a configured site or carries an ad-hoc site config.
type BuildRequest struct {
	Site   string       `json:"site,omitempty"`
	Config *site.Config `json:"config,omitempty"`
}

func newJobID() string { return uuid.NewString() }

// resolveSite turns a request into the site to build.
func (s *Server) resolveSite(req BuildRequest) (site.Config, error) {
	domain := strings.TrimSpace(req.Site)
	switch {
	case domain != "" && req.Config != nil:
		return site.Config{}, errors.ValidationError("request must name either site or config, not both").Build()
	case domain != "":
		entry, ok := s.opts.Sites(domain)
		if !ok {
			return site.Config{}, errors.NotFoundError("site is not configured").WithContext("site", domain).Build()
		}
		return pipeline.SiteFromEntry(entry), nil
	case req.Config != nil:
		cfg := *req.Config
		if strings.TrimSpace(cfg.Domain) == "" {
			return site.Config{}, errors.ValidationError("config.domain is required").Build()
		}
		if strings.TrimSpace(cfg.Template) == "" {
			return site.Config{}, errors.ValidationError("config.template is required").
				WithContext("site", cfg.Domain).Build()
		}
		return cfg, nil
	default:
		return site.Config{}, errors.ValidationError("request must name a site or carry a config").Build()
	}
}

func (s *Server) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, errors.WrapError(err, errors.CategoryValidation, "invalid request body").Build())
		return
	}

	cfg, err := s.resolveSite(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	job := &queue.BuildJob{ID: s.newJobID(), Type: queue.BuildTypeManual, Site: cfg}
	if err := s.opts.Queue.Enqueue(job); err != nil {
		if stdErrors.Is(err, queue.ErrQueueFull) || stdErrors.Is(err, queue.ErrQueueStopped) {
			err = errors.WrapError(err, errors.CategoryRuntime, err.Error()).Retryable().Build()
		}
		s.fail(w, r, err)
		return
	}
	s.logger.Info("Build requested", logfields.JobID(job.ID), logfields.Site(cfg.Domain))

	if snap, ok := s.opts.Queue.JobSnapshot(job.ID); ok {
		job = snap
	}
	w.Header().Set("Location", "/builds/"+job.ID)
	s.Success(w, http.StatusAccepted, job)
}

func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	status := queue.BuildStatus(r.URL.Query().Get("status"))
	domain := r.URL.Query().Get("site")
	jobs := s.opts.Queue.Jobs()
	out := make([]*queue.BuildJob, 0, len(jobs))
	for _, j := range jobs {
		if status != "" && j.Status != status {
			continue
		}
		if domain != "" && j.Site.Domain != domain {
			continue
		}
		out = append(out, j)
	}
	s.Success(w, http.StatusOK, out)
}

func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.opts.Queue.JobSnapshot(id)
	if !ok {
		s.fail(w, r, errors.NotFoundError("build not found").WithContext("job_id", id).Build())
		return
	}
	s.Success(w, http.StatusOK, job)
}

func (s *Server) handleCancelBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.opts.Queue.JobSnapshot(id)
	if !ok {
		s.fail(w, r, errors.NotFoundError("build not found").WithContext("job_id", id).Build())
		return
	}
	if !s.opts.Queue.Cancel(id) {
		s.Error(w, http.StatusConflict, "build already finished with status "+string(job.Status))
		return
	}
	s.logger.Info("Build cancel requested", logfields.JobID(id))
	s.Success(w, http.StatusAccepted, map[string]any{"id": id, "canceled": true})
}

func (s *Server) handleBuildEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		s.Error(w, http.StatusServiceUnavailable, "event store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	events, err := s.opts.Events.GetByBuildID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(events) == 0 {
		if _, known := s.opts.Queue.JobSnapshot(id); !known {
			s.fail(w, r, errors.NotFoundError("build not found").WithContext("job_id", id).Build())
			return
		}
	}
	views := make([]eventstore.EventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventstore.View(e))
	}
	s.Success(w, http.StatusOK, views)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		s.Error(w, http.StatusServiceUnavailable, "build history not configured")
		return
	}
	domain := r.URL.Query().Get("site")
	history := s.opts.History.GetHistory()
	out := make([]eventstore.BuildSummary, 0, len(history))
	for _, b := range history {
		if domain != "" && b.Site != domain {
			continue
		}
		out = append(out, b)
	}
	s.Success(w, http.StatusOK, out)
}
