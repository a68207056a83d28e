// Package api exposes the job-management HTTP surface. Handlers translate
// between HTTP and the service layer; business logic stays out of here.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Trandung-02/mail-job-manager/internal/domain"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/httputil"
	"github.com/Trandung-02/mail-job-manager/internal/profile"
	"github.com/Trandung-02/mail-job-manager/internal/runstatus"
	"github.com/Trandung-02/mail-job-manager/internal/service/job"
)

// Handlers bundles the dependencies of the HTTP layer.
type Handlers struct {
	jobs     *job.Service
	profiles *profile.Store
	runs     *runstatus.Tracker
}

// NewHandlers creates the handler set.
func NewHandlers(jobs *job.Service, profiles *profile.Store, runs *runstatus.Tracker) *Handlers {
	return &Handlers{jobs: jobs, profiles: profiles, runs: runs}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// jobView is the API shape of a job: credentials go out redacted.
type jobView struct {
	domain.Job
	Credentials domain.Credentials `json:"credentials"`
}

func viewOf(j *domain.Job) jobView {
	return jobView{Job: *j, Credentials: j.Credentials.Redacted()}
}

// CreateJob handles POST /api/jobs.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var input job.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}

	created, err := h.jobs.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, job.ErrInvalidInput) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, viewOf(created))
}

// ListJobs handles GET /api/jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	f := job.ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	jobs, total, err := h.jobs.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, viewOf(&jobs[i]))
	}
	httputil.OK(w, map[string]any{
		"jobs":  views,
		"total": total,
	})
}

// GetJob handles GET /api/jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			httputil.NotFound(w, "job not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, viewOf(j))
}

// UpdateJob handles PUT /api/jobs/{id}.
func (h *Handlers) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var u job.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}

	err := h.jobs.Update(r.Context(), chi.URLParam(r, "id"), u)
	switch {
	case errors.Is(err, job.ErrNotFound):
		httputil.NotFound(w, "job not found")
	case errors.Is(err, job.ErrInvalidInput):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.NoContent(w)
	}
}

// DeleteJob handles DELETE /api/jobs/{id}.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	err := h.jobs.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, job.ErrNotFound):
		httputil.NotFound(w, "job not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.NoContent(w)
	}
}

// SendJob handles POST /api/jobs/{id}/send. The dispatch run happens
// synchronously; the response carries the full run summary.
func (h *Handlers) SendJob(w http.ResponseWriter, r *http.Request) {
	summary, err := h.jobs.TriggerSend(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, job.ErrNotFound):
		httputil.NotFound(w, "job not found")
	case errors.Is(err, job.ErrSendInProgress):
		httputil.Error(w, http.StatusConflict, "job is already sending")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, summary)
	}
}

// ListJobFailures handles GET /api/jobs/{id}/failures.
func (h *Handlers) ListJobFailures(w http.ResponseWriter, r *http.Request) {
	records, err := h.jobs.ListFailures(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, job.ErrNotFound):
		httputil.NotFound(w, "job not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		if records == nil {
			records = []domain.FailureRecord{}
		}
		httputil.OK(w, map[string]any{"failures": records})
	}
}

// GetRun handles GET /api/runs/{id}. A finished run comes from the store;
// for a run still in flight only the live progress snapshot exists.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	summary, err := h.jobs.GetRun(r.Context(), runID)
	if err == nil {
		httputil.OK(w, summary)
		return
	}
	if !errors.Is(err, job.ErrNotFound) {
		httputil.InternalError(w, err)
		return
	}

	if progress, ok, err := h.runs.Get(r.Context(), runID); err == nil && ok {
		httputil.OK(w, map[string]any{"run_id": runID, "progress": progress})
		return
	}
	httputil.NotFound(w, "run not found")
}

// ListProfiles handles GET /api/profiles.
func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.profiles.All()
	if profiles == nil {
		profiles = []*domain.Profile{}
	}
	httputil.OK(w, map[string]any{"profiles": profiles})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
