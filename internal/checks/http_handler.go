package checks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rmorley/dqcheck/internal/auth"
	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/middleware"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository"
	"github.com/rmorley/dqcheck/internal/sample"
	"github.com/rmorley/dqcheck/internal/updater"
	"github.com/rmorley/dqcheck/internal/workflow"

	"github.com/google/uuid"
)

// Handler is the REST surface over the check service.
type Handler struct {
	service *Service
	samples *sample.Service
	tasks   *workflow.Registry
	users   repository.UserRepository
	log     *logger.Logger
}

// NewHandler wires the HTTP handler.
func NewHandler(
	service *Service,
	samples *sample.Service,
	tasks *workflow.Registry,
	users repository.UserRepository,
	log *logger.Logger,
) *Handler {
	return &Handler{
		service: service,
		samples: samples,
		tasks:   tasks,
		users:   users,
		log:     log.With("component", "http-checks"),
	}
}

// RegisterRoutes binds the handler's routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checks", h.create)
	mux.HandleFunc("GET /api/checks", h.list)
	mux.HandleFunc("GET /api/checks/count", h.count)
	mux.HandleFunc("GET /api/checks/{id}", h.get)
	mux.HandleFunc("PUT /api/checks/{id}", h.update(updater.OperationReplace))
	mux.HandleFunc("PATCH /api/checks/{id}", h.update(updater.OperationPatch))
	mux.HandleFunc("DELETE /api/checks/{id}", h.delete)
	mux.HandleFunc("PUT /api/checks/{id}/inspectionQuery", h.setInspectionQuery)
	mux.HandleFunc("PUT /api/checks/{id}/logicalGroups", h.addToLogicalGroups)
	mux.HandleFunc("DELETE /api/checks/{id}/logicalGroups/{groupFQN}", h.removeFromLogicalGroup)
	mux.HandleFunc("PUT /api/checks/{id}/failedRowsSample", h.putSample)
	mux.HandleFunc("GET /api/checks/{id}/failedRowsSample", h.getSample)
	mux.HandleFunc("DELETE /api/checks/{id}/failedRowsSample", h.deleteSample)
	mux.HandleFunc("GET /api/checks/name/{fqn}", h.getByName)
	mux.HandleFunc("POST /api/checks/name/{fqn}/results", h.recordResult)
	mux.HandleFunc("GET /api/checks/name/{fqn}/results", h.resultsRange)
	mux.HandleFunc("GET /api/checks/name/{fqn}/results/latest", h.latestResult)
	mux.HandleFunc("GET /api/checks/name/{fqn}/incidents", h.resolutionTimeline)
	mux.HandleFunc("POST /api/tasks/resolve", h.resolveTask)
	mux.HandleFunc("POST /api/tasks/close", h.closeTask)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	check, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, check)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if entityFQN := r.URL.Query().Get("entityFQN"); entityFQN != "" {
		checks, err := h.service.ListByEntityFQN(r.Context(), entityFQN)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"data": checks, "total": len(checks)})
		return
	}

	limit := queryInt(r, "limit", 25)
	offset := queryInt(r, "offset", 0)
	checks, total, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": checks, "total": total})
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		http.Error(w, "ids query parameter is required", http.StatusBadRequest)
		return
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			http.Error(w, "invalid id "+part, http.StatusBadRequest)
			return
		}
		ids = append(ids, id)
	}
	count, err := h.service.CountByIDs(r.Context(), ids)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid check id", http.StatusBadRequest)
		return
	}

	// Bare reads go through the per-request loader so concurrent lookups
	// batch into one query. Field resolution needs the full service path.
	if loader := middleware.CheckLoaderFromContext(r.Context()); loader != nil &&
		r.URL.Query().Get("fields") == "" && !queryBool(r, "includeDeleted") {
		check, err := loader.Load(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, check)
		return
	}

	check, err := h.service.Get(r.Context(), id, fieldsFromQuery(r), queryBool(r, "includeDeleted"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, check)
}

func (h *Handler) getByName(w http.ResponseWriter, r *http.Request) {
	check, err := h.service.GetByName(r.Context(), r.PathValue("fqn"), fieldsFromQuery(r), queryBool(r, "includeDeleted"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, check)
}

func (h *Handler) update(operation updater.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid check id", http.StatusBadRequest)
			return
		}
		var revision domain.Check
		if err := json.NewDecoder(r.Body).Decode(&revision); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		check, err := h.service.Update(r.Context(), id, revision, operation)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, check)
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid check id", http.StatusBadRequest)
		return
	}
	if err := h.service.Delete(r.Context(), id, queryBool(r, "hardDelete")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setInspectionQuery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid check id", http.StatusBadRequest)
		return
	}
	var body struct {
		InspectionQuery string `json:"inspectionQuery"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	check, err := h.service.SetInspectionQuery(r.Context(), id, body.InspectionQuery)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, check)
}

func (h *Handler) addToLogicalGroups(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid check id", http.StatusBadRequest)
		return
	}
	var body struct {
		GroupFQNs []string `json:"groupFQNs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.AddToLogicalGroups(r.Context(), id, body.GroupFQNs); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeFromLogicalGroup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid check id", http.StatusBadRequest)
		return
	}
	if err := h.service.RemoveFromLogicalGroup(r.Context(), id, r.PathValue("groupFQN")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putSample(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid check id", http.StatusBadRequest)
		return
	}
	var data domain.TableData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	validateColumns := r.URL.Query().Get("validateColumns") != "false"
	stored, err := h.samples.PutFailedRowsSample(r.Context(), id, data, validateColumns)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) getSample(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid check id", http.StatusBadRequest)
		return
	}
	data, err := h.samples.GetSampleData(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, data)
}

func (h *Handler) deleteSample(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid check id", http.StatusBadRequest)
		return
	}
	if err := h.samples.DeleteFailedRowsSample(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordResult(w http.ResponseWriter, r *http.Request) {
	var result domain.CheckResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	stored, err := h.service.RecordResult(r.Context(), r.PathValue("fqn"), result)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) resultsRange(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ResultsRange(r.Context(), r.PathValue("fqn"),
		queryInt64(r, "startTs", 0), queryInt64(r, "endTs", int64(1)<<62))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": results, "total": len(results)})
}

func (h *Handler) latestResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.LatestResult(r.Context(), r.PathValue("fqn"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if result == nil {
		http.Error(w, "no results recorded", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) resolutionTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.service.ResolutionTimeline(r.Context(), r.PathValue("fqn"),
		queryInt64(r, "startTs", 0), queryInt64(r, "endTs", int64(1)<<62))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": timeline, "total": len(timeline)})
}

func (h *Handler) resolveTask(w http.ResponseWriter, r *http.Request) {
	task, actor, ok := h.decodeTask(w, r)
	if !ok {
		return
	}
	handler, err := h.tasks.For(task.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	check, err := handler.Perform(r.Context(), task, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, check)
}

func (h *Handler) closeTask(w http.ResponseWriter, r *http.Request) {
	task, actor, ok := h.decodeTask(w, r)
	if !ok {
		return
	}
	handler, err := h.tasks.For(task.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := handler.Close(r.Context(), task, actor); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeTask(w http.ResponseWriter, r *http.Request) (workflow.Task, domain.User, bool) {
	var task workflow.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return workflow.Task{}, domain.User{}, false
	}
	if task.Type == "" {
		task.Type = workflow.TaskTypeFailureResolution
	}

	name := auth.ActorName(r.Context())
	actor, err := h.users.GetByName(r.Context(), name)
	if err != nil {
		if !domain.IsNotFound(err) {
			h.writeError(w, err)
			return workflow.Task{}, domain.User{}, false
		}
		actor = domain.User{Name: name}
	}
	return task, actor, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case domain.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	default:
		h.log.Error("request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func fieldsFromQuery(r *http.Request) domain.FieldSet {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return domain.EmptyFields()
	}
	return domain.NewFieldSet(strings.Split(raw, ",")...)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
	}
	return fallback
}

func queryInt64(r *http.Request, key string, fallback int64) int64 {
	if raw := r.URL.Query().Get(key); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return value
		}
	}
	return fallback
}

func queryBool(r *http.Request, key string) bool {
	return r.URL.Query().Get(key) == "true"
}
