package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hay-kot/criterio"

	"github.com/yangwenmai/sitebook/internal/engine"
	"github.com/yangwenmai/sitebook/internal/intent"
	"github.com/yangwenmai/sitebook/internal/model"
	"github.com/yangwenmai/sitebook/internal/store"
)

// ---------------------------------------------------------------------------
// POST /api/chat
// ---------------------------------------------------------------------------

type chatRequest struct {
	ProjectID string           `json:"projectId"`
	Message   string           `json:"message"`
	History   []engine.Message `json:"history"`
	Actor     string           `json:"actor"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	turn := &engine.Turn{
		ProjectID: strings.TrimSpace(req.ProjectID),
		Message:   req.Message,
		History:   req.History,
		Actor:     s.actor(req.Actor),
	}
	res, err := s.turns.Run(r.Context(), turn)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, engine.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "project not found")
	default:
		s.log.Error().Err(err).Str("project_id", turn.ProjectID).Msg("chat turn failed")
		writeError(w, http.StatusBadGateway, "the assistant is unavailable, please try again")
	}
}

// ---------------------------------------------------------------------------
// POST /api/actions/execute
// ---------------------------------------------------------------------------

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req intent.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	raw := req.Raw()
	raw.Actor = s.actor(raw.Actor)

	outcome := s.exec.Execute(r.Context(), raw)
	writeJSON(w, outcomeStatus(outcome, http.StatusOK), intent.Response(outcome))
}

// outcomeStatus maps an outcome to an HTTP status; ok is used on success.
func outcomeStatus(o intent.Outcome, ok int) int {
	if o.Success {
		return ok
	}
	switch o.Reason {
	case intent.ReasonInvalid:
		return http.StatusBadRequest
	case intent.ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// actor returns the named actor or the configured default.
func (s *Server) actor(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.defaultActor
}

// ---------------------------------------------------------------------------
// GET /api/lookup
// ---------------------------------------------------------------------------

const (
	defaultLookupLimit = 5
	maxLookupLimit     = 50
)

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := queryLimit(r, defaultLookupLimit, maxLookupLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var candidates []model.Candidate
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", string(model.RecordItem):
		candidates, err = s.store.SearchItems(r.Context(), q, limit)
	case string(model.RecordProject):
		candidates, err = s.store.SearchProjects(r.Context(), q, limit)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("kind must be %s or %s", model.RecordItem, model.RecordProject))
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("lookup failed")
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if candidates == nil {
		candidates = []model.Candidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

// ---------------------------------------------------------------------------
// GET /api/items
// ---------------------------------------------------------------------------

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryLimit(r, 0, 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := model.ItemFilter{
		ProjectID: q.Get("projectId"),
		Query:     strings.TrimSpace(q.Get("q")),
		Limit:     limit,
	}
	var errs criterio.FieldErrorsBuilder
	for _, v := range splitComma(q.Get("status")) {
		st := model.Status(v)
		if !st.IsValid() {
			errs = errs.Append("status", fmt.Errorf("unknown status %q", v))
			continue
		}
		filter.Status = append(filter.Status, st)
	}
	for _, v := range splitComma(q.Get("priority")) {
		p := model.Priority(v)
		if !p.IsValid() {
			errs = errs.Append("priority", fmt.Errorf("unknown priority %q", v))
			continue
		}
		filter.Priority = append(filter.Priority, p)
	}
	if err := errs.ToError(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("list items failed")
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.ActionItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// ---------------------------------------------------------------------------
// POST /api/items
// ---------------------------------------------------------------------------

type createItemRequest struct {
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
	Alias       string `json:"alias"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	AssignedTo  string `json:"assignedTo"`
	DueDate     string `json:"dueDate"`
	Actor       string `json:"actor"`
}

// handleCreateItem goes through the same command path as the assistant, so
// the item gets its creation note.
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fields := map[string]string{}
	set := func(name, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fields[name] = v
		}
	}
	set(intent.FieldProjectID, req.ProjectID)
	set(intent.FieldTitle, req.Title)
	set(intent.FieldAlias, req.Alias)
	set(intent.FieldDescription, req.Description)
	set(intent.FieldPriority, req.Priority)
	set(intent.FieldAssignedTo, req.AssignedTo)
	set(intent.FieldDueDate, req.DueDate)

	outcome := s.exec.Execute(r.Context(), intent.RawCommand{
		Kind:   intent.KindCreateItem,
		Fields: fields,
		Actor:  s.actor(req.Actor),
	})
	writeJSON(w, outcomeStatus(outcome, http.StatusCreated), intent.Response(outcome))
}

// ---------------------------------------------------------------------------
// GET /api/items/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	item, err := s.store.GetItem(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("item_id", id).Msg("get item failed")
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

type createProjectRequest struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	Address      string `json:"address"`
	ReferenceURL string `json:"referenceUrl"`
}

func (req createProjectRequest) validate() error {
	return criterio.ValidateStruct(
		criterio.Run("name", req.Name, notBlank),
		criterio.Run("referenceUrl", req.ReferenceURL, httpURL),
	)
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("is required")
	}
	return nil
}

func httpURL(s string) error {
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := model.NewProject(uuid.NewString(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Code))
	p.Address = strings.TrimSpace(req.Address)
	p.ReferenceURL = req.ReferenceURL

	if err := s.store.CreateProject(r.Context(), p); err != nil {
		if store.IsConstraintError(err) {
			writeError(w, http.StatusConflict, "project already exists")
			return
		}
		s.log.Error().Err(err).Msg("create project failed")
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list projects failed")
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get project failed")
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryLimit parses the limit query parameter. Missing means def; values
// above ceiling are clamped.
func queryLimit(r *http.Request, def, ceiling int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, ceiling), nil
}
