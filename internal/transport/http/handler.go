package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/registry"
	"recipe-ingest-service/internal/service"
)

// Ingestor is implemented by service.IngestService.
type Ingestor interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	GetRecipe(ctx context.Context, id uuid.UUID) (*entity.Recipe, error)
}

// Searcher is implemented by search.Service.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]entity.RecipeMatch, error)
}

type Handler struct {
	ingest Ingestor
	search Searcher
	logger *slog.Logger
}

func NewHandler(ingest Ingestor, search Searcher) *Handler {
	return &Handler{
		ingest: ingest,
		search: search,
		logger: slog.Default().With("component", "http"),
	}
}

type ingestDTO struct {
	URL      string `json:"url"`
	Kind     string `json:"kind,omitempty"`
	Priority *int   `json:"priority,omitempty"` // 0=low,1=normal,2=high (nil => 1)
}

type ingestAcceptedResp struct {
	JobID    string `json:"job_id"`
	SourceID string `json:"source_id"`
}

type recipeRefResp struct {
	RecipeID string `json:"recipe_id"`
}

type jobRefResp struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type searchResp struct {
	Query   string               `json:"query"`
	Results []entity.RecipeMatch `json:"results"`
}

// IngestRecipe godoc
// @Summary Ingest a recipe video
// @Description Registers the video and starts a pipeline job. With ?stream=true or Accept: text/event-stream the response is a Server-Sent Events stream of pipeline events.
// @Tags recipes
// @Accept json
// @Produce json
// @Param request body ingestDTO true "video reference"
// @Param stream query bool false "stream pipeline events"
// @Success 202 {object} ingestAcceptedResp
// @Success 200 {object} recipeRefResp "recipe already exists"
// @Failure 400 {object} apiError
// @Failure 409 {object} jobRefResp "ingestion already in progress"
// @Failure 422 {object} apiError
// @Failure 503 {object} apiError
// @Failure 500 {object} apiError
// @Router /recipes/ingest [post]
func (h *Handler) IngestRecipe(w http.ResponseWriter, r *http.Request) {
	var dto ingestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(dto.URL) == "" {
		writeErr(w, http.StatusBadRequest, "url is required")
		return
	}

	priority := service.PriorityNormal
	if dto.Priority != nil {
		priority = *dto.Priority
	}
	stream := wantsStream(r)

	res, err := h.ingest.Ingest(r.Context(), service.IngestRequest{
		URL:      dto.URL,
		Kind:     entity.SourceKind(dto.Kind),
		Priority: priority,
		Observe:  stream,
	})
	if err != nil {
		writeAppErr(w, err)
		return
	}

	switch res.Status {
	case registry.StatusAlreadyExists:
		writeJSON(w, http.StatusOK, recipeRefResp{RecipeID: res.RecipeID.String()})
	case registry.StatusInProgress:
		writeJSON(w, http.StatusConflict, jobRefResp{JobID: res.JobID.String(), Message: "ingestion already in progress"})
	default:
		if res.Stream != nil {
			h.streamEvents(w, r, res)
			return
		}
		writeJSON(w, http.StatusAccepted, ingestAcceptedResp{JobID: res.JobID.String(), SourceID: res.SourceID.String()})
	}
}

func wantsStream(r *http.Request) bool {
	if v, err := strconv.ParseBool(r.URL.Query().Get("stream")); err == nil && v {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// GetJob godoc
// @Summary Get job by id
// @Description Returns the job with its steps in execution order.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.ingest.GetJob(r.Context(), id)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// GetRecipe godoc
// @Summary Get recipe by id
// @Tags recipes
// @Produce json
// @Param id path string true "recipe id (uuid)"
// @Success 200 {object} entity.Recipe
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /recipes/{id} [get]
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := h.ingest.GetRecipe(r.Context(), id)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SearchRecipes godoc
// @Summary Hybrid recipe search
// @Description Ranks recipes by semantic similarity and weighted keyword match.
// @Tags recipes
// @Produce json
// @Param q query string true "search text"
// @Param limit query int false "max results (default 10, max 50)"
// @Success 200 {object} searchResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /recipes/search [get]
func (h *Handler) SearchRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	matches, err := h.search.Search(r.Context(), q, limit)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	if matches == nil {
		matches = []entity.RecipeMatch{}
	}
	writeJSON(w, http.StatusOK, searchResp{Query: q, Results: matches})
}
