package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"recipe-ingest-service/internal/apperr"
	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/pipeline"
	"recipe-ingest-service/internal/registry"
	"recipe-ingest-service/internal/repository/postgresql"
	"recipe-ingest-service/internal/service"
	httptransport "recipe-ingest-service/internal/transport/http"
)

// ---- fakes ----

type ingestStub struct {
	result  *service.IngestResult
	err     error
	lastReq service.IngestRequest

	jobs    map[uuid.UUID]*entity.Job
	recipes map[uuid.UUID]*entity.Recipe
}

func (s *ingestStub) Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *ingestStub) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	if j, ok := s.jobs[id]; ok {
		return j, nil
	}
	return nil, postgresql.ErrNotFound
}

func (s *ingestStub) GetRecipe(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	if r, ok := s.recipes[id]; ok {
		return r, nil
	}
	return nil, postgresql.ErrNotFound
}

type searchStub struct {
	matches   []entity.RecipeMatch
	err       error
	lastQuery string
	lastLimit int
}

func (s *searchStub) Search(ctx context.Context, query string, limit int) ([]entity.RecipeMatch, error) {
	s.lastQuery, s.lastLimit = query, limit
	return s.matches, s.err
}

// ---- helpers ----

func newTestRouter(ing *ingestStub, srch *searchStub) http.Handler {
	if srch == nil {
		srch = &searchStub{}
	}
	return httptransport.Routes(httptransport.NewHandler(ing, srch), nil)
}

func postIngest(router http.Handler, body string, header map[string]string, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/recipes/ingest"+query, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ---- tests ----

func TestHTTP_Ingest_202_AndPriorityPassed(t *testing.T) {
	jobID := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	sourceID := uuid.MustParse("44444444-4444-4444-4444-444444444444")
	ing := &ingestStub{result: &service.IngestResult{Status: registry.StatusCreated, JobID: jobID, SourceID: sourceID}}
	router := newTestRouter(ing, nil)

	rr := postIngest(router, `{"url":"https://youtu.be/dQw4w9WgXcQ","priority":2}`, nil, "")

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		JobID    string `json:"job_id"`
		SourceID string `json:"source_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v, body=%s", err, rr.Body.String())
	}
	if resp.JobID != jobID.String() || resp.SourceID != sourceID.String() {
		t.Fatalf("unexpected response %+v", resp)
	}
	if ing.lastReq.Priority != 2 {
		t.Fatalf("expected priority=2, got %d", ing.lastReq.Priority)
	}
	if ing.lastReq.Observe {
		t.Fatalf("plain request must not observe")
	}
}

func TestHTTP_Ingest_DefaultPriorityIsNormal(t *testing.T) {
	ing := &ingestStub{result: &service.IngestResult{Status: registry.StatusCreated, JobID: uuid.New(), SourceID: uuid.New()}}
	router := newTestRouter(ing, nil)

	rr := postIngest(router, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`, nil, "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if ing.lastReq.Priority != service.PriorityNormal {
		t.Fatalf("expected default priority=%d, got %d", service.PriorityNormal, ing.lastReq.Priority)
	}
}

func TestHTTP_Ingest_OutcomeStatuses(t *testing.T) {
	recipeID := uuid.New()
	jobID := uuid.New()

	tests := []struct {
		name     string
		result   *service.IngestResult
		err      error
		wantCode int
		wantBody string
	}{
		{"already exists", &service.IngestResult{Status: registry.StatusAlreadyExists, RecipeID: recipeID}, nil, http.StatusOK, recipeID.String()},
		{"in progress", &service.IngestResult{Status: registry.StatusInProgress, JobID: jobID}, nil, http.StatusConflict, jobID.String()},
		{"validation", nil, apperr.New(apperr.ValidationError, "unsupported reference"), http.StatusBadRequest, "unsupported reference"},
		{"upstream", nil, apperr.New(apperr.UpstreamUnavailable, "source abc not found upstream"), http.StatusUnprocessableEntity, "not found upstream"},
		{"busy", nil, service.ErrBusy, http.StatusServiceUnavailable, "capacity"},
		{"internal", nil, context.DeadlineExceeded, http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&ingestStub{result: tt.result, err: tt.err}, nil)
			rr := postIngest(router, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`, nil, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d, body=%s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Fatalf("expected body to contain %q, got %s", tt.wantBody, rr.Body.String())
			}
		})
	}
}

func TestHTTP_Ingest_400_OnBadBody(t *testing.T) {
	router := newTestRouter(&ingestStub{}, nil)

	for _, body := range []string{`{not json`, `{"url":"   "}`} {
		rr := postIngest(router, body, nil, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestHTTP_Ingest_StreamsEvents(t *testing.T) {
	jobID := uuid.New()
	recipeID := uuid.New()
	finishedRun := func() *pipeline.Stream {
		stream := pipeline.NewStream(0)
		stream.Emit(pipeline.Event{Type: pipeline.EventStepStarted, JobID: jobID, Step: entity.StepExtractContent})
		stream.Emit(pipeline.Event{Type: pipeline.EventPipelineCompleted, JobID: jobID, RecipeID: &recipeID})
		stream.Close()
		return stream
	}

	ing := &ingestStub{}
	router := newTestRouter(ing, nil)

	for name, tc := range map[string]struct {
		header map[string]string
		query  string
	}{
		"query":  {query: "?stream=true"},
		"accept": {header: map[string]string{"Accept": "text/event-stream"}},
	} {
		t.Run(name, func(t *testing.T) {
			ing.result = &service.IngestResult{Status: registry.StatusCreated, JobID: jobID, SourceID: uuid.New(), Stream: finishedRun()}
			rr := postIngest(router, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`, tc.header, tc.query)

			if !ing.lastReq.Observe {
				t.Fatalf("stream request must observe")
			}
			if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
				t.Fatalf("expected event stream, got %q", ct)
			}
			body := rr.Body.String()
			for _, want := range []string{"event: accepted", "event: step_started", "event: pipeline_completed", recipeID.String()} {
				if !strings.Contains(body, want) {
					t.Fatalf("expected %q in stream, got:\n%s", want, body)
				}
			}
			if strings.Index(body, "step_started") > strings.Index(body, "pipeline_completed") {
				t.Fatalf("events out of order:\n%s", body)
			}
		})
	}
}

func TestHTTP_GetJob(t *testing.T) {
	id := uuid.MustParse("55555555-5555-5555-5555-555555555555")
	job := &entity.Job{ID: id, Status: entity.StatusProcessing, Steps: []entity.Step{
		{Type: entity.StepExtractContent, Order: 0, Status: entity.StatusCompleted},
		{Type: entity.StepStructureContent, Order: 1, Status: entity.StatusProcessing},
	}}
	router := newTestRouter(&ingestStub{jobs: map[uuid.UUID]*entity.Job{id: job}}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/"+id.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var got entity.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Status != entity.StatusProcessing || len(got.Steps) != 2 || got.Steps[1].Type != entity.StepStructureContent {
		t.Fatalf("unexpected job %+v", got)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString(), nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHTTP_GetRecipe(t *testing.T) {
	id := uuid.New()
	rec := &entity.Recipe{ID: id, Name: "miso ramen", Tags: []string{"soup"}}
	router := newTestRouter(&ingestStub{recipes: map[uuid.UUID]*entity.Recipe{id: rec}}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/recipes/"+id.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "miso ramen") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestHTTP_Search(t *testing.T) {
	srch := &searchStub{matches: []entity.RecipeMatch{{Recipe: entity.Recipe{Name: "pad thai"}, Score: 0.9}}}
	router := newTestRouter(&ingestStub{}, srch)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/recipes/search?q=noodles&limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if srch.lastQuery != "noodles" || srch.lastLimit != 5 {
		t.Fatalf("unexpected search args q=%q limit=%d", srch.lastQuery, srch.lastLimit)
	}
	if !strings.Contains(rr.Body.String(), "pad thai") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestHTTP_Search_Errors(t *testing.T) {
	router := newTestRouter(&ingestStub{}, &searchStub{err: apperr.New(apperr.ValidationError, "query is empty")})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/recipes/search?q=", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/recipes/search?q=x&limit=-1", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", rr.Code)
	}
}

func TestHTTP_Search_EmptyResultIsArray(t *testing.T) {
	router := newTestRouter(&ingestStub{}, &searchStub{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/recipes/search?q=anything", nil))
	if !strings.Contains(rr.Body.String(), `"results":[]`) {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestHTTP_Health(t *testing.T) {
	router := newTestRouter(&ingestStub{}, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
}
