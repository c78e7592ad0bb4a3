package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgalanis/conveyor/internal/domain"
	"github.com/mgalanis/conveyor/internal/modules/validation"
	"github.com/mgalanis/conveyor/internal/workflow"
)

func seedExecution(t *testing.T, h *serverHarness, id string, createdAt time.Time, symbols ...string) {
	t.Helper()
	if len(symbols) == 0 {
		symbols = []string{"AAPL"}
	}
	require.NoError(t, h.executions.CreateExecution(&workflow.Execution{
		ID:        id,
		Type:      workflow.TypeOnDemand,
		Symbols:   symbols,
		CreatedAt: createdAt,
	}))
}

func TestWorkflowHandlers_List(t *testing.T) {
	h := newServerHarness(t)
	now := time.Now().UTC()
	seedExecution(t, h, "wf-old", now.Add(-time.Hour))
	seedExecution(t, h, "wf-new", now)

	rec := h.do(t, http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Workflows []ExecutionResponse `json:"workflows"`
		Count     int                 `json:"count"`
	}
	decodeBody(t, rec, &body)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "wf-new", body.Workflows[0].ID)
	assert.Equal(t, "wf-old", body.Workflows[1].ID)
	assert.Equal(t, string(workflow.StatusPending), body.Workflows[0].Status)

	rec = h.do(t, http.MethodGet, "/api/workflows?limit=1", nil)
	decodeBody(t, rec, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "wf-new", body.Workflows[0].ID)
}

func TestWorkflowHandlers_Get(t *testing.T) {
	h := newServerHarness(t)
	seedExecution(t, h, "wf-1", time.Now().UTC(), "AAPL", "MSFT")

	stageID, err := h.executions.StartStage("wf-1", workflow.StageIngestion)
	require.NoError(t, err)
	require.NoError(t, h.executions.FinishStage(stageID, workflow.StatusCompleted, 2, 0, ""))
	require.NoError(t, h.executions.UpsertSymbolState(workflow.SymbolState{
		WorkflowID: "wf-1",
		Symbol:     "AAPL",
		Stage:      workflow.StageIngestion,
		Status:     workflow.StatusCompleted,
		Attempts:   1,
	}))
	score := 0.95
	require.NoError(t, h.gates.Insert("wf-1", "AAPL", workflow.StageIngestion, workflow.GateResult{
		Gate:         "post_ingestion",
		Passed:       true,
		Action:       "proceed",
		QualityScore: &score,
	}))

	rec := h.do(t, http.MethodGet, "/api/workflows/wf-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail WorkflowDetail
	decodeBody(t, rec, &detail)
	assert.Equal(t, "wf-1", detail.Execution.ID)
	assert.Equal(t, []string{"AAPL", "MSFT"}, detail.Execution.Symbols)

	require.Len(t, detail.Stages, 1)
	assert.Equal(t, string(workflow.StageIngestion), detail.Stages[0].Stage)
	assert.Equal(t, string(workflow.StatusCompleted), detail.Stages[0].Status)
	assert.Equal(t, 2, detail.Stages[0].SymbolsProcessed)

	require.Len(t, detail.SymbolStates, 1)
	assert.Equal(t, "AAPL", detail.SymbolStates[0].Symbol)
	assert.Equal(t, 1, detail.SymbolStates[0].Attempts)

	require.Len(t, detail.GateResults, 1)
	assert.Equal(t, "post_ingestion", detail.GateResults[0].Gate)
	assert.True(t, detail.GateResults[0].Passed)
	require.NotNil(t, detail.GateResults[0].QualityScore)
	assert.InDelta(t, 0.95, *detail.GateResults[0].QualityScore, 0.001)
}

func TestWorkflowHandlers_GetUnknown(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(t, http.MethodGet, "/api/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowHandlers_Progress(t *testing.T) {
	h := newServerHarness(t)
	h.runner.progress["wf-1"] = workflow.Progress{
		WorkflowID:   "wf-1",
		CurrentStage: workflow.StageIndicators,
		Stages: []workflow.StageProgress{
			{Stage: workflow.StageIngestion, Total: 3, Completed: 3},
			{Stage: workflow.StageIndicators, Total: 3, Completed: 1},
		},
	}

	rec := h.do(t, http.MethodGet, "/api/workflows/wf-1/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var progress workflow.Progress
	decodeBody(t, rec, &progress)
	assert.Equal(t, workflow.StageIndicators, progress.CurrentStage)
	require.Len(t, progress.Stages, 2)
	assert.Equal(t, 3, progress.Stages[0].Completed)

	rec = h.do(t, http.MethodGet, "/api/workflows/finished/progress", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowHandlers_Start(t *testing.T) {
	t.Run("starts an on demand run", func(t *testing.T) {
		h := newServerHarness(t)
		h.runner.startID = "wf-42"

		rec := h.do(t, http.MethodPost, "/api/workflows", StartWorkflowRequest{
			Symbols: []string{"AAPL", "MSFT"},
			Force:   true,
		})
		require.Equal(t, http.StatusAccepted, rec.Code)

		var body map[string]interface{}
		decodeBody(t, rec, &body)
		assert.Equal(t, "wf-42", body["workflow_id"])
		assert.Equal(t, string(workflow.StatusPending), body["status"])

		assert.Equal(t, workflow.TypeOnDemand, h.runner.startSpec.Type)
		assert.Equal(t, []string{"AAPL", "MSFT"}, h.runner.startSpec.Symbols)
		assert.True(t, h.runner.startSpec.Force)
	})

	t.Run("rejects empty symbol list", func(t *testing.T) {
		h := newServerHarness(t)

		rec := h.do(t, http.MethodPost, "/api/workflows", StartWorkflowRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, h.runner.started)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		h := newServerHarness(t)

		req := httptest.NewRequest(http.MethodPost, "/api/workflows", strings.NewReader("not json"))
		rec := httptest.NewRecorder()
		h.server.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWorkflowHandlers_Pause(t *testing.T) {
	t.Run("pauses a running workflow", func(t *testing.T) {
		h := newServerHarness(t)
		seedExecution(t, h, "wf-1", time.Now().UTC())
		require.NoError(t, h.executions.MarkExecutionStarted("wf-1"))

		rec := h.do(t, http.MethodPost, "/api/workflows/wf-1/pause", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"wf-1"}, h.runner.paused)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		h := newServerHarness(t)

		rec := h.do(t, http.MethodPost, "/api/workflows/missing/pause", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("conflict when not running", func(t *testing.T) {
		h := newServerHarness(t)
		seedExecution(t, h, "wf-1", time.Now().UTC())
		h.runner.pauseErr = fmt.Errorf("workflow wf-1 is pending, only running workflows can be paused")

		rec := h.do(t, http.MethodPost, "/api/workflows/wf-1/pause", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestWorkflowHandlers_Resume(t *testing.T) {
	t.Run("resumes in the background", func(t *testing.T) {
		h := newServerHarness(t)
		seedExecution(t, h, "wf-1", time.Now().UTC())
		require.NoError(t, h.executions.MarkExecutionFinished("wf-1", workflow.StatusFailed, "boom", 0, 1))

		rec := h.do(t, http.MethodPost, "/api/workflows/wf-1/resume", nil)
		require.Equal(t, http.StatusAccepted, rec.Code)

		select {
		case resumed := <-h.runner.resumed:
			assert.Equal(t, "wf-1", resumed)
		case <-time.After(2 * time.Second):
			t.Fatal("resume was never dispatched")
		}
	})

	t.Run("unknown workflow", func(t *testing.T) {
		h := newServerHarness(t)

		rec := h.do(t, http.MethodPost, "/api/workflows/missing/resume", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("completed workflow refuses to resume", func(t *testing.T) {
		h := newServerHarness(t)
		seedExecution(t, h, "wf-1", time.Now().UTC())
		require.NoError(t, h.executions.MarkExecutionFinished("wf-1", workflow.StatusCompleted, "", 1, 0))

		rec := h.do(t, http.MethodPost, "/api/workflows/wf-1/resume", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("running workflow refuses to resume", func(t *testing.T) {
		h := newServerHarness(t)
		seedExecution(t, h, "wf-1", time.Now().UTC())
		require.NoError(t, h.executions.MarkExecutionStarted("wf-1"))

		rec := h.do(t, http.MethodPost, "/api/workflows/wf-1/resume", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestWorkflowHandlers_DLQ(t *testing.T) {
	h := newServerHarness(t)
	require.NoError(t, h.dlq.Add("wf-1", "AAPL", workflow.StageIngestion, "provider down", nil))
	require.NoError(t, h.dlq.Add("wf-1", "MSFT", workflow.StageIndicators, "not enough bars", nil))

	items, err := h.dlq.Unresolved()
	require.NoError(t, err)
	require.Len(t, items, 2)
	var msftID int64
	for _, item := range items {
		if item.Symbol == "MSFT" {
			msftID = item.ID
		}
	}
	require.NoError(t, h.dlq.Resolve(msftID, "reprocessed by hand"))

	rec := h.do(t, http.MethodGet, "/api/dlq", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []DLQItemResponse `json:"items"`
		Count int               `json:"count"`
	}
	decodeBody(t, rec, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "AAPL", body.Items[0].Symbol)
	assert.Equal(t, string(workflow.StageIngestion), body.Items[0].Stage)
	assert.Equal(t, "provider down", body.Items[0].LastError)
}

func TestWorkflowHandlers_DLQResolve(t *testing.T) {
	h := newServerHarness(t)
	require.NoError(t, h.dlq.Add("wf-1", "AAPL", workflow.StageIngestion, "provider down", nil))
	items, err := h.dlq.Unresolved()
	require.NoError(t, err)
	require.Len(t, items, 1)
	id := items[0].ID

	rec := h.do(t, http.MethodPost, fmt.Sprintf("/api/dlq/%d/resolve", id), ResolveDLQRequest{Note: "fixed upstream"})
	require.Equal(t, http.StatusOK, rec.Code)

	item, err := h.dlq.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.True(t, item.Resolved)
	assert.Equal(t, "fixed upstream", item.ResolutionNote)

	// Resolving twice is a conflict.
	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/dlq/%d/resolve", id), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/dlq/9999/resolve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/dlq/abc/resolve", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDataHandlers_Reports(t *testing.T) {
	h := newServerHarness(t)
	now := time.Now().UTC()
	for i, dataType := range []string{validation.DataTypePriceHistorical, validation.DataTypePriceCurrent} {
		_, err := h.reports.Insert(&validation.Report{
			Symbol:        "AAPL",
			DataType:      dataType,
			Timestamp:     now.Add(time.Duration(i) * time.Minute),
			OverallStatus: validation.StatusPass,
			TotalRows:     100,
		})
		require.NoError(t, err)
	}
	_, err := h.reports.Insert(&validation.Report{
		Symbol:        "MSFT",
		DataType:      validation.DataTypePriceHistorical,
		Timestamp:     now,
		OverallStatus: validation.StatusPass,
	})
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/reports/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Symbol  string              `json:"symbol"`
		Reports []validation.Report `json:"reports"`
		Count   int                 `json:"count"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "AAPL", body.Symbol)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, validation.DataTypePriceCurrent, body.Reports[0].DataType)
	assert.Equal(t, validation.DataTypePriceHistorical, body.Reports[1].DataType)

	rec = h.do(t, http.MethodGet, "/api/reports/TSLA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &body)
	assert.Equal(t, 0, body.Count)
}

func TestDataHandlers_News(t *testing.T) {
	t.Run("returns provider articles", func(t *testing.T) {
		h := newServerHarness(t)
		h.news.articles = []domain.NewsArticle{
			{Symbol: "AAPL", Title: "Earnings beat expectations", Source: "newswire"},
			{Symbol: "AAPL", Title: "New product announced", Source: "newswire"},
		}

		rec := h.do(t, http.MethodGet, "/api/news/AAPL?limit=99", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Symbol   string               `json:"symbol"`
			Articles []domain.NewsArticle `json:"articles"`
			Count    int                  `json:"count"`
		}
		decodeBody(t, rec, &body)
		assert.Equal(t, "AAPL", body.Symbol)
		assert.Equal(t, 2, body.Count)
		assert.Equal(t, "Earnings beat expectations", body.Articles[0].Title)

		assert.Equal(t, "AAPL", h.news.symbol)
		assert.Equal(t, 50, h.news.limit)
	})

	t.Run("provider failure maps to bad gateway", func(t *testing.T) {
		h := newServerHarness(t)
		h.news.err = fmt.Errorf("all providers failed")

		rec := h.do(t, http.MethodGet, "/api/news/AAPL", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
