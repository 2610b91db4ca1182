package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedo724/medi/service"
	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/database"
	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
	"github.com/icedo724/medi/service/pipeline"
	"github.com/icedo724/medi/service/tabular"
	"github.com/icedo724/medi/testutil"
)

type envelope struct {
	Status interface{}     `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Total  int64           `json:"total"`
}

func testApp(t *testing.T, withDB bool) (*service.App, *chi.Mux) {
	t.Helper()
	cfg := &config.Config{
		DataDir:           t.TempDir(),
		PageSize:          10,
		AggregatorWorkers: 1,
		MatchProcessor:    "nfc",
		PacerMode:         "interval",
		PacerBurst:        1,
		RFMReferenceDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Sources:           config.DefaultSourceCatalog(),
	}
	app := &service.App{
		Config:  cfg,
		Metrics: monitoring.NewMetricsCollector(nil),
	}
	opts := []pipeline.Option{pipeline.WithMetrics(app.Metrics)}
	if withDB {
		tdb := testutil.NewTestDB()
		t.Cleanup(tdb.Close)
		app.DB = tdb.DB
		app.Repository = database.NewRepository(tdb.DB)
		opts = append(opts, pipeline.WithRunStore(app.Repository), pipeline.WithOutputStore(app.Repository))
	}
	app.Runner = pipeline.NewRunner(cfg, opts...)

	mux := chi.NewRouter()
	InitRoute(mux, app)
	return app, mux
}

func do(t *testing.T, mux http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	helper := testutil.NewHTTPTestHelper()
	req, err := helper.CreateJSONRequest(method, path, body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var env envelope
	helper.DecodeJSON(t, w, &env)
	return w, env
}

func writeData(t *testing.T, app *service.App, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(app.Config.DataDir, name), []byte(content), 0o644))
}

// TestHealth 健康与就绪检查
func TestHealth(t *testing.T) {
	_, mux := testApp(t, true)

	w, _ := do(t, mux, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w, _ = do(t, mux, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

// TestOutputs_WithoutDatabase 未启用数据库时输出接口返回503
func TestOutputs_WithoutDatabase(t *testing.T) {
	_, mux := testApp(t, false)

	for _, path := range []string{"/outputs/entities", "/outputs/matches", "/outputs/rfm", "/outputs/rfm/distribution", "/outputs/details/equip_info/A"} {
		w, env := do(t, mux, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.EqualValues(t, http.StatusServiceUnavailable, env.Status, path)
	}
}

// TestOutputs_RFM 分群过滤与分布
func TestOutputs_RFM(t *testing.T) {
	app, mux := testApp(t, true)
	require.NoError(t, app.Repository.ReplaceRFM(context.Background(), "run-1", []models.RFMRecord{
		{EntityID: "A", Monetary: decimal.NewFromInt(100), RScore: 5, FScore: 5, MScore: 5, TotalScore: 15, Segment: meta.SegmentVIP},
		{EntityID: "B", Monetary: decimal.NewFromInt(10), RScore: 1, FScore: 1, MScore: 1, TotalScore: 3, Segment: meta.SegmentRisk},
	}))

	w, env := do(t, mux, http.MethodGet, "/outputs/rfm?segment=VIP", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), env.Total)

	w, _ = do(t, mux, http.MethodGet, "/outputs/rfm?segment=Gold", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, mux, http.MethodGet, "/outputs/rfm/distribution", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dist map[string]int
	require.NoError(t, json.Unmarshal(env.Data, &dist))
	assert.Equal(t, map[string]int{"VIP": 1, "Loyal": 0, "Potential": 0, "Risk": 1}, dist)

	w, _ = do(t, mux, http.MethodGet, "/outputs/details/bad-name/A", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPipelineRuns 触发、查询运行记录
func TestPipelineRuns(t *testing.T) {
	app, mux := testApp(t, true)
	writeData(t, app, tabular.TransactionFile,
		"entity_id,transaction_date,order_id,amount\nA,20240501,O1,1000\nB,20240401,O2,2000\n")

	w, env := do(t, mux, http.MethodPost, "/pipeline/runs", pipeline.Request{Stages: []string{meta.StageSegment}})
	require.Equal(t, http.StatusAccepted, w.Code)
	var run models.PipelineRun
	require.NoError(t, json.Unmarshal(env.Data, &run))
	require.NotEmpty(t, run.ID)

	app.Runner.Wait()

	w, env = do(t, mux, http.MethodGet, "/pipeline/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored models.PipelineRun
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Equal(t, meta.RunStatusSuccess, stored.Status)
	assert.Equal(t, pipeline.TriggerManual, stored.Trigger)

	w, env = do(t, mux, http.MethodGet, "/pipeline/runs?status=success", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), env.Total)

	w, _ = do(t, mux, http.MethodGet, "/pipeline/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, mux, http.MethodPost, "/pipeline/runs", pipeline.Request{Stages: []string{"export"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, mux, http.MethodGet, "/outputs/rfm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), env.Total)
}

// TestAnalysisResolve 使用数据目录中的登记表匹配名称
func TestAnalysisResolve(t *testing.T) {
	app, mux := testApp(t, false)

	w, _ := do(t, mux, http.MethodPost, "/analysis/resolve", map[string]interface{}{"names": []string{"서울병원"}})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	writeData(t, app, tabular.RegistryFile, "entity_id,display_name\nA,서울병원\nB,부산병원\n")

	w, env := do(t, mux, http.MethodPost, "/analysis/resolve", map[string]interface{}{
		"names":     []string{"서울병원", "Unrelated Corp"},
		"min_score": 60,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Results []models.MatchResult `json:"results"`
		Summary struct {
			Total   int `json:"total"`
			Matched int `json:"matched"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 2, data.Summary.Total)
	assert.Equal(t, 1, data.Summary.Matched)
	require.NotNil(t, data.Results[0].MatchedEntityID)
	assert.Equal(t, "A", *data.Results[0].MatchedEntityID)
	assert.Nil(t, data.Results[1].MatchedEntityID)

	w, _ = do(t, mux, http.MethodPost, "/analysis/resolve", map[string]interface{}{"names": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, mux, http.MethodPost, "/analysis/resolve", map[string]interface{}{"names": []string{"x"}, "processor": "soundex"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestAnalysisSegment 即时分群
func TestAnalysisSegment(t *testing.T) {
	_, mux := testApp(t, false)

	w, env := do(t, mux, http.MethodPost, "/analysis/segment", map[string]interface{}{
		"reference_date": "2024-06-01",
		"transactions": []map[string]string{
			{"entity_id": "A", "transaction_date": "2024-05-01", "order_id": "O1", "amount": "150000"},
			{"entity_id": "A", "transaction_date": "2024-05-20", "order_id": "O2", "amount": "100000"},
			{"entity_id": "B", "transaction_date": "2024-03-01", "order_id": "O3", "amount": "50000"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Records      []models.RFMRecord `json:"records"`
		Distribution map[string]int     `json:"distribution"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Records, 2)
	assert.Equal(t, "A", data.Records[0].EntityID)
	assert.Equal(t, 12, data.Records[0].RecencyDays)
	assert.Equal(t, 2, data.Records[0].Frequency)
	assert.True(t, decimal.NewFromInt(250000).Equal(data.Records[0].Monetary))
	assert.Len(t, data.Distribution, 4)

	w, _ = do(t, mux, http.MethodPost, "/analysis/segment", map[string]interface{}{
		"transactions": []map[string]string{{"entity_id": "A", "transaction_date": "yesterday", "order_id": "O1", "amount": "1"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestCleanse 文件名只能位于数据目录
func TestCleanse(t *testing.T) {
	app, mux := testApp(t, false)

	w, _ := do(t, mux, http.MethodPost, "/cleanse", map[string]string{"input": "../etc/passwd", "output": "out.csv"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, mux, http.MethodPost, "/cleanse", map[string]string{"input": "missing.csv", "output": "out.csv"})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	writeData(t, app, "inventory.csv", "품목명*,attributes\n거즈,\"[{\"\"name\"\":\"\"Color\"\",\"\"value\"\":\"\"White\"\"}]\"\n")
	w, env := do(t, mux, http.MethodPost, "/cleanse", map[string]string{"input": "inventory.csv", "output": "clean.csv"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	out, err := os.ReadFile(filepath.Join(app.Config.DataDir, "clean.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "품목명,Color")
	assert.Contains(t, string(out), "거즈,White")
}
