package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spektr-org/patrimonia/dataset"
	"github.com/spektr-org/patrimonia/engine"
)

// ============================================================================
// FIXTURES
// ============================================================================

var disclosuresCSV = []byte("id,nombre,primerApellido,institucion,cargo,total_ingresos,patrimonio_bruto,score_riesgo_total,riesgo_nivel,R1_otros_ingresos_moderados,anomaly_iforest\n" +
	"1,Juan,Pérez,SAT,Director,100000,0,0.91,Alto,1,-1\n" +
	"2,Ana,García,SAT,Analista,200000,150000,0.82,Alto,0,1\n" +
	"3,Luis,Soto,IMSS,Médico,300000,,0.55,Medio,0,1\n" +
	"4,María,López,IMSS,Enfermera,400000,90000,0.30,Bajo,0,1\n" +
	"5,José,Núñez,SEP,Maestro,500000,50000,0.20,Bajo,1,1\n" +
	"6,Rosa,Ortiz,SEP,Directora,600000,80000,0.10,Bajo,0,1\n")

func newTestCache(t *testing.T, csvData []byte) *dataset.Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resultados.csv")
	require.NoError(t, os.WriteFile(path, csvData, 0o644))
	loader := dataset.NewLoader(dataset.NewSource(path, nil, 0), "", zaptest.NewLogger(t))
	return dataset.NewCache(loader, 0)
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(newTestCache(t, disclosuresCSV), zaptest.NewLogger(t))
	return s, s.Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// wide keeps every fixture row inside the income filter.
const wide = "ingreso_min=0&ingreso_max=1000000"

// ============================================================================
// DASHBOARD
// ============================================================================

func TestDashboardReport(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/api/dashboard?"+wide+"&nivel=Alto&top=10")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total   int    `json:"total"`
		Shown   int    `json:"shown"`
		Showing string `json:"showing"`
		TopN    int    `json:"topN"`
		Metrics struct {
			High int `json:"alto"`
			Low  int `json:"bajo"`
		} `json:"metrics"`
		TopRisk struct {
			Rows [][]string `json:"rows"`
		} `json:"topRisk"`
		Metadata []engine.Detail `json:"metadata"`
	}
	decode(t, rec, &body)

	assert.Equal(t, 6, body.Total)
	assert.Equal(t, 2, body.Shown)
	assert.Equal(t, "Mostrando 2 de 6 declaraciones", body.Showing)
	assert.Equal(t, 10, body.TopN)
	assert.Equal(t, 2, body.Metrics.High)
	assert.Equal(t, 3, body.Metrics.Low, "metrics ignore the filters")
	require.Len(t, body.TopRisk.Rows, 2)
	assert.Equal(t, "1", body.TopRisk.Rows[0][0])
	assert.NotEmpty(t, body.Metadata)
}

func TestDashboardNoLevels(t *testing.T) {
	_, h := newTestServer(t)
	rec := get(t, h, "/api/dashboard?nivel=&"+wide)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Shown int `json:"shown"`
	}
	decode(t, rec, &body)
	assert.Zero(t, body.Shown)
}

func TestBadParamsAre400(t *testing.T) {
	_, h := newTestServer(t)
	for _, q := range []string{
		"nivel=Extremo",
		"ingreso_min=abc",
		"ingreso_min=500&ingreso_max=100",
		"top=muchos",
	} {
		t.Run(q, func(t *testing.T) {
			rec := get(t, h, "/api/dashboard?"+q)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestUnavailableDatasetIs503(t *testing.T) {
	loader := dataset.NewLoader(dataset.NewSource(filepath.Join(t.TempDir(), "none.csv"), nil, 0), "", nil)
	h := NewServer(dataset.NewCache(loader, 0), nil).Handler()

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/dashboard").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/").Code)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loaded":false`)
}

// ============================================================================
// CHARTS
// ============================================================================

func TestChartJSONAndSVG(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/api/charts/distribution?"+wide)
	require.Equal(t, http.StatusOK, rec.Code)
	var chart engine.ChartConfig
	decode(t, rec, &chart)
	assert.Equal(t, "pie", chart.ChartType)

	for _, name := range []string{engine.ChartDistribution, engine.ChartHistogram, engine.ChartBoxplot, engine.ChartRules} {
		t.Run(name, func(t *testing.T) {
			rec := get(t, h, "/api/charts/"+name+".svg?"+wide)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), "<svg")
		})
	}
}

func TestChartSVGSingleLevel(t *testing.T) {
	_, h := newTestServer(t)

	want := map[string]int{
		engine.ChartDistribution: http.StatusOK,
		engine.ChartHistogram:    http.StatusOK,
		engine.ChartBoxplot:      http.StatusOK,
		engine.ChartRules:        http.StatusOK,
		engine.ChartInstitutions: http.StatusNoContent,
	}
	for _, level := range []string{"Alto", "Medio", "Bajo"} {
		for _, name := range engine.ChartNames {
			t.Run(level+"/"+name, func(t *testing.T) {
				rec := get(t, h, "/api/charts/"+name+".svg?"+wide+"&nivel="+level)
				code := want[name]
				if name == engine.ChartRules && level != "Alto" {
					code = http.StatusNoContent
				}
				require.Equal(t, code, rec.Code, rec.Body.String())
			})
		}
	}
}

func TestChartWithoutDataIsNoContent(t *testing.T) {
	_, h := newTestServer(t)
	// No institution reaches five declarations.
	rec := get(t, h, "/api/charts/institutions.svg?"+wide)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUnknownChartIs404(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/charts/scatter").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/charts/scatter.svg").Code)
}

// ============================================================================
// TABLES + EXPORT
// ============================================================================

func TestTopCSVExport(t *testing.T) {
	_, h := newTestServer(t)
	rec := get(t, h, "/api/top.csv?"+wide+"&top=10")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, `attachment; filename="top_10_casos_riesgo.csv"`, rec.Header().Get("Content-Disposition"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "\ufeffid,"), "UTF-8 BOM then header")

	lines := strings.Split(strings.TrimSpace(body), "\n")
	assert.Len(t, lines, 7)
	assert.Contains(t, lines[1], "0.910")
}

func TestRankingAndRules(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/api/ranking?"+wide)
	require.Equal(t, http.StatusOK, rec.Code)
	var ranking struct {
		Table engine.TableData `json:"table"`
	}
	decode(t, rec, &ranking)
	require.Len(t, ranking.Table.Rows, 3)
	assert.Equal(t, "SAT", ranking.Table.Rows[0][0])

	rec = get(t, h, "/api/rules?"+wide)
	require.Equal(t, http.StatusOK, rec.Code)
	var rules struct {
		Rates []engine.RuleRate `json:"rates"`
	}
	decode(t, rec, &rules)
	require.Len(t, rules.Rates, 1)
	assert.InDelta(t, 50.0, rules.Rates[0].Rate, 1e-9)
}

// ============================================================================
// SEARCH, SCHEMA, METADATA
// ============================================================================

func TestSearchFoldsAccents(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/api/search?q=perez")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count   int            `json:"count"`
		Matches []engine.Match `json:"matches"`
	}
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)
	assert.Contains(t, body.Matches[0].Title, "Juan Pérez")

	for _, target := range []string{"/api/search", "/api/search?q=%20"} {
		rec = get(t, h, target)
		decode(t, rec, &body)
		assert.Zero(t, body.Count, target)
		assert.NotNil(t, body.Matches, target)
	}

	var report struct {
		Searched bool `json:"searched"`
	}
	decode(t, get(t, h, "/api/dashboard?q=%20"), &report)
	assert.False(t, report.Searched)
}

func TestSchemaAndInstitutions(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/api/schema")
	require.Equal(t, http.StatusOK, rec.Code)
	var inv struct {
		Columns  int    `json:"columns"`
		Score    string `json:"score"`
		HasLevel bool   `json:"hasLevel"`
	}
	decode(t, rec, &inv)
	assert.Equal(t, 11, inv.Columns)
	assert.Equal(t, "score_riesgo_total", inv.Score)
	assert.True(t, inv.HasLevel)

	rec = get(t, h, "/api/institutions")
	var inst struct {
		Institutions []string `json:"institutions"`
	}
	decode(t, rec, &inst)
	assert.Equal(t, []string{"Todas", "IMSS", "SAT", "SEP"}, inst.Institutions)
}

func TestMetricsAndMetadata(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	var m struct {
		Metrics engine.Metrics `json:"metrics"`
		Summary engine.Summary `json:"summary"`
	}
	decode(t, rec, &m)
	assert.Equal(t, 6, m.Metrics.Total)
	assert.Equal(t, 1, m.Metrics.Anomalies)
	assert.Len(t, m.Summary.Cards, 4)

	rec = get(t, h, "/api/metadata")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "N/A", "no metadata file renders N/A")
}

// ============================================================================
// REFRESH, HEALTH, MIDDLEWARE
// ============================================================================

func TestRefreshAndHealth(t *testing.T) {
	s, h := newTestServer(t)

	assert.Contains(t, get(t, h, "/healthz").Body.String(), `"loaded":false`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":6`)
	require.NotNil(t, s.cache.Current())

	body := get(t, h, "/healthz").Body.String()
	assert.Contains(t, body, `"loaded":true`)
	assert.Contains(t, body, `"rows":6`)

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, h, "/api/refresh").Code)
}

func TestRequestIDAndCORS(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/healthz")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

// ============================================================================
// PAGE
// ============================================================================

func TestPage(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/?"+wide+"&q=lopez&institucion=IMSS")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	page := rec.Body.String()
	assert.Contains(t, page, "Mostrando 2 de 6 declaraciones")
	assert.Contains(t, page, "/api/charts/distribution.svg?")
	assert.Contains(t, page, "María López")
	assert.Contains(t, page, `<option selected>IMSS</option>`)
	assert.Contains(t, page, "Descargar CSV")
}

func TestPageBadParam(t *testing.T) {
	_, h := newTestServer(t)
	rec := get(t, h, "/?top=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("No fue posible")))
}
