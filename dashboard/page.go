package dashboard

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spektr-org/patrimonia/engine"
	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// PAGE: Server-rendered HTML dashboard
// ============================================================================
// A plain GET form drives every control, so the page works without
// JavaScript and every view is a shareable URL. Charts are <img> tags
// pointing at /api/charts/{name}.svg with the same query string.
// ============================================================================

type pageChart struct {
	Name   string
	Title  string
	Src    string
	Reason string // set when the chart has nothing to draw
}

type pageData struct {
	Report   *engine.Report
	Levels   []string
	Charts   []pageChart
	Metadata []engine.Detail
	CSVHref  string
	Source   string
	LoadedAt string
}

// Selected reports whether level is part of the effective level filter.
func (p pageData) Selected(level string) bool {
	for _, l := range p.Report.Filters.Levels {
		if l == level {
			return true
		}
	}
	return false
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ds, err := s.cache.Get(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logger.Error("dataset unavailable", zap.String("id", RequestID(r.Context())), zap.Error(err))
		s.renderPage(w, http.StatusServiceUnavailable, "error", err.Error())
		return
	}
	p, err := ParseParams(r.URL.Query(), ds.Table)
	if err != nil {
		s.renderPage(w, statusOf(err), "error", err.Error())
		return
	}
	report := engine.Evaluate(ds.Table, p, s.opts...)

	query := r.URL.Query().Encode()
	data := pageData{
		Report:   report,
		Levels:   schema.Levels,
		Metadata: ds.Metadata.Details(),
		CSVHref:  withQuery("/api/top.csv", query),
		Source:   ds.Source,
		LoadedAt: ds.LoadedAt.Format("2006-01-02 15:04 MST"),
	}
	for _, name := range engine.ChartNames {
		c := report.Charts[name]
		pc := pageChart{Name: name, Title: c.Title}
		if c.IsEmpty() {
			pc.Reason = c.Reason
		} else {
			pc.Src = withQuery("/api/charts/"+url.PathEscape(name)+".svg", query)
		}
		data.Charts = append(data.Charts, pc)
	}
	s.renderPage(w, http.StatusOK, "dashboard", data)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("page render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func withQuery(path, query string) string {
	if query == "" {
		return path
	}
	return path + "?" + query
}

var pageTemplates = template.Must(template.New("page").Parse(pageHTML))

const pageHTML = `
{{define "head"}}<!doctype html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>PatrimonIA - Sistema de Detección de Riesgos</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; display: flex; color: #1f2937; }
aside { width: 280px; padding: 1rem; background: #f3f4f6; min-height: 100vh; }
main { flex: 1; padding: 1rem 2rem; }
.cards { display: flex; gap: 1rem; flex-wrap: wrap; }
.card { border: 1px solid #e5e7eb; border-radius: 6px; padding: .75rem 1rem; min-width: 160px; }
.card .value { font-size: 1.6rem; font-weight: 600; }
.high { border-left: 4px solid #ef4444; } .medium { border-left: 4px solid #f59e0b; } .low { border-left: 4px solid #10b981; }
table { border-collapse: collapse; margin: .5rem 0 1.5rem; font-size: .9rem; }
th, td { border-bottom: 1px solid #e5e7eb; padding: .3rem .6rem; }
.num { text-align: right; } .center { text-align: center; }
.empty { color: #6b7280; font-style: italic; }
footer { margin-top: 2rem; font-size: .85rem; color: #4b5563; }
</style>
</head>
<body>{{end}}

{{define "table"}}{{if .IsEmpty}}<p class="empty">{{if .Reason}}Sin datos: {{.Reason}}{{else}}Sin datos{{end}}</p>{{else}}
<table>
<thead><tr>{{range .Columns}}<th>{{.Label}}</th>{{end}}</tr></thead>
<tbody>{{$cols := .Columns}}{{range .Rows}}<tr>{{range $i, $cell := .}}<td class="{{with index $cols $i}}{{if eq .Align "right"}}num{{else if eq .Align "center"}}center{{end}}{{end}}">{{$cell}}</td>{{end}}</tr>{{end}}</tbody>
</table>{{end}}{{end}}

{{define "error"}}{{template "head"}}
<main>
<h1>PatrimonIA</h1>
<p class="empty">No fue posible mostrar el tablero: {{.}}</p>
</main>
</body>
</html>{{end}}

{{define "dashboard"}}{{template "head"}}
<aside>
<form method="get" action="/">
<h3>Filtros</h3>
<fieldset>
<legend>Nivel de Riesgo</legend>
<input type="hidden" name="nivel" value="">
{{range .Levels}}<label><input type="checkbox" name="nivel" value="{{.}}"{{if $.Selected .}} checked{{end}}> {{.}}</label><br>{{end}}
</fieldset>
{{with .Report.Filters.Income}}<fieldset>
<legend>Rango de Ingresos (MXN)</legend>
<input type="number" name="ingreso_min" value="{{printf "%.0f" .Low}}"{{with $.Report.IncomeBounds}} min="{{printf "%.0f" .Low}}" max="{{printf "%.0f" .High}}"{{end}}>
<input type="number" name="ingreso_max" value="{{printf "%.0f" .High}}"{{with $.Report.IncomeBounds}} min="{{printf "%.0f" .Low}}" max="{{printf "%.0f" .High}}"{{end}}>
</fieldset>{{end}}
<fieldset>
<legend>Dependencia</legend>
<select name="institucion">{{range .Report.Institutions}}<option{{if eq . $.Report.Filters.Institution}} selected{{end}}>{{.}}</option>{{end}}</select>
</fieldset>
<fieldset>
<legend>Número de casos a mostrar</legend>
<input type="range" name="top" min="10" max="50" step="5" value="{{.Report.TopN}}"> {{.Report.TopN}}
</fieldset>
<fieldset>
<legend>Buscar por nombre</legend>
<input type="text" name="q" value="{{.Report.Query}}" placeholder="Ej: Juan Pérez">
</fieldset>
<button type="submit">Aplicar</button>
</form>
<p>{{.Report.Showing}}</p>
</aside>
<main>
<h1>PatrimonIA</h1>
<p>Sistema de Detección de Riesgos de Corrupción en Declaraciones Patrimoniales</p>

<h2>Resumen General</h2>
<div class="cards">{{range .Report.Summary.Cards}}
<div class="card {{.Tone}}"><div>{{.Title}}</div><div class="value">{{.Value}}</div><div>{{.Caption}}</div></div>{{end}}
</div>
<div class="cards">{{range .Report.Summary.Stats}}
<div class="card"><div>{{.Title}}</div><div class="value">{{.Value}}</div><div>{{.Caption}}</div></div>{{end}}
</div>

<h2>Análisis</h2>
{{range .Charts}}<section>
<h3>{{.Title}}</h3>
{{if .Src}}<img src="{{.Src}}" alt="{{.Title}}">{{else}}<p class="empty">Sin datos{{with .Reason}}: {{.}}{{end}}</p>{{end}}
</section>{{end}}

<h3>Glosario de Reglas</h3>
{{template "table" .Report.RuleGlossary}}

<h3>{{.Report.Ranking.Title}}</h3>
{{template "table" .Report.Ranking}}

<h2>{{.Report.TopRisk.Title}}</h2>
{{template "table" .Report.TopRisk}}
{{if not .Report.TopRisk.IsEmpty}}<p><a href="{{.CSVHref}}">Descargar CSV</a></p>{{end}}

{{if .Report.Searched}}<h2>Resultados de búsqueda: "{{.Report.Query}}"</h2>
{{if .Report.Matches}}<p>Encontrados {{len .Report.Matches}} resultados</p>
{{range .Report.Matches}}<details>
<summary>{{.Title}}</summary>
{{range .Sections}}<h4>{{.Title}}</h4><ul>{{range .Items}}<li><b>{{.Label}}:</b> {{.Value}}</li>{{end}}</ul>{{end}}
{{if .Rules}}<h4>Reglas Activadas</h4><ul>{{range .Rules}}<li>{{.Code}}{{with .Description}}: {{.}}{{end}}</li>{{end}}</ul>{{end}}
</details>{{end}}
{{else}}<p class="empty">No se encontraron resultados</p>{{end}}{{end}}

<footer>
<h4>Información del Análisis</h4>
<ul>{{range .Metadata}}<li><b>{{.Label}}:</b> {{.Value}}</li>{{end}}</ul>
<p>Fuente: {{.Source}} · cargado {{.LoadedAt}}</p>
</footer>
</main>
</body>
</html>{{end}}
`
