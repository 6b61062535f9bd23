package public

import (
	"html/template"
	"io"
	"math"
	"strconv"

	"github.com/minndara/site-admin/internal/model"
)

const (
	emptyMessage       = "Pronto habrá servicios disponibles aquí."
	unavailableMessage = "No se pudieron cargar los servicios. Intenta más tarde."
)

var funcs = template.FuncMap{
	"number":   formatNumber,
	"positive": func(f *float64) bool { return f != nil && *f > 0 },
}

var listTemplate = template.Must(template.New("services").Funcs(funcs).Parse(
	`<ul id="lista-servicios" data-category="{{.Category}}">
{{- range .Records}}
  <li class="serv-card" data-id="{{.ID}}">
    <h3 class="serv-title">{{.DisplayTitle}}</h3>
    <p class="item-desc clamp-3" style="white-space: pre-line">{{.Description}}</p>
    <div class="serv-meta">
      {{- if positive .Price}}<span class="serv-price">${{number .Price}}</span>{{end -}}
      {{- if positive .Duration}}<span class="serv-duration">{{number .Duration}} días</span>{{end -}}
    </div>
    <button class="serv-toggle" type="button">Ver más</button>
  </li>
{{- else}}
  <li class="muted">{{.Empty}}</li>
{{- end}}
</ul>
`))

var pageTemplate = template.Must(template.New("page").Funcs(funcs).Parse(
	`<!doctype html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{- if .PrimaryColor}}
<style>:root { --primary-color: {{.PrimaryColor}}; }</style>
{{- end}}
</head>
<body data-pagecat="{{.Category}}">
{{- if .Subtitle}}
<p class="subtitle">{{.Subtitle}}</p>
{{- end}}
{{- if .ShowServices}}
<section data-section="services">
{{.List}}
</section>
{{- end}}
</body>
</html>
`))

type listData struct {
	Category string
	Records  []*model.ServiceRecord
	Empty    string
}

type pageData struct {
	Category     string
	Title        string
	Subtitle     string
	PrimaryColor string
	ShowServices bool
	List         template.HTML
}

// formatNumber prints whole numbers without decimals.
func formatNumber(f *float64) string {
	if f == nil {
		return ""
	}
	if *f == math.Trunc(*f) {
		return strconv.FormatFloat(*f, 'f', 0, 64)
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

// RenderServices writes the services list of a category as an HTML list.
// An empty list renders the coming soon notice.
func RenderServices(w io.Writer, category string, records []*model.ServiceRecord) error {
	return listTemplate.Execute(w, listData{Category: category, Records: records, Empty: emptyMessage})
}

// RenderUnavailable writes the list shown when the services could not be read.
func RenderUnavailable(w io.Writer, category string) error {
	_, err := io.WriteString(w, `<ul id="lista-servicios" data-category="`+template.HTMLEscapeString(category)+`">
  <li class="error">`+unavailableMessage+`</li>
</ul>
`)
	return err
}
