package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"portfolio/api/internal/content"
)

//go:embed templates/*.html
var templateFS embed.FS

var cvTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/cv.html")
	if err != nil {
		// Fallback to built-in template if file not found
		cvTemplate = template.Must(template.New("cv").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	cvTemplate = template.Must(template.New("cv").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds everything the CV template renders.
type TemplateData struct {
	Profile      content.Profile
	Research     []content.ResearchInterest
	Teaching     []content.TeachingInterest
	Publications []content.Publication
	Talks        []content.Talk
	Activities   []content.Activity
	Lab          content.Lab
	GeneratedAt  time.Time
}

// RenderCVHTML renders the CV template with the provided data.
func RenderCVHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := cvTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Profile.Name}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 1.5rem; }
    .meta { color: #666; font-size: 0.9em; }
  </style>
</head>
<body>
  <h1>{{.Profile.Name}}</h1>
  <div class="meta">{{.Profile.Title}} | {{.Profile.Institution}}</div>
  {{if .Publications}}
  <h2>Publications</h2>
  {{range .Publications}}<p>{{.Authors}}. {{.Title}}. <em>{{.Venue}}</em>, {{.Year}}.</p>{{end}}
  {{end}}
</body>
</html>`
