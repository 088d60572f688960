package handlers

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/tphummel/devices/internal/models"
)

//go:embed openapi.yaml
var openapiSpec []byte

// apiInfo is the info block of the OpenAPI document.
type apiInfo struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

type docsData struct {
	Info   apiInfo
	States []models.State
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Info.Title}} {{.Info.Version}} Docs</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>
    .devices-intro { font-family: sans-serif; margin: 1rem 2rem; }
    .devices-intro code { background: #f0f0f0; padding: 0 .25rem; }
  </style>
</head>
<body>
  <section class="devices-intro">
    <h1>{{.Info.Title}} <small>v{{.Info.Version}}</small></h1>
    <p>{{.Info.Description}}</p>
    <p>Routes under <code>/api/v1/devices</code> need <code>Authorization: Bearer &lt;token&gt;</code>,
      either the static API token or an HS256 JWT. Use <em>Authorize</em> below to try them.</p>
    <p>Device states:{{range .States}} <code>{{.}}</code>{{end}}. Updates and deletes of
      <code>in-use</code> devices are restricted, and stale <code>version</code> values are rejected
      with <code>409 OPTIMISTIC_LOCK_FAILURE</code>.</p>
  </section>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
      deepLinking: true,
      persistAuthorization: true,
      docExpansion: "list",
    });
  </script>
</body>
</html>`))

var docsPage = mustRenderDocs(openapiSpec)

// renderDocs builds the docs page from the info block of spec.
func renderDocs(spec []byte) ([]byte, error) {
	var doc struct {
		Info apiInfo `yaml:"info"`
	}
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if doc.Info.Title == "" {
		return nil, fmt.Errorf("openapi document has no info.title")
	}

	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, docsData{Info: doc.Info, States: models.ValidStates()}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mustRenderDocs(spec []byte) []byte {
	page, err := renderDocs(spec)
	if err != nil {
		panic(err)
	}
	return page
}

// OpenAPISpec handles GET /openapi.yaml and serves the raw OpenAPI document.
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(openapiSpec)
}

// Docs handles GET /docs and serves the Swagger UI documentation page.
func Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(docsPage)
}
