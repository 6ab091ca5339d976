package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// securedRoutes read a principal from the bearer token.
var securedRoutes = []string{"me", "forms/{kind}"}

// registerDocs serves the Swagger UI at /docs and the finished OpenAPI
// document under the base path.
func registerDocs(r chi.Router, api huma.API, basePath string) {
	specURL := path.Join("/", basePath, "openapi.json")
	page := fmt.Sprintf(docsPage, specURL)
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})

	var (
		once sync.Once
		doc  []byte
	)
	r.Get(specURL, func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			finalizeOpenAPI(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})
}

// finalizeOpenAPI adds the error envelope as every operation's default
// response and documents bearer auth where it applies.
func finalizeOpenAPI(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	secured := make(map[string]bool, len(securedRoutes))
	for _, route := range securedRoutes {
		secured[path.Join("/", basePath, route)] = true
	}
	errorResponse := &huma.Response{
		Description: "Error envelope",
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
		},
	}
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = errorResponse
			if secured[route] {
				op.Security = []map[string][]string{{"bearerAuth": {}}}
			} else {
				op.Security = []map[string][]string{}
			}
		}
	}
}

func operations(item *huma.PathItem) []*huma.Operation {
	if item == nil {
		return nil
	}
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Draughtsman API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
  <script>
    window.onload = function () {
      SwaggerUIBundle({ url: %q, dom_id: "#swagger-ui" });
    };
  </script>
  <p>Sign in through /auth/login and send Authorization: Bearer &lt;token&gt;.</p>
</body>
</html>`
