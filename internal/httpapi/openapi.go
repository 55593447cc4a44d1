package httpapi

import (
	"embed"
	"net/http"
)

// openapiYAML embeds the static API description emitted at GET
// /openapi.yaml. It is hand-written rather than reflected off the
// route table: the route count here is small enough that keeping one
// YAML file in sync by hand (and catching drift in review) costs less
// than wiring a generator, and nothing in the retrieved pack uses an
// OpenAPI-from-code generator against a stdlib mux.
//
//go:embed openapi.yaml
var openapiYAML embed.FS

// handleOpenAPI serves the static OpenAPI description named in §2's
// HTTP surface & wiring component.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	b, err := openapiYAML.ReadFile("openapi.yaml")
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
