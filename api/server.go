// Package api exposes the prepflow pipelines over HTTP. Handlers parse
// the request envelope, delegate to the core packages and map the error
// taxonomy to status codes; no domain logic lives here.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/YuminosukeSato/prepflow/cleaning"
	"github.com/YuminosukeSato/prepflow/dataset"
	"github.com/YuminosukeSato/prepflow/pipeline"
	"github.com/YuminosukeSato/prepflow/store"
)

// Server wires the dataset registry and artifact stores to the HTTP
// routes. All state is process-local.
type Server struct {
	registry *dataset.Registry
	cleaners *store.Store[*cleaning.Artifact]
	models   *store.Store[*pipeline.ModelArtifact]
}

// NewServer creates a server around explicit, injected stores.
func NewServer(registry *dataset.Registry, cleaners *store.Store[*cleaning.Artifact], models *store.Store[*pipeline.ModelArtifact]) *Server {
	return &Server{registry: registry, cleaners: cleaners, models: models}
}

// Routes builds the chi router for all pipeline operations.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", s.handleHealth)

	r.Route("/datasets", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/quality", s.handleQuality)
	})
	r.Route("/cleaning", func(r chi.Router) {
		r.Post("/fit", s.handleCleaningFit)
		r.Post("/transform", s.handleCleaningTransform)
	})
	r.Route("/models", func(r chi.Router) {
		r.Post("/train", s.handleTrain)
		r.Post("/predict", s.handlePredict)
		r.Post("/tune", s.handleTune)
	})
	r.Route("/explain", func(r chi.Router) {
		r.Post("/importance", s.handleImportance)
		r.Post("/permutation", s.handlePermutation)
		r.Post("/instance", s.handleInstance)
	})
	r.Route("/eda", func(r chi.Router) {
		r.Post("/summary", s.handleSummary)
		r.Post("/groupby", s.handleGroupBy)
		r.Post("/correlation", s.handleCorrelation)
	})
	r.Route("/multivariate", func(r chi.Router) {
		r.Post("/pca", s.handlePCA)
		r.Post("/kmeans", s.handleKMeans)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}
