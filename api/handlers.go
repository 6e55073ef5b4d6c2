package api

import (
	"net/http"

	"github.com/spf13/cast"

	"github.com/YuminosukeSato/prepflow/cleaning"
	"github.com/YuminosukeSato/prepflow/eda"
	"github.com/YuminosukeSato/prepflow/explain"
	"github.com/YuminosukeSato/prepflow/multivar"
	"github.com/YuminosukeSato/prepflow/pipeline"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/quality"
	"github.com/YuminosukeSato/prepflow/table"
	"github.com/YuminosukeSato/prepflow/tuning"
)

// datasetFrom resolves meta.dataset_id against the registry.
func (s *Server) datasetFrom(req *Request) (*table.Table, string, error) {
	id := cast.ToString(req.Meta["dataset_id"])
	if id == "" {
		return nil, "", errors.NewValidationError("dataset_id", "meta.dataset_id is required", req.Meta["dataset_id"])
	}
	t, err := s.registry.Get(id)
	return t, id, err
}

// modelFrom resolves params.model_id against the model store.
func (s *Server) modelFrom(req *Request) (*pipeline.ModelArtifact, error) {
	id := cast.ToString(req.Params["model_id"])
	if id == "" {
		return nil, errors.NewValidationError("model_id", "params.model_id is required", req.Params["model_id"])
	}
	return s.models.Get(id)
}

// dataFrom converts inline request rows into a table.
func dataFrom(req *Request) (*table.Table, error) {
	if len(req.Data) == 0 {
		return nil, errors.NewValidationError("data", "at least one row is required", len(req.Data))
	}
	return table.FromRecords(req.Data)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	phase := cast.ToString(req.Params["phase"])
	seed := cast.ToInt64(req.Params["seed"])
	n := cast.ToInt(req.Params["n"])
	id, t, err := s.registry.Generate(phase, seed, n)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta: map[string]interface{}{"dataset_id": id},
		Result: map[string]interface{}{
			"n_rows":  t.NumRows(),
			"n_cols":  t.NumCols(),
			"columns": t.Names(),
		},
	})
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id},
		Report: quality.Generate(t),
	})
}

func (s *Server) handleCleaningFit(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	params := cleaning.Params{
		ImputeStrategy:      cleaning.ImputeStrategy(cast.ToString(req.Params["impute_strategy"])),
		OutlierStrategy:     cleaning.OutlierStrategy(cast.ToString(req.Params["outlier_strategy"])),
		CategoricalStrategy: cleaning.CategoricalStrategy(cast.ToString(req.Params["categorical_strategy"])),
	}
	artifact, err := cleaning.Fit(t, params)
	if err != nil {
		renderError(w, r, err)
		return
	}
	s.cleaners.Put(artifact.ID, artifact)
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id, "cleaner_id": artifact.ID},
		Result: artifact,
		Report: artifact.ReportBefore,
	})
}

func (s *Server) handleCleaningTransform(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	cleanerID := cast.ToString(req.Params["cleaner_id"])
	artifact, err := s.cleaners.Get(cleanerID)
	if err != nil {
		renderError(w, r, err)
		return
	}
	cleaned, report, err := cleaning.Transform(t, artifact)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta: map[string]interface{}{"dataset_id": id, "cleaner_id": artifact.ID},
		Result: map[string]interface{}{
			"n_rows":  cleaned.NumRows(),
			"n_cols":  cleaned.NumCols(),
			"columns": cleaned.Names(),
		},
		Report: report,
	})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	modelType := pipeline.ModelType(cast.ToString(req.Params["model_type"]))
	testSize := cast.ToFloat64(req.Params["test_size"])
	artifact, err := pipeline.Train(t, modelType, testSize)
	if err != nil {
		renderError(w, r, err)
		return
	}
	s.models.Put(artifact.ID, artifact)
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id, "model_id": artifact.ID},
		Result: artifact,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	artifact, err := s.modelFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	rows, err := dataFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	prediction, err := pipeline.Predict(artifact, rows)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"model_id": artifact.ID},
		Result: prediction,
	})
}

func (s *Server) handleTune(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	modelType := pipeline.ModelType(cast.ToString(req.Params["model_type"]))
	search := tuning.SearchType(cast.ToString(req.Params["search"]))
	cvFolds := cast.ToInt(req.Params["cv_folds"])
	if cvFolds == 0 {
		cvFolds = 5
	}
	result, err := tuning.Tune(t, modelType, search, cvFolds)
	if err != nil {
		renderError(w, r, err)
		return
	}
	s.models.Put(result.Artifact.ID, result.Artifact)
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id, "model_id": result.Artifact.ID},
		Result: result,
	})
}

func (s *Server) handleImportance(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	artifact, err := s.modelFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	importances, err := explain.FeatureImportance(artifact)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"model_id": artifact.ID},
		Result: map[string]interface{}{"importances": importances},
	})
}

func (s *Server) handlePermutation(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	artifact, err := s.modelFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	nRepeats := cast.ToInt(req.Params["n_repeats"])
	if nRepeats == 0 {
		nRepeats = 5
	}
	entries, err := explain.PermutationImportance(artifact, t, nRepeats)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id, "model_id": artifact.ID},
		Result: map[string]interface{}{"importances": entries, "n_repeats": nRepeats},
	})
}

func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	artifact, err := s.modelFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	row, err := dataFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	explanation, err := explain.ExplainInstance(artifact, row)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"model_id": artifact.ID},
		Result: explanation,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id},
		Result: eda.Summarize(t),
	})
}

func (s *Server) handleGroupBy(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	by := cast.ToString(req.Params["by"])
	agg := cast.ToString(req.Params["agg"])
	if agg == "" {
		agg = "mean"
	}
	groups, err := eda.GroupBy(t, by, agg)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id},
		Result: map[string]interface{}{"by": by, "agg": agg, "groups": groups},
	})
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id},
		Result: eda.Correlation(t),
	})
}

func (s *Server) handlePCA(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	nComponents := cast.ToInt(req.Params["n_components"])
	if nComponents == 0 {
		nComponents = 2
	}
	scale := true
	if _, ok := req.Params["scale"]; ok {
		scale = cast.ToBool(req.Params["scale"])
	}
	result, err := multivar.PCA(t, nComponents, scale)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id},
		Result: result,
	})
}

func (s *Server) handleKMeans(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	t, id, err := s.datasetFrom(req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	k := cast.ToInt(req.Params["k"])
	if k == 0 {
		k = 3
	}
	scale := true
	if _, ok := req.Params["scale"]; ok {
		scale = cast.ToBool(req.Params["scale"])
	}
	result, err := multivar.KMeans(t, k, scale)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, &Response{
		Meta:   map[string]interface{}{"dataset_id": id},
		Result: result,
	})
}
