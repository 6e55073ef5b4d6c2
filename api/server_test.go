package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/prepflow/cleaning"
	"github.com/YuminosukeSato/prepflow/dataset"
	"github.com/YuminosukeSato/prepflow/pipeline"
	"github.com/YuminosukeSato/prepflow/store"
)

func newTestServer() *Server {
	return NewServer(
		dataset.NewRegistry(nil),
		store.New[*cleaning.Artifact]("cleaner"),
		store.New[*pipeline.ModelArtifact]("model"),
	)
}

func post(t *testing.T, handler http.Handler, path string, body map[string]interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func generateDataset(t *testing.T, handler http.Handler, phase string, n int) string {
	t.Helper()
	rec, body := post(t, handler, "/datasets/generate", map[string]interface{}{
		"params": map[string]interface{}{"phase": phase, "seed": 42, "n": n},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	meta := body["meta"].(map[string]interface{})
	return meta["dataset_id"].(string)
}

func TestHealth(t *testing.T) {
	handler := newTestServer().Routes()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateAndQuality(t *testing.T) {
	handler := newTestServer().Routes()
	id := generateDataset(t, handler, "clean", 100)
	assert.Equal(t, "clean_42_100", id)

	rec, body := post(t, handler, "/datasets/quality", map[string]interface{}{
		"meta": map[string]interface{}{"dataset_id": id},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	report := body["report"].(map[string]interface{})
	assert.Contains(t, report, "missing_values")
	assert.Contains(t, report, "outliers")
}

func TestUnknownDatasetIs404(t *testing.T) {
	handler := newTestServer().Routes()
	rec, _ := post(t, handler, "/datasets/quality", map[string]interface{}{
		"meta": map[string]interface{}{"dataset_id": "clean_1_1"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingDatasetIDIs400(t *testing.T) {
	handler := newTestServer().Routes()
	rec, _ := post(t, handler, "/datasets/quality", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleaningFitTransformFlow(t *testing.T) {
	handler := newTestServer().Routes()
	id := generateDataset(t, handler, "clean", 100)

	rec, body := post(t, handler, "/cleaning/fit", map[string]interface{}{
		"meta": map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{
			"impute_strategy":      "mean",
			"outlier_strategy":     "clip",
			"categorical_strategy": "one_hot",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	meta := body["meta"].(map[string]interface{})
	cleanerID := meta["cleaner_id"].(string)
	assert.Contains(t, cleanerID, "cleaner_")

	rec, body = post(t, handler, "/cleaning/transform", map[string]interface{}{
		"meta":   map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{"cleaner_id": cleanerID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := body["report"].(map[string]interface{})
	assert.Contains(t, report, "duplicates_removed")
	assert.Contains(t, report, "report_after")
}

func TestCleaningBadStrategyIs400(t *testing.T) {
	handler := newTestServer().Routes()
	id := generateDataset(t, handler, "clean", 50)

	rec, _ := post(t, handler, "/cleaning/fit", map[string]interface{}{
		"meta": map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{
			"impute_strategy":      "mode",
			"outlier_strategy":     "clip",
			"categorical_strategy": "one_hot",
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainPredictExplainFlow(t *testing.T) {
	handler := newTestServer().Routes()
	id := generateDataset(t, handler, "ml", 150)

	rec, body := post(t, handler, "/models/train", map[string]interface{}{
		"meta":   map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{"model_type": "logreg", "test_size": 0.2},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	meta := body["meta"].(map[string]interface{})
	modelID := meta["model_id"].(string)
	assert.Contains(t, modelID, "model_logreg_")

	rec, body = post(t, handler, "/models/predict", map[string]interface{}{
		"params": map[string]interface{}{"model_id": modelID},
		"data": []map[string]interface{}{
			{"x1": 0.5, "x2": -0.2, "x3": 0.1, "x4": 0.0, "x5": 1.0, "x6": -1.0, "segment": "A"},
			{"x1": -0.5, "x2": 0.2, "x3": -0.1, "x4": 0.3, "x5": -1.0, "x6": 1.0, "segment": "never-seen"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := body["result"].(map[string]interface{})
	predictions := result["predictions"].([]interface{})
	assert.Len(t, predictions, 2, "unseen categorical levels must still predict")

	rec, _ = post(t, handler, "/explain/importance", map[string]interface{}{
		"params": map[string]interface{}{"model_id": modelID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body = post(t, handler, "/explain/instance", map[string]interface{}{
		"params": map[string]interface{}{"model_id": modelID},
		"data": []map[string]interface{}{
			{"x1": 0.5, "x2": -0.2, "x3": 0.1, "x4": 0.0, "x5": 1.0, "x6": -1.0, "segment": "A"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result = body["result"].(map[string]interface{})
	assert.Contains(t, result, "per_feature_contribution")
}

func TestPredictUnknownModelIs404(t *testing.T) {
	handler := newTestServer().Routes()
	rec, _ := post(t, handler, "/models/predict", map[string]interface{}{
		"params": map[string]interface{}{"model_id": "model_logreg_0"},
		"data":   []map[string]interface{}{{"x1": 1.0}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExplainInstanceMultipleRowsIs400(t *testing.T) {
	handler := newTestServer().Routes()
	id := generateDataset(t, handler, "ml", 100)

	rec, body := post(t, handler, "/models/train", map[string]interface{}{
		"meta":   map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{"model_type": "logreg"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	modelID := body["meta"].(map[string]interface{})["model_id"].(string)

	rec, _ = post(t, handler, "/explain/instance", map[string]interface{}{
		"params": map[string]interface{}{"model_id": modelID},
		"data": []map[string]interface{}{
			{"x1": 0.5}, {"x1": -0.5},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEDAEndpoints(t *testing.T) {
	handler := newTestServer().Routes()
	id := generateDataset(t, handler, "eda", 150)

	rec, _ := post(t, handler, "/eda/summary", map[string]interface{}{
		"meta": map[string]interface{}{"dataset_id": id},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = post(t, handler, "/eda/groupby", map[string]interface{}{
		"meta":   map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{"by": "segment", "agg": "mean"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = post(t, handler, "/eda/groupby", map[string]interface{}{
		"meta":   map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{"by": "nope"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = post(t, handler, "/eda/correlation", map[string]interface{}{
		"meta": map[string]interface{}{"dataset_id": id},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMultivariateEndpoints(t *testing.T) {
	handler := newTestServer().Routes()
	id := generateDataset(t, handler, "mv", 120)

	rec, body := post(t, handler, "/multivariate/pca", map[string]interface{}{
		"meta":   map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{"n_components": 2},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := body["result"].(map[string]interface{})
	assert.Contains(t, result, "explained_variance_ratio")

	rec, body = post(t, handler, "/multivariate/kmeans", map[string]interface{}{
		"meta":   map[string]interface{}{"dataset_id": id},
		"params": map[string]interface{}{"k": 3},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result = body["result"].(map[string]interface{})
	assert.Contains(t, result, "silhouette")
}

func TestMalformedBodyIs400(t *testing.T) {
	handler := newTestServer().Routes()
	req := httptest.NewRequest(http.MethodPost, "/datasets/generate", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
