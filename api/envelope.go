package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/pkg/log"
)

// Request is the uniform inbound envelope: routing metadata, operation
// parameters and optional inline rows.
type Request struct {
	Meta   map[string]interface{}   `json:"meta"`
	Params map[string]interface{}   `json:"params"`
	Data   []map[string]interface{} `json:"data,omitempty"`
}

// Response is the uniform outbound envelope.
type Response struct {
	Meta   map[string]interface{} `json:"meta"`
	Result interface{}            `json:"result,omitempty"`
	Report interface{}            `json:"report,omitempty"`
}

func decode(r *http.Request) (*Request, error) {
	req := &Request{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return nil, errors.NewValidationError("body", "malformed JSON request", err.Error())
	}
	if req.Meta == nil {
		req.Meta = make(map[string]interface{})
	}
	if req.Params == nil {
		req.Params = make(map[string]interface{})
	}
	return req, nil
}

func respond(w http.ResponseWriter, r *http.Request, resp *Response) {
	if resp.Meta == nil {
		resp.Meta = make(map[string]interface{})
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// renderError maps the error taxonomy to HTTP status codes: unknown ids
// to 404, schema and parameter problems to 400, unsupported model
// capabilities to 422, the rest to 500.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var notFound *errors.NotFoundError
	var schema *errors.SchemaError
	var validation *errors.ValidationError
	var value *errors.ValueError
	var unsupported *errors.UnsupportedModelError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &schema), errors.As(err, &validation), errors.As(err, &value):
		status = http.StatusBadRequest
	case errors.As(err, &unsupported):
		status = http.StatusUnprocessableEntity
	}
	lg := log.With("api")
	lg.Error().
		Err(err).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg("request failed")
	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{
		"error": map[string]interface{}{
			"message": err.Error(),
			"status":  status,
		},
	})
}
