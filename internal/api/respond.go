package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/xbridge-api/internal/errs"
)

// maxBodyBytes bounds POST bodies
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every failed request
type errorBody struct {
	Error     bool   `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Code      string `json:"code,omitempty"`
	Field     string `json:"field,omitempty"`
	ChainID   string `json:"chainId,omitempty"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Debug("Response write failed")
	}
}

// statusFor maps an error to its HTTP status. An open circuit is 503; other
// upstream failures are 502.
func statusFor(err error) int {
	if errs.Is(err, errs.UpstreamUnavailable) {
		return http.StatusServiceUnavailable
	}
	switch errs.KindOf(err) {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Configuration:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{
		Error:     true,
		Kind:      string(errs.KindOf(err)),
		Message:   err.Error(),
		Path:      r.URL.RequestURI(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	var e *errs.Error
	if errors.As(err, &e) {
		body.Code = string(e.Code)
		body.Field = e.Field
		body.ChainID = e.ChainID
		if e.Message != "" {
			body.Message = e.Message
		}
	}

	fields := logrus.Fields{"method": r.Method, "path": r.URL.Path, "kind": body.Kind, "code": body.Code, "error": err}
	if status >= http.StatusInternalServerError {
		logrus.WithFields(fields).Warn("API error")
	} else {
		logrus.WithFields(fields).Debug("API error")
	}
	writeJSON(w, status, body)
}

// decodeBody reads a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Field(errs.InvalidBody, "body", fmt.Sprintf("malformed JSON body: %v", err))
	}
	return nil
}

// looseString accepts a JSON string or number, so chain ids and amounts may
// be sent either way.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or number, got %s", b)
	}
	*s = looseString(n.String())
	return nil
}
