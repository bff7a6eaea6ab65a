package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/DataDog/jsonapi"

	"github.com/strata-api/strata/internal/resource"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
)

// RenderError maps an engine error onto its HTTP status and renders a
// JSON:API error document: validation failures are 422 with one error per
// relationship, schema and include-path errors are caller errors (400),
// missing records are 404, and binding errors are configuration defects
// (500).
func RenderError(w http.ResponseWriter, err error) {
	var validationErr *resource.ValidationError
	if errors.As(err, &validationErr) {
		RenderErrors(w, http.StatusUnprocessableEntity, transformValidationError(validationErr))
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case schema.IsSchemaError(err):
		status = http.StatusBadRequest
		code = "schema_error"
	case resource.IsSerializationError(err):
		status = http.StatusBadRequest
		code = "invalid_include"
	case resource.IsBindingError(err):
		status = http.StatusInternalServerError
		code = "binding_error"
	case store.IsNotFound(err):
		status = http.StatusNotFound
		code = "not_found"
	}

	RenderErrors(w, status, []*jsonapi.Error{{
		Status: &status,
		Code:   code,
		Title:  http.StatusText(status),
		Detail: err.Error(),
	}})
}

// RenderStatusError renders a plain HTTP-level error document
func RenderStatusError(w http.ResponseWriter, status int, detail string) {
	if detail == "" {
		detail = http.StatusText(status)
	}
	RenderErrors(w, status, []*jsonapi.Error{{
		Status: &status,
		Title:  http.StatusText(status),
		Detail: detail,
	}})
}

// RenderErrors renders a JSON:API errors document
func RenderErrors(w http.ResponseWriter, status int, errs []*jsonapi.Error) {
	data, err := json.Marshal(map[string][]*jsonapi.Error{"errors": errs})
	if err != nil {
		w.Header().Set("Content-Type", MediaType)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"errors":[{"status":"500","title":"Internal Server Error"}]}`))
		return
	}

	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(status)
	w.Write(data)
}

// transformValidationError converts a relationship validation failure into
// JSON:API error objects with source pointers
func transformValidationError(err *resource.ValidationError) []*jsonapi.Error {
	status := http.StatusUnprocessableEntity

	fields := make([]string, 0, len(err.Fields))
	for field := range err.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var result []*jsonapi.Error
	for _, field := range fields {
		message := err.Fields[field]
		result = append(result, &jsonapi.Error{
			Status: &status,
			Code:   "validation_error",
			Title:  "Validation Failed",
			Detail: message,
			Source: &jsonapi.ErrorSource{
				Pointer: fmt.Sprintf("/data/relationships/%s", escapeJSONPointer(field)),
			},
		})
	}
	return result
}

// escapeJSONPointer escapes special characters per RFC 6901
func escapeJSONPointer(token string) string {
	// Order matters: escape ~ before /
	token = strings.ReplaceAll(token, "~", "~0")
	token = strings.ReplaceAll(token, "/", "~1")
	return token
}

// ValidateContentType checks that a write request carries the JSON:API
// media type without parameters, rendering an error and returning false
// otherwise
func ValidateContentType(w http.ResponseWriter, r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != MediaType {
		RenderStatusError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("Content-Type must be %s", MediaType))
		return false
	}
	if len(params) > 0 {
		RenderStatusError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("Content-Type must be %s without media type parameters", MediaType))
		return false
	}
	return true
}
