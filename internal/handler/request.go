package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"household-inventory-api/internal/middleware"
	"household-inventory-api/pkg/apierror"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst, rejecting unknown fields and oversized payloads.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required")
		}
		return apierror.BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// memberID returns the member set by middleware.RequireMember.
func memberID(r *http.Request) string {
	return middleware.GetMemberID(r.Context())
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.ValidationError(name+" must be an integer",
			apierror.FieldError{Field: name, Message: "must be an integer"})
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apierror.ValidationError(name+" must be a boolean",
			apierror.FieldError{Field: name, Message: "must be a boolean"})
	}
	return v, nil
}
