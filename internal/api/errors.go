package api

import (
	"encoding/json"
	"net/http"

	"gv-go/internal/gv"
)

// errorBody is the platform's error shape. Validation failures carry
// per-field messages under "errors".
type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

// errorFromResponse classifies a non-2xx response. The server's message is
// kept verbatim so callers can show it, e.g. "only verified users can donate".
func errorFromResponse(status int, body []byte) *gv.Error {
	var eb errorBody
	// Partial decodes still yield whatever fields matched.
	_ = json.Unmarshal(body, &eb)

	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}

	e := &gv.Error{Status: status, Message: msg}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = gv.KindUnauthenticated
	case status == http.StatusForbidden:
		e.Kind = gv.KindForbidden
	case status == http.StatusNotFound:
		e.Kind = gv.KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = gv.KindValidation
		e.Fields = eb.Errors
	default:
		e.Kind = gv.KindServer
	}
	return e
}
