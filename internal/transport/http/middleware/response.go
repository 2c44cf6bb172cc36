package middleware

import (
	"net/http"

	"github.com/go-chi/render"
)

// errorBody mirrors the handler package's error envelope so clients see one
// shape whether a request fails in middleware or in a handler.
type errorBody struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: msg, ErrorCode: status})
}
