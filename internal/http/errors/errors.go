package errors

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Unavailable logs err with the request ID and answers 503 with a generic body.
func Unavailable(w http.ResponseWriter, r *http.Request, err error, message string) {
	LogError(r, message, err)
	http.Error(w, "unready", http.StatusServiceUnavailable)
}

func LogError(r *http.Request, message string, err error) {
	requestID := middleware.GetReqID(r.Context())

	if requestID != "" {
		log.Printf("[ERROR] RequestID=%s: %s: %v", requestID, message, err)
	} else {
		log.Printf("[ERROR] %s: %v", message, err)
	}
}
