package main

import (
	"net/http"

	"github.com/rs/cors"
)

var allMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodConnect,
	http.MethodTrace,
}

// newCORS only admits browser requests from the given origins. Any method
// and header is allowed for them, with credentials.
func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   allMethods,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}

// originAllowed reports whether a request with this Origin header may be
// served. Requests without an Origin are not cross-origin.
func originAllowed(origins []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range origins {
		if o == origin {
			return true
		}
	}
	return false
}
