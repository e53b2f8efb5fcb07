package middleware

import (
	"net/http"

	"github.com/edgeflare/eelytics/pkg/httputil"
)

// Chain applies middlewares to h. The first middleware in the list is the outermost wrapper.
func Chain(h http.Handler, middlewares ...httputil.Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
