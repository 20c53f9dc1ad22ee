package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/slotbook/slotbook/libs/httpx"
)

type registrar interface {
	Register(r *mux.Router)
}

// NewRouter mounts every handler behind authn, which must put the user id on
// the request context.
func NewRouter(authn func(http.Handler) http.Handler, handlers ...registrar) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	if authn != nil {
		r.Use(mux.MiddlewareFunc(authn))
	}
	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
