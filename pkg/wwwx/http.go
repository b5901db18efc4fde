// Package wwwx holds the HTTP helpers that github.com/cyclopcam/www doesn't have
package wwwx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

// HandleLimited is www.Handle, with a per-IP rate limit of 'requests' per 'window'.
// If requests is zero, there is no limit.
func HandleLimited(log logs.Log, router *httprouter.Router, method, path string, requests int, window time.Duration, handle httprouter.Handle) {
	if requests <= 0 {
		www.Handle(log, router, method, path, handle)
		return
	}
	limiter := httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
	www.Handle(log, router, method, path, func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle(w, r, p)
		})).ServeHTTP(w, r)
	})
}

// Returns the named query value as an int, or zero if the item is missing or not parseable as an integer
func QueryInt(r *http.Request, key string) int {
	i, _ := strconv.Atoi(r.URL.Query().Get(key))
	return i
}

// Set cache headers instructing the client never to cache
func CacheNever(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "max-age=0")
}
