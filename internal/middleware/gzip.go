package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const compressLevel = 5

// GzipMiddleware распаковывает тела запросов в gzip и сжимает ответы,
// если клиент их принимает.
func GzipMiddleware(next http.Handler) http.Handler {
	compress := chimiddleware.Compress(compressLevel)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			defer gz.Close()

			r.Body = io.NopCloser(gz)
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
		}

		compress.ServeHTTP(w, r)
	})
}
