package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactServer serves rendered checkbook documents from the output
// directory. Paths are cleaned and pinned under dir; documents are
// immutable once written, so long cache lifetimes are safe.
func ArtifactServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean("/" + r.URL.Path)
		if strings.Contains(clean, "..") {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		path := filepath.Join(dir, clean)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "private, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		http.Error(w, "Not found", http.StatusNotFound)
	})
}

// SecurityHeaders sets baseline security response headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
