package trim

import (
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes caps accepted uploads at 32 MiB.
const maxBodyBytes = 32 << 20

// Handler serves the trim algorithm over HTTP: POST an encoded image,
// receive the cropped PNG.
func Handler(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(data) == 0 {
			http.Error(w, "empty body", http.StatusBadRequest)
			return
		}

		out, err := Trim(data, opts)
		if err != nil {
			slog.Error("trim failed", "error", err, "bytes", len(data))
			http.Error(w, "trim: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}
