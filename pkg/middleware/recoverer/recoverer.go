package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
)

type errorResponse struct {
	Error string `json:"error"`
}

// New returns a middleware that turns a panic in next into a 500 JSON response.
// http.ErrAbortHandler is re-panicked so the server can abort the connection.
func New(logger *slog.Logger) func(next http.Handler) http.Handler {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.ErrorContext(
						r.Context(),
						"something went wrong, panic occurred",
						slog.Group(op, slog.Any("err", err), slog.String("stack", string(debug.Stack()))),
					)

					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, errorResponse{Error: "Internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
