package handlers

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"github.com/persona-chat-go/internal/config"
	"github.com/persona-chat-go/internal/i18n"
	"github.com/persona-chat-go/internal/middleware"
	"github.com/persona-chat-go/internal/models"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the public routes. The chat route accepts every method so
// the handler can answer non-POST requests with its own JSON envelope.
func NewRouter(
	cfg *config.ServerConfig,
	chat *ChatHandler,
	metrics *middleware.Metrics,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, Recover(localizer, logger), metrics.Instrument)

	router.Handle(cfg.ChatPath, chat)
	router.HandleFunc("/health", middleware.HealthHandler).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, localizer, newGatewayError(MethodNotAllowed, nil))
	})

	return router
}

// Recover turns a panic in a handler into an UnexpectedError response.
func Recover(localizer *i18n.Localizer, logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.WithFields(logrus.Fields{
						"request_id": middleware.GetRequestID(r.Context()),
						"panic":      fmt.Sprint(rec),
						"stack":      string(debug.Stack()),
					}).Error("Recovered from panic")
					writeError(w, r, localizer, newGatewayError(UnexpectedError, fmt.Errorf("panic: %v", rec)))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
