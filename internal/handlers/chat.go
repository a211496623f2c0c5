package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/persona-chat-go/internal/config"
	"github.com/persona-chat-go/internal/i18n"
	"github.com/persona-chat-go/internal/middleware"
	"github.com/persona-chat-go/internal/models"
	"github.com/persona-chat-go/internal/services/ai"
	"github.com/persona-chat-go/internal/services/persona"
	"github.com/persona-chat-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes caps the inbound conversation size.
const maxBodyBytes = 1 << 20

// ChatHandler is the conversational endpoint: admission, sanitization,
// persona injection and the upstream call.
type ChatHandler struct {
	config      *config.UpstreamConfig
	aiService   ai.Service
	persona     *persona.Persona
	rateLimiter middleware.RateLimiter
	security    *middleware.SecurityMiddleware
	localizer   *i18n.Localizer
	metrics     *middleware.Metrics
	logger      *logrus.Logger
	now         func() time.Time
}

// NewChatHandler creates the chat handler
func NewChatHandler(
	cfg *config.UpstreamConfig,
	aiService ai.Service,
	p *persona.Persona,
	rateLimiter middleware.RateLimiter,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *ChatHandler {
	return &ChatHandler{
		config:      cfg,
		aiService:   aiService,
		persona:     p,
		rateLimiter: rateLimiter,
		security:    middleware.NewSecurityMiddleware(logger),
		localizer:   localizer,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	clientID := middleware.ClientIdentity(r)
	log := logger.WithRequest(h.logger, middleware.GetRequestID(r.Context()), clientID)

	reply, err := h.handle(w, r, clientID, log)
	if err != nil {
		ge := asGatewayError(err)
		h.metrics.RecordOutcome(string(ge.Kind))
		writeError(w, r, h.localizer, ge)

		log.WithFields(logrus.Fields{
			"outcome":  ge.Kind,
			"status":   ge.StatusCode(),
			"duration": time.Since(start),
		}).Info("Chat request rejected")
		return
	}

	h.metrics.RecordOutcome("success")
	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})

	log.WithFields(logrus.Fields{
		"outcome":     "success",
		"reply_bytes": len(reply),
		"duration":    time.Since(start),
	}).Info("Chat request completed")
}

func (h *ChatHandler) handle(w http.ResponseWriter, r *http.Request, clientID string, log *logrus.Entry) (string, error) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		return "", newGatewayError(MethodNotAllowed, fmt.Errorf("method %s", r.Method))
	}

	if err := h.admit(w, clientID); err != nil {
		return "", err
	}

	// The key is looked up on every request so it can be rotated without a
	// restart.
	apiKey := os.Getenv(h.config.APIKeyEnv)
	if apiKey == "" {
		log.WithField("env", h.config.APIKeyEnv).Error("Completion provider API key is not set")
		ge := newGatewayError(MisconfiguredServer, fmt.Errorf("%s is not set", h.config.APIKeyEnv))
		ge.data = map[string]interface{}{"Name": h.config.APIKeyEnv}
		return "", ge
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		// An oversized body cannot be parsed, so it carries no turns.
		log.WithField("limit", tooLarge.Limit).Warn("Request body too large, using empty conversation")
		body = nil
	case err != nil:
		return "", newGatewayError(UnexpectedError, fmt.Errorf("failed to read request body: %w", err))
	}

	turns := h.security.SanitizeConversation(body)
	req := &models.CompletionRequest{
		Model:       h.config.Model,
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
		Messages:    h.persona.Conversation(turns),
	}

	log.WithFields(logrus.Fields{
		"turns": len(turns),
		"model": req.Model,
	}).Debug("Forwarding conversation")

	return h.complete(r, apiKey, req, log)
}

func (h *ChatHandler) admit(w http.ResponseWriter, clientID string) error {
	now := h.now()
	decision := h.rateLimiter.Admit(clientID, now)
	h.metrics.RecordAdmission(decision.Allowed)

	if decision.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}

	if !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter(now).Seconds())))
		return newGatewayError(RateLimited, fmt.Errorf("client %s exceeded %d requests", clientID, decision.Limit))
	}
	return nil
}

func (h *ChatHandler) complete(r *http.Request, apiKey string, req *models.CompletionRequest, log *logrus.Entry) (string, error) {
	start := time.Now()
	reply, err := h.aiService.Complete(r.Context(), apiKey, req)
	duration := time.Since(start)

	var statusErr *ai.StatusError
	switch {
	case err == nil:
		h.metrics.RecordUpstreamRequest(req.Model, "ok", duration)
		return reply, nil

	case errors.As(err, &statusErr):
		h.metrics.RecordUpstreamRequest(req.Model, strconv.Itoa(statusErr.StatusCode), duration)
		log.WithFields(logrus.Fields{
			"status": statusErr.StatusCode,
			"body":   statusErr.Body,
		}).Error("Completion provider API error")
		return "", newGatewayError(UpstreamError, err)

	case errors.Is(err, ai.ErrUpstreamUnreachable):
		h.metrics.RecordUpstreamRequest(req.Model, "unreachable", duration)
		log.WithError(err).Error("Completion provider unreachable")
		return "", newGatewayError(UpstreamUnreachable, err)

	default:
		h.metrics.RecordUpstreamRequest(req.Model, "invalid", duration)
		log.WithError(err).Error("Completion request failed")
		return "", newGatewayError(UnexpectedError, err)
	}
}
