package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

// signatureHeader carries the HMAC of the raw request body
const signatureHeader = "x-vercel-signature"

// WebhookHandler handles deployment webhooks
type WebhookHandler struct {
	secret       string
	deploymentUC interfaces.DeploymentUseCase
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(secret string, deploymentUC interfaces.DeploymentUseCase) *WebhookHandler {
	return &WebhookHandler{
		secret:       secret,
		deploymentUC: deploymentUC,
	}
}

// Handle processes one webhook delivery through the verification and
// dispatch pipeline
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deliveryID := r.Header.Get("x-vercel-id")
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	logger := ctxlog.From(ctx).With("delivery_id", deliveryID)
	ctx = ctxlog.With(ctx, logger)

	if h.secret == "" {
		logger.Error("Webhook secret is not configured")
		writeError(w, goerr.New("webhook secret is not configured", goerr.T(types.ErrTagConfig)),
			http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !VerifySignature(body, r.Header.Get(signatureHeader), h.secret) {
		logger.Warn("Invalid webhook signature")
		writeError(w, goerr.New("invalid signature", goerr.T(types.ErrTagAuth)),
			http.StatusUnauthorized)
		return
	}

	event, err := model.ParseDeploymentEvent(body)
	if err != nil {
		logger.Warn("Rejected webhook event", "error", err)
		writeError(w, err, statusFromError(err))
		return
	}

	logger.Info("Received deployment event",
		"kind", event.Kind,
		"dialect", event.Dialect,
		"ready", event.Ready,
		"project", event.Project,
	)

	if !event.Ready {
		writeJSON(ctx, w, http.StatusAccepted, map[string]string{
			"status": "ignored",
			"kind":   event.Kind,
		})
		return
	}

	dispatch, err := h.deploymentUC.ProcessDeployment(ctx, event)
	if err != nil {
		logger.Error("Deployment pipeline failed", "error", err)
		writeError(w, err, statusFromError(err))
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"status":       "dispatched",
		"commit":       dispatch.HeadCommit,
		"check_run_id": dispatch.CheckRunID,
		"url":          dispatch.PreviewURL,
	})
}

// VerifySignature compares the keyed digest of the raw body against the
// supplied signature token in constant time. Fails closed: a missing secret
// or a missing/malformed token is never a match.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	signature = strings.TrimPrefix(signature, "sha1=")

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// statusFromError maps the pipeline error taxonomy to HTTP status codes
func statusFromError(err error) int {
	switch {
	case goerr.HasTag(err, types.ErrTagAuth):
		return http.StatusUnauthorized
	case goerr.HasTag(err, types.ErrTagMalformed), goerr.HasTag(err, types.ErrTagValidation):
		return http.StatusBadRequest
	case goerr.HasTag(err, types.ErrTagConfig):
		return http.StatusInternalServerError
	case goerr.HasTag(err, types.ErrTagUnresolvableRef),
		goerr.HasTag(err, types.ErrTagCheckRunCreate),
		goerr.HasTag(err, types.ErrTagDispatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		ctxlog.From(ctx).Error("Failed to encode response", "error", err)
	}
}
