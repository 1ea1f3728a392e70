package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	controller "github.com/m-mizutani/herald/pkg/controller/http"
	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/usecase"
)

// generateSignature generates an HMAC-SHA1 signature for testing
func generateSignature(secret string, payload []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// stubForge implements ForgeClient for end-to-end handler tests
type stubForge struct {
	commitSHA   string
	commitErr   error
	branchErr   error
	checkRunID  int64
	dispatchErr error

	commitCalls   int
	branchCalls   int
	createCalls   []string
	dispatchCalls []map[string]any
	dispatchRefs  []string
	failCalls     int
}

func (s *stubForge) GetCommitSHA(ctx context.Context, ref string) (string, error) {
	s.commitCalls++
	return s.commitSHA, s.commitErr
}

func (s *stubForge) GetBranchHead(ctx context.Context, branch string) (string, error) {
	s.branchCalls++
	return "", s.branchErr
}

func (s *stubForge) CreateCheckRun(ctx context.Context, name, headSHA string) (int64, error) {
	s.createCalls = append(s.createCalls, name)
	return s.checkRunID, nil
}

func (s *stubForge) FailCheckRun(ctx context.Context, checkRunID int64, name, summary string) error {
	s.failCalls++
	return nil
}

func (s *stubForge) DispatchWorkflow(ctx context.Context, ref string, inputs map[string]any) error {
	s.dispatchRefs = append(s.dispatchRefs, ref)
	s.dispatchCalls = append(s.dispatchCalls, inputs)
	return s.dispatchErr
}

func (s *stubForge) ValidateWorkflow(ctx context.Context) error { return nil }

func (s *stubForge) totalCalls() int {
	return s.commitCalls + s.branchCalls + len(s.createCalls) + len(s.dispatchCalls) + s.failCalls
}

const testSecret = "test-secret"

func newTestHandler(forge interfaces.ForgeClient) *controller.WebhookHandler {
	uc := usecase.NewDeployment(forge, "preview-e2e")
	return controller.NewWebhookHandler(testSecret, uc)
}

func postWebhook(handler *controller.WebhookHandler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/hooks/vercel", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("x-vercel-signature", signature)
	}

	w := httptest.NewRecorder()
	handler.Handle(w, req)
	return w
}

func readyPayload() []byte {
	return []byte(`{
		"type": "deployment.succeeded",
		"payload": {
			"name": "dashboard",
			"deployment": {
				"url": "dash-abc.example.com",
				"name": "dashboard",
				"meta": {"githubCommitRef": "main"}
			}
		}
	}`)
}

func TestWebhookHandler_DispatchesReadyDeployment(t *testing.T) {
	forge := &stubForge{commitSHA: "abc123", checkRunID: 42}
	handler := newTestHandler(forge)

	payload := readyPayload()
	w := postWebhook(handler, payload, generateSignature(testSecret, payload))

	gt.Value(t, w.Code).Equal(http.StatusOK)

	gt.Array(t, forge.createCalls).Length(1)
	gt.Value(t, forge.createCalls[0]).Equal("preview-e2e (dashboard)")

	gt.Array(t, forge.dispatchCalls).Length(1)
	gt.Value(t, forge.dispatchRefs[0]).Equal("main")
	gt.Value(t, forge.dispatchCalls[0]["url"]).Equal("https://dash-abc.example.com")
	gt.Value(t, forge.dispatchCalls[0]["project"]).Equal("dashboard")
	gt.Value(t, forge.dispatchCalls[0]["check_run_id"]).Equal("42")
}

func TestWebhookHandler_SignatureVerification(t *testing.T) {
	tests := []struct {
		name           string
		signature      func(payload []byte) string
		wantStatusCode int
	}{
		{
			name:           "valid signature",
			signature:      func(p []byte) string { return generateSignature(testSecret, p) },
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "signature from wrong secret",
			signature:      func(p []byte) string { return generateSignature("other-secret", p) },
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "garbage signature",
			signature:      func(p []byte) string { return "sha1=invalid" },
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "missing signature",
			signature:      func(p []byte) string { return "" },
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forge := &stubForge{commitSHA: "abc123", checkRunID: 42}
			handler := newTestHandler(forge)

			payload := readyPayload()
			w := postWebhook(handler, payload, tt.signature(payload))

			gt.Value(t, w.Code).Equal(tt.wantStatusCode)
			if tt.wantStatusCode == http.StatusUnauthorized {
				gt.Value(t, forge.totalCalls()).Equal(0)
			}
		})
	}
}

func TestWebhookHandler_IgnoredEvent(t *testing.T) {
	forge := &stubForge{}
	handler := newTestHandler(forge)

	payload := []byte(`{"type":"deployment.error","payload":{}}`)
	w := postWebhook(handler, payload, generateSignature(testSecret, payload))

	gt.Value(t, w.Code).Equal(http.StatusAccepted)
	gt.Value(t, forge.totalCalls()).Equal(0)
	gt.True(t, strings.Contains(w.Body.String(), "ignored"))
}

func TestWebhookHandler_ValidationFailure(t *testing.T) {
	forge := &stubForge{}
	handler := newTestHandler(forge)

	// Ready event with no ref anywhere
	payload := []byte(`{
		"type": "deployment.succeeded",
		"payload": {
			"deployment": {"url": "dash-abc.example.com", "name": "dashboard"}
		}
	}`)
	w := postWebhook(handler, payload, generateSignature(testSecret, payload))

	gt.Value(t, w.Code).Equal(http.StatusBadRequest)
	gt.Value(t, forge.totalCalls()).Equal(0)
}

func TestWebhookHandler_UnresolvableRef(t *testing.T) {
	forge := &stubForge{
		commitErr: errors.New("commit lookup failed"),
		branchErr: errors.New("branch lookup failed"),
	}
	handler := newTestHandler(forge)

	payload := readyPayload()
	w := postWebhook(handler, payload, generateSignature(testSecret, payload))

	gt.Value(t, w.Code).Equal(http.StatusBadGateway)
	gt.True(t, strings.Contains(w.Body.String(), "main"))
	gt.Array(t, forge.createCalls).Length(0)
}

func TestWebhookHandler_DispatchFailure(t *testing.T) {
	forge := &stubForge{
		commitSHA:   "abc123",
		checkRunID:  42,
		dispatchErr: errors.New("422 unprocessable"),
	}
	handler := newTestHandler(forge)

	payload := readyPayload()
	w := postWebhook(handler, payload, generateSignature(testSecret, payload))

	gt.Value(t, w.Code).Equal(http.StatusBadGateway)
	gt.Value(t, forge.failCalls).Equal(1)
}

func TestWebhookHandler_MalformedBody(t *testing.T) {
	forge := &stubForge{}
	handler := newTestHandler(forge)

	payload := []byte(`{not json`)
	w := postWebhook(handler, payload, generateSignature(testSecret, payload))

	gt.Value(t, w.Code).Equal(http.StatusBadRequest)
	gt.Value(t, forge.totalCalls()).Equal(0)
}

func TestWebhookHandler_MissingSecretConfig(t *testing.T) {
	forge := &stubForge{commitSHA: "abc123", checkRunID: 42}
	uc := usecase.NewDeployment(forge, "preview-e2e")
	handler := controller.NewWebhookHandler("", uc)

	payload := readyPayload()
	req := httptest.NewRequest(http.MethodPost, "/hooks/vercel", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	handler.Handle(w, req)

	gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
	gt.Value(t, forge.totalCalls()).Equal(0)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	forge := &stubForge{}
	uc := usecase.NewDeployment(forge, "preview-e2e")
	server := gt.R1(controller.NewServer(context.Background(), uc,
		controller.WithWebhookSecret(testSecret))).NoError(t)

	req := httptest.NewRequest(http.MethodGet, "/hooks/vercel", nil)
	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)

	gt.Value(t, w.Code).Equal(http.StatusMethodNotAllowed)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"deployment.succeeded"}`)
	secret := "s3cret"

	gt.True(t, controller.VerifySignature(body, generateSignature(secret, body), secret))
	gt.False(t, controller.VerifySignature(body, generateSignature("wrong", body), secret))
	gt.False(t, controller.VerifySignature(body, "", secret))
	gt.False(t, controller.VerifySignature(body, generateSignature(secret, body), ""))

	// Signature computed over a re-encoded body must not verify
	reencoded := []byte(`{"type": "deployment.succeeded"}`)
	gt.False(t, controller.VerifySignature(body, generateSignature(secret, reencoded), secret))
}
