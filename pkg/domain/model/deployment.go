package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

// Dialect identifies which historical event envelope shape a payload used.
// Vercel changed the webhook envelope across revisions; both shapes are still
// seen in the wild and must normalize identically.
type Dialect string

const (
	// DialectEnvelope is the current shape: {"type": ..., "payload": {...}}
	DialectEnvelope Dialect = "envelope"
	// DialectFlat is the legacy shape: a bare deployment object with a
	// "state" field instead of a type tag
	DialectFlat Dialect = "flat"
)

// DeploymentEvent is the normalized form of an inbound deployment webhook.
// It is built once per request and never mutated afterwards.
type DeploymentEvent struct {
	ID         string    // Deployment ID from the payload, if any
	Kind       string    // Raw kind tag ("deployment.succeeded") or state value
	Dialect    Dialect   // Which envelope shape matched
	Ready      bool      // Whether this is a ready-deployment event
	PreviewURL string    // Preview address, scheme-normalized
	Ref        string    // Branch name or commit id
	Project    string    // Project name
	CommitSHA  string    // Known commit id from metadata, may be empty
	ReceivedAt time.Time // Time when the event was received
}

// readyKinds are the type tags meaning a deployment finished successfully.
// Both tags are accepted; older senders used "deployment.ready".
var readyKinds = map[string]bool{
	"deployment.succeeded": true,
	"deployment.ready":     true,
}

// readyStates are the flat-dialect state values equivalent to a ready kind.
var readyStates = map[string]bool{
	"READY":            true,
	"deployment.ready": true,
}

type eventEnvelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload envelopePayload `json:"payload"`
}

type envelopePayload struct {
	URL        string            `json:"url"`
	TargetURL  string            `json:"targetUrl"`
	Name       string            `json:"name"`
	Alias      []string          `json:"alias"`
	Meta       map[string]string `json:"meta"`
	Deployment *deploymentObject `json:"deployment"`
	Project    *projectObject    `json:"project"`
}

type deploymentObject struct {
	ID   string            `json:"id"`
	URL  string            `json:"url"`
	Name string            `json:"name"`
	Ref  string            `json:"ref"`
	Meta map[string]string `json:"meta"`
}

type projectObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// flatDeployment is the legacy top-level deployment object
type flatDeployment struct {
	deploymentObject
	State     string   `json:"state"`
	TargetURL string   `json:"targetUrl"`
	Alias     []string `json:"alias"`
}

// ParseDeploymentEvent parses a webhook body into a normalized event.
// Non-ready events come back with Ready=false and a nil error; they are
// acknowledged but not processed. A ready event missing its preview URL or
// ref is a validation error, because the sender believed it was actionable.
func ParseDeploymentEvent(body []byte) (*DeploymentEvent, error) {
	var probe struct {
		Type  string `json:"type"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, goerr.Wrap(err, "unparsable webhook body", goerr.T(types.ErrTagMalformed))
	}

	var event *DeploymentEvent
	if probe.Type != "" {
		var env eventEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, goerr.Wrap(err, "unparsable event envelope", goerr.T(types.ErrTagMalformed))
		}
		event = normalizeEnvelope(&env)
	} else {
		var flat flatDeployment
		if err := json.Unmarshal(body, &flat); err != nil {
			return nil, goerr.Wrap(err, "unparsable deployment object", goerr.T(types.ErrTagMalformed))
		}
		event = normalizeFlat(&flat)
	}

	event.ReceivedAt = time.Now()

	if !event.Ready {
		return event, nil
	}

	if event.PreviewURL == "" {
		return nil, goerr.New("ready deployment event has no preview URL",
			goerr.T(types.ErrTagValidation), goerr.V("kind", event.Kind))
	}
	if event.Ref == "" {
		return nil, goerr.New("ready deployment event has no resolvable ref",
			goerr.T(types.ErrTagValidation), goerr.V("kind", event.Kind))
	}

	event.PreviewURL = NormalizePreviewURL(event.PreviewURL)
	return event, nil
}

func normalizeEnvelope(env *eventEnvelope) *DeploymentEvent {
	p := env.Payload
	d := p.Deployment
	if d == nil {
		d = &deploymentObject{}
	}
	meta := mergeMeta(d.Meta, p.Meta)

	return &DeploymentEvent{
		ID:         firstNonEmpty(d.ID, env.ID),
		Kind:       env.Type,
		Dialect:    DialectEnvelope,
		Ready:      readyKinds[env.Type],
		PreviewURL: firstNonEmpty(d.URL, p.URL, p.TargetURL, firstAlias(p.Alias)),
		Ref:        extractRef(meta, d.Ref),
		Project:    firstNonEmpty(projectName(p.Project), d.Name, p.Name),
		CommitSHA:  extractCommitSHA(meta),
	}
}

func normalizeFlat(flat *flatDeployment) *DeploymentEvent {
	return &DeploymentEvent{
		ID:         flat.ID,
		Kind:       flat.State,
		Dialect:    DialectFlat,
		Ready:      readyStates[flat.State],
		PreviewURL: firstNonEmpty(flat.URL, flat.TargetURL, firstAlias(flat.Alias)),
		Ref:        extractRef(flat.Meta, flat.Ref),
		Project:    flat.Name,
		CommitSHA:  extractCommitSHA(flat.Meta),
	}
}

// extractRef picks the branch/ref with the documented priority: source
// control commit ref metadata (GitHub then GitLab flavor), then the generic
// branch key, then the deployment-level ref field.
func extractRef(meta map[string]string, deploymentRef string) string {
	return firstNonEmpty(
		meta["githubCommitRef"],
		meta["gitlabCommitRef"],
		meta["branch"],
		deploymentRef,
	)
}

// extractCommitSHA checks the metadata keys used for the commit id across
// sender revisions. Any hit allows skipping the commit lookup entirely.
func extractCommitSHA(meta map[string]string) string {
	return firstNonEmpty(
		meta["githubCommitSha"],
		meta["gitlabCommitSha"],
		meta["gitCommitSha"],
		meta["commitSha"],
	)
}

// NormalizePreviewURL prepends https:// to scheme-less addresses. This is a
// string transform only; reachability is the test workflow's concern.
func NormalizePreviewURL(u string) string {
	if u == "" || strings.Contains(u, "://") {
		return u
	}
	return "https://" + u
}

// mergeMeta overlays deployment-level metadata on payload-level metadata,
// deployment keys winning
func mergeMeta(deployment, payload map[string]string) map[string]string {
	if len(payload) == 0 {
		return orEmpty(deployment)
	}
	merged := make(map[string]string, len(payload)+len(deployment))
	for k, v := range payload {
		merged[k] = v
	}
	for k, v := range deployment {
		merged[k] = v
	}
	return merged
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func projectName(p *projectObject) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func firstAlias(aliases []string) string {
	if len(aliases) == 0 {
		return ""
	}
	return aliases[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
