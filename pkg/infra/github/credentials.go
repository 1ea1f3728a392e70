package github

import (
	"context"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herald/pkg/domain/interfaces"
)

// staticTokenSource wraps a long-lived personal access token
type staticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a TokenSource backed by a static token
func NewStaticTokenSource(token string) interfaces.TokenSource {
	return &staticTokenSource{token: token}
}

func (s *staticTokenSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", goerr.New("static token is empty")
	}
	return s.token, nil
}

// appTokenSource mints short-lived installation tokens from GitHub App
// credentials. Token caching and refresh are handled by the underlying
// installation transport.
type appTokenSource struct {
	transport *ghinstallation.Transport
}

// NewAppTokenSource creates a TokenSource backed by a GitHub App installation
func NewAppTokenSource(appID, installationID int64, privateKey []byte) (interfaces.TokenSource, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport")
	}
	return &appTokenSource{transport: itr}, nil
}

func (s *appTokenSource) Token(ctx context.Context) (string, error) {
	token, err := s.transport.Token(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to mint installation token")
	}
	return token, nil
}

// NormalizePrivateKey converts escaped newline sequences to real newlines.
// Keys pasted into environment variables commonly arrive with literal \n.
func NormalizePrivateKey(key string) []byte {
	return []byte(strings.ReplaceAll(key, `\n`, "\n"))
}
