package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herald/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub configuration: the target repository, the credential
// (a static token or GitHub App identity), and the fixed identifiers of the
// downstream workflow and check run.
type GitHub struct {
	Owner           string
	Repo            string
	Token           string `masq:"secret"`
	AppID           int64
	InstallationID  int64
	PrivateKey      string `masq:"secret"`
	WorkflowFile    string
	CheckNamePrefix string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-owner",
			Usage:       "GitHub repository owner",
			Required:    true,
			Destination: &c.Owner,
			Sources:     cli.EnvVars("HERALD_GITHUB_OWNER"),
		},
		&cli.StringFlag{
			Name:        "github-repo",
			Usage:       "GitHub repository name",
			Required:    true,
			Destination: &c.Repo,
			Sources:     cli.EnvVars("HERALD_GITHUB_REPO"),
		},
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub personal access token (alternative to App credentials)",
			Destination: &c.Token,
			Sources:     cli.EnvVars("HERALD_GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("HERALD_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("HERALD_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM, escaped newlines accepted)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("HERALD_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-workflow-file",
			Usage:       "Workflow file dispatched for preview tests",
			Value:       "preview-e2e.yml",
			Destination: &c.WorkflowFile,
			Sources:     cli.EnvVars("HERALD_GITHUB_WORKFLOW_FILE"),
		},
		&cli.StringFlag{
			Name:        "check-name-prefix",
			Usage:       "Prefix of check run names",
			Value:       "preview-e2e",
			Destination: &c.CheckNamePrefix,
			Sources:     cli.EnvVars("HERALD_CHECK_NAME_PREFIX"),
		},
	}
}

// UseApp reports whether GitHub App credentials should be used instead of a
// static token
func (c *GitHub) UseApp() bool {
	return c.Token == ""
}

// Validate checks that exactly one usable credential is configured
func (c *GitHub) Validate() error {
	if c.Token != "" {
		return nil
	}
	if c.AppID != 0 && c.InstallationID != 0 && c.PrivateKey != "" {
		return nil
	}
	return goerr.New("either a GitHub token or App credentials (app id, installation id, private key) are required",
		goerr.T(types.ErrTagConfig))
}
