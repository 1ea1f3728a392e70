package config

import "github.com/urfave/cli/v3"

// Vercel holds webhook sender configuration
type Vercel struct {
	WebhookSecret string `masq:"secret"`
}

// Flags returns CLI flags for Vercel configuration. The secret is not marked
// required; an unset secret surfaces as a per-request configuration error.
func (c *Vercel) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "vercel-webhook-secret",
			Usage:       "Shared secret for webhook signature verification",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("HERALD_VERCEL_WEBHOOK_SECRET"),
		},
	}
}
