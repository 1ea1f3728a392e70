package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify pipeline failures so the HTTP layer can map them to
// response codes without inspecting messages.
var (
	// ErrTagAuth marks a missing or invalid webhook signature
	ErrTagAuth = goerr.NewTag("auth")

	// ErrTagMalformed marks an unparsable request body
	ErrTagMalformed = goerr.NewTag("malformed")

	// ErrTagValidation marks a ready-deployment event missing required fields
	ErrTagValidation = goerr.NewTag("validation")

	// ErrTagConfig marks missing required configuration (operator error)
	ErrTagConfig = goerr.NewTag("config")

	// ErrTagUnresolvableRef marks exhausted commit resolution for a ref
	ErrTagUnresolvableRef = goerr.NewTag("unresolvable_ref")

	// ErrTagCheckRunCreate marks a rejected check run creation
	ErrTagCheckRunCreate = goerr.NewTag("check_run_create")

	// ErrTagDispatch marks a rejected workflow dispatch
	ErrTagDispatch = goerr.NewTag("dispatch")
)
