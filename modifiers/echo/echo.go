// Package echo provides a stdlib-only reference Modifier that never
// changes a request or response: preview always answers 204, modify
// always answers 204. Useful as a smoke-test registration and as the
// default handler for a path that exists only to prove OPTIONS/keep-alive
// plumbing end to end, grounded on ppomes-TokenShield's
// sendUnmodifiedResponse helper (icap-server-go/main.go and
// unified-tokenizer/internal/icap/icap.go both fall back to an unmodified
// 204 when their adaptation logic has nothing to do).
package echo

import "github.com/bitz-icapd/icapd/icap"

// Echo is a Modifier that always leaves the message untouched.
type Echo struct {
	name string
}

// New returns an Echo registered under name.
func New(name string) *Echo {
	if name == "" {
		name = "echo"
	}
	return &Echo{name: name}
}

// Name implements modifier.Modifier.
func (e *Echo) Name() string { return e.name }

// Preview always declines, deferring to Modify.
func (e *Echo) Preview(req *icap.Request) (*icap.Response, error) {
	return icap.NewResponse(icap.StatusNoContent), nil
}

// Modify always reports no modification.
func (e *Echo) Modify(req *icap.Request) (*icap.Response, error) {
	return icap.NewResponse(icap.StatusNoContent), nil
}
