// Package modifier defines the adaptation-module contract and the registry
// that maps an ICAP request's method and URI path to the ordered chain of
// modifiers that should see it. Its shape is modeled on
// unified-tokenizer/internal/icap's Handler interface, generalized from a
// single fixed tokenizer into an ordered, registrable chain.
package modifier

import "github.com/bitz-icapd/icapd/icap"

// Modifier adapts one ICAP request. Preview is called once for requests
// carrying a Preview announcement: returning nil or a 204 declines and
// lets the next modifier in the chain weigh in, 100 Continue asks for the
// rest of the body, and any other status is a final response that skips
// the rest of the body entirely. Modify is called once the body can be
// read in full (req.FullBody); returning nil or a 204 declines, and the
// first other response in the chain is the final one.
//
// A Modifier that has nothing to say about a Preview should return
// (nil, nil). When the whole chain declines during preview, Modify is
// still called after the rest of the body is requested, except when the
// preview carried ieof or the client announced Allow: 204.
type Modifier interface {
	// Name identifies the modifier in logs and in the OPTIONS Service
	// header. It should be stable across restarts.
	Name() string

	// Preview inspects the preview bytes already read onto req and may
	// short-circuit the transaction. Only called when req.HasPreview().
	Preview(req *icap.Request) (*icap.Response, error)

	// Modify runs the full adaptation and returns the final response.
	Modify(req *icap.Request) (*icap.Response, error)
}

// OptionsDescriber is an optional interface a Modifier can implement to
// contribute to the synthesized OPTIONS response for its path — e.g. a
// narrower Transfer-Preview pattern or a non-default preview size. A
// Modifier that does not implement it gets the OptionsConfig defaults.
type OptionsDescriber interface {
	OptionsHints() OptionsHints
}

// OptionsHints carries the subset of an OPTIONS response's fields a
// modifier may want to override.
type OptionsHints struct {
	PreviewBytes     int
	TransferPreview  []string
	TransferIgnore   []string
	TransferComplete []string
	MaxConnections   int
}
