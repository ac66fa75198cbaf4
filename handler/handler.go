// Package handler implements the per-method request orchestration:
// routing an already-parsed icap.Request to the OPTIONS
// document synthesizer or to the REQMOD/RESPMOD modifier chain, and
// producing the final icap.Response. Its dispatch shape follows
// unified-tokenizer/internal/icap/icap.go's method switch, generalized
// from one fixed tokenizer handler to the modifier.Registry's chain.
package handler

import (
	"io"
	"net/url"

	"github.com/bitz-icapd/icapd/icap"
	"github.com/bitz-icapd/icapd/modifier"
)

// Handler dispatches parsed requests to the modifier registry and returns
// the response to serialize. One Handler is shared by every worker's serve
// loop; it holds no per-connection state.
type Handler struct {
	registry    *modifier.Registry
	optionsCfg  modifier.OptionsConfig
	serverToken string
}

// New builds a Handler serving chains from reg, announcing serverToken as
// the ICAP Server header and describing itself per optsCfg in OPTIONS
// responses.
func New(reg *modifier.Registry, optsCfg modifier.OptionsConfig, serverToken string) *Handler {
	return &Handler{registry: reg, optionsCfg: optsCfg, serverToken: serverToken}
}

// ServerToken returns the ICAP Server header value this Handler announces.
func (h *Handler) ServerToken() string { return h.serverToken }

// Serve routes req to the appropriate per-method handler and returns the
// response to write back. w is the live connection,
// needed only to emit an interim "100 Continue" mid-transaction when a
// preview chain asks for the rest of the body. Serve never returns a nil
// response: parse-level and dispatch-level failures are turned into the
// corresponding 4xx/5xx icap.Response.
func (h *Handler) Serve(req *icap.Request, w io.Writer) *icap.Response {
	method := string(req.Header.Method)
	path := uriPath(req.Header.URI)

	if method == string(icap.MethodOptions) {
		return h.serveOptions(path)
	}

	chain, ok := h.registry.Chain(method, path)
	if !ok {
		if h.registry.HasMethod(method) {
			return icap.NewResponse(icap.StatusNotFound)
		}
		return icap.NewResponse(icap.StatusMethodNotAllowed)
	}

	switch req.Header.Method {
	case icap.MethodReqmod:
		return h.serveReqmod(req, chain, w)
	case icap.MethodRespmod:
		return h.serveRespmod(req, chain, w)
	default:
		return icap.NewResponse(icap.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveOptions(path string) *icap.Response {
	reqChain, _ := h.registry.Chain(string(icap.MethodReqmod), path)
	respChain, _ := h.registry.Chain(string(icap.MethodRespmod), path)

	chain := reqChain
	methods := "REQMOD"
	switch {
	case len(reqChain) > 0 && len(respChain) > 0:
		methods = "REQMOD, RESPMOD"
	case len(respChain) > 0:
		chain = respChain
		methods = "RESPMOD"
	}

	return modifier.BuildOptionsResponse(h.optionsCfg, methods, chain)
}

// uriPath extracts the resource path from an icap:// URI, the portion
// after icap://host[:port]/ that the registry keys chains on.
func uriPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
