package handler

import (
	"io"

	"github.com/bitz-icapd/icapd/icap"
	"github.com/bitz-icapd/icapd/modifier"
)

// serveReqmod implements the REQMOD handler: parse the
// encapsulated HTTP request, run the modifier chain, and return either the
// request unmodified (204), a modified request (200 req-hdr/req-body), or
// a self-contained HTTP response (200 res-hdr/res-body) to short-circuit
// the transaction.
func (h *Handler) serveReqmod(req *icap.Request, chain []modifier.Modifier, w io.Writer) *icap.Response {
	resp, allDeclined, err := runChain(req, chain, w)
	if err != nil {
		return errorResponse(err)
	}
	if !allDeclined {
		return resp
	}

	if req.Header.Allow204 {
		return icap.NewResponse(icap.StatusNoContent)
	}
	return echoReqmod(req)
}

// echoReqmod rebuilds the original request as a 200 response when the
// client did not advertise Allow: 204, so the response must echo the
// input back as a 200 rather than a bare 204.
func echoReqmod(req *icap.Request) *icap.Response {
	body, err := req.FullBody()
	if err != nil {
		return errorResponse(err)
	}
	return icap.NewModifiedRequest(req.ReqHeaderBytes(), body)
}
