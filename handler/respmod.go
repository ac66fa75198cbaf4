package handler

import (
	"io"

	"github.com/bitz-icapd/icapd/icap"
	"github.com/bitz-icapd/icapd/modifier"
)

// serveRespmod implements the RESPMOD handler: parse the
// encapsulated HTTP response (plus the original request headers, if
// present), run the modifier chain, and return either the response
// unmodified (204) or a modified response (200).
func (h *Handler) serveRespmod(req *icap.Request, chain []modifier.Modifier, w io.Writer) *icap.Response {
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
	return echoRespmod(req)
}

// echoRespmod rebuilds the original response as a 200 when the client did
// not advertise Allow: 204.
func echoRespmod(req *icap.Request) *icap.Response {
	body, err := req.FullBody()
	if err != nil {
		return errorResponse(err)
	}
	return &icap.Response{
		Header: icap.NewResponseHeader(icap.StatusOK),
		Payload: &icap.Payload{
			ReqHeader: req.ReqHeaderBytes(),
			ResHeader: req.ResHeaderBytes(),
			ResBody:   body,
		},
		BodyKind: icap.SectionResBody,
	}
}

// errorResponse translates a modifier or protocol-level error into the
// ICAP status it implies: a ProtocolError's own Status, or 500
// for anything else a modifier returned.
func errorResponse(err error) *icap.Response {
	if pe, ok := err.(*icap.ProtocolError); ok {
		return icap.NewResponse(pe.Status)
	}
	return icap.NewResponse(icap.StatusServerError)
}
