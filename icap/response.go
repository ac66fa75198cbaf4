package icap

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response bundles a ResponseHeader with an in-memory Payload. Handlers
// build a Response in whole — streaming server-to-client beyond the
// serializer is not required — and hand it to WriteTo.
//
// BodyKind names which terminal Encapsulated entry to emit: SectionNullBody
// for a bodyless response, or SectionReqBody/SectionResBody to indicate
// which Payload field (ReqBody/ResBody) holds the body bytes;
// SectionOptBody is written as an empty chunked body, since Payload has no
// opt-body field. A nil Payload.ReqHeader/ResHeader means that section is
// absent entirely; a non-nil empty slice means it is present but
// zero-length.
type Response struct {
	Header   *ResponseHeader
	Payload  *Payload
	BodyKind EncapsulatedSection
}

// NewResponse builds a bare Response for status with an empty Payload and
// null-body encapsulation — the right default for 204, 404, 405, 408, 500,
// 501 and 505 responses that carry no encapsulated content.
func NewResponse(status int) *Response {
	return &Response{
		Header:   NewResponseHeader(status),
		Payload:  &Payload{},
		BodyKind: SectionNullBody,
	}
}

// NewModifiedRequest builds a 200 response carrying a (possibly modified)
// encapsulated HTTP request, for the REQMOD handler.
func NewModifiedRequest(reqHeader, reqBody []byte) *Response {
	if reqBody == nil {
		reqBody = []byte{}
	}
	return &Response{
		Header:   NewResponseHeader(StatusOK),
		Payload:  &Payload{ReqHeader: reqHeader, ReqBody: reqBody},
		BodyKind: SectionReqBody,
	}
}

// NewModifiedResponse builds a 200 response carrying a (possibly modified)
// encapsulated HTTP response, for the RESPMOD handler.
func NewModifiedResponse(resHeader, resBody []byte) *Response {
	if resBody == nil {
		resBody = []byte{}
	}
	return &Response{
		Header:   NewResponseHeader(StatusOK),
		Payload:  &Payload{ResHeader: resHeader, ResBody: resBody},
		BodyKind: SectionResBody,
	}
}

// NewShortCircuitResponse builds a 200 response carrying a self-contained
// HTTP response (res-hdr + res-body) returned in place of a REQMOD request,
// carrying a self-contained HTTP response that short-circuits the
// transaction.
func NewShortCircuitResponse(resHeader, resBody []byte) *Response {
	return NewModifiedResponse(resHeader, resBody)
}

// WriteTo serializes resp to w: status line, headers (auto-injecting
// Date/Server/ISTag/Encapsulated if the caller has not already set them),
// the req-hdr/res-hdr sections verbatim, and the body section (if any)
// chunk-encoded.
func (resp *Response) WriteTo(w io.Writer, isTag, serverToken string) error {
	h := resp.Header
	if h.Header == nil {
		h.Header = NewHeader()
	}

	if h.Status == StatusNoContent {
		resp.Payload = &Payload{}
		resp.BodyKind = SectionNullBody
	}

	encapValue, reqHdr, resHdr, bodyBytes := resp.layoutEncapsulated()

	if !h.Header.Has("Date") {
		h.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if serverToken != "" && !h.Header.Has("Server") {
		h.Header.Set("Server", serverToken)
	}
	if !h.Header.Has("ISTag") {
		h.Header.Set("ISTag", isTag)
	}
	if !h.Header.Has("Encapsulated") {
		h.Header.Set("Encapsulated", encapValue)
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "ICAP/1.0 %d %s\r\n", h.Status, reasonOrDefault(h)); err != nil {
		return err
	}
	h.Header.Each(func(name, value string) {
		fmt.Fprintf(bw, "%s: %s\r\n", name, value)
	})
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}

	if len(reqHdr) > 0 {
		if _, err := bw.Write(reqHdr); err != nil {
			return err
		}
	}
	if len(resHdr) > 0 {
		if _, err := bw.Write(resHdr); err != nil {
			return err
		}
	}

	if resp.BodyKind != SectionNullBody && resp.BodyKind != "" {
		cw := newChunkedWriter(bw)
		if len(bodyBytes) > 0 {
			if _, err := cw.Write(bodyBytes); err != nil {
				return err
			}
		}
		if err := cw.Close(); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteContinue writes the minimal "100 Continue" line that tells the
// client to send the remainder of a previewed body. Unlike a full Response
// it carries no headers and no Encapsulated line.
func WriteContinue(w io.Writer) error {
	_, err := io.WriteString(w, "ICAP/1.0 100 Continue\r\n\r\n")
	return err
}

func reasonOrDefault(h *ResponseHeader) string {
	if h.Reason != "" {
		return h.Reason
	}
	return ReasonPhrase(h.Status)
}

// layoutEncapsulated computes the Encapsulated header value and resolves
// which bytes back each section: concatenation order is req-hdr, res-hdr,
// then at most one of req-body/res-body/opt-body/null-body.
func (resp *Response) layoutEncapsulated() (headerValue string, reqHdr, resHdr, bodyBytes []byte) {
	p := resp.Payload
	offset := 0
	var parts []string

	if p.ReqHeader != nil {
		parts = append(parts, fmt.Sprintf("req-hdr=%d", offset))
		reqHdr = p.ReqHeader
		offset += len(reqHdr)
	}
	if p.ResHeader != nil {
		parts = append(parts, fmt.Sprintf("res-hdr=%d", offset))
		resHdr = p.ResHeader
		offset += len(resHdr)
	}

	kind := resp.BodyKind
	if kind == "" {
		kind = SectionNullBody
	}
	switch kind {
	case SectionReqBody:
		bodyBytes = p.ReqBody
	case SectionResBody:
		bodyBytes = p.ResBody
	}
	parts = append(parts, fmt.Sprintf("%s=%d", kind, offset))

	return strings.Join(parts, ", "), reqHdr, resHdr, bodyBytes
}
