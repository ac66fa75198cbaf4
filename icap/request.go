package icap

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
)

// Request bundles a parsed RequestHeader with the still-connected reader so
// a handler can pull the encapsulated HTTP sub-message headers (read
// eagerly, since their length is known up front) and the body (read lazily
// on demand) without the parser needing to buffer an
// unbounded body itself.
type Request struct {
	Header     *RequestHeader
	RemoteAddr string

	br             *bufio.Reader
	reqHeaderBytes []byte
	resHeaderBytes []byte

	previewRead bool
	previewBuf  []byte
	previewIEOF bool
	bodyRead    bool
	bodyBuf     []byte

	fullBodyRead bool
	fullBodyBuf  []byte
}

// ReadRequest parses one ICAP request header from br and eagerly reads any
// encapsulated req-hdr/res-hdr byte ranges it declares, leaving the body
// section (if any) unread on br for the caller to stream via ReadPreview
// and ReadBody.
func ReadRequest(br *bufio.Reader, maxHeaderBytes int, remoteAddr string) (*Request, error) {
	h, err := ParseRequestHeader(br, maxHeaderBytes)
	if err != nil {
		return nil, err
	}

	req := &Request{Header: h, RemoteAddr: remoteAddr, br: br}

	for i, e := range h.Encapsulated {
		switch e.Section {
		case SectionReqHdr, SectionResHdr:
			length := sectionLength(h.Encapsulated, i)
			buf := make([]byte, length)
			if length > 0 {
				if _, err := io.ReadFull(br, buf); err != nil {
					return nil, &IoError{Err: err}
				}
			}
			if e.Section == SectionReqHdr {
				req.reqHeaderBytes = buf
			} else {
				req.resHeaderBytes = buf
			}
		}
	}

	return req, nil
}

// ReqHeaderBytes returns the raw req-hdr section, or nil if the request
// carried none.
func (r *Request) ReqHeaderBytes() []byte { return r.reqHeaderBytes }

// ResHeaderBytes returns the raw res-hdr section, or nil if the request
// carried none.
func (r *Request) ResHeaderBytes() []byte { return r.resHeaderBytes }

// ParseReqHTTP decodes the req-hdr section as an HTTP request, or returns
// (nil, nil) if the request carried no req-hdr.
func (r *Request) ParseReqHTTP() (*http.Request, error) {
	if len(r.reqHeaderBytes) == 0 {
		return nil, nil
	}
	return http.ReadRequest(bufio.NewReader(bytes.NewReader(r.reqHeaderBytes)))
}

// ParseResHTTP decodes the res-hdr section as an HTTP response, or returns
// (nil, nil) if the request carried no res-hdr.
func (r *Request) ParseResHTTP() (*http.Response, error) {
	if len(r.resHeaderBytes) == 0 {
		return nil, nil
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(r.resHeaderBytes)), nil)
}

// HasPreview reports whether the client announced a Preview size.
func (r *Request) HasPreview() bool { return r.Header.Preview != nil }

// ReadPreview reads the preview-phase chunked stream (only valid when
// HasPreview is true) and reports whether the terminating chunk carried
// "; ieof" — i.e. whether the preview bytes are the complete entity body.
// It is a no-op returning (nil, true, nil) if the request has no body
// section at all.
func (r *Request) ReadPreview() (data []byte, ieof bool, err error) {
	if r.previewRead {
		return r.previewBuf, r.previewIEOF, nil
	}
	r.previewRead = true

	_, hasBody := r.Header.BodySection()
	if !hasBody {
		r.previewIEOF = true
		return nil, true, nil
	}

	cr := newChunkedReader(r.br)
	buf, err := io.ReadAll(cr)
	if err != nil && err != io.EOF {
		if pe, ok := err.(*ProtocolError); ok {
			return nil, false, pe
		}
		return nil, false, NewProtocolError(StatusBadRequest, "malformed preview body: "+err.Error())
	}
	r.previewBuf = buf
	r.previewIEOF = cr.IEOF()
	return r.previewBuf, r.previewIEOF, nil
}

// ReadBody reads the remainder of the body (the chunked stream following a
// 100 Continue, or the entire body if no preview was announced) and caches
// it: a second call returns the same bytes instead of re-reading the
// now-drained connection.
func (r *Request) ReadBody() ([]byte, error) {
	if r.bodyRead {
		return r.bodyBuf, nil
	}
	r.bodyRead = true

	_, hasBody := r.Header.BodySection()
	if !hasBody {
		return nil, nil
	}

	cr := newChunkedReader(r.br)
	buf, err := io.ReadAll(cr)
	if err != nil && err != io.EOF {
		if pe, ok := err.(*ProtocolError); ok {
			return nil, pe
		}
		return nil, NewProtocolError(StatusBadRequest, "malformed body: "+err.Error())
	}
	r.bodyBuf = buf
	return r.bodyBuf, nil
}

// FullBody reads the complete body regardless of whether a preview was
// announced: if a preview was read and was not the full entity (no ieof),
// it reads and appends the continuation; otherwise it returns exactly what
// ReadPreview or ReadBody already produced. The assembled result is cached,
// so a modifier consuming the body during Modify and a later echo fallback
// both see the same bytes instead of the second caller getting nothing.
func (r *Request) FullBody() ([]byte, error) {
	if r.fullBodyRead {
		return r.fullBodyBuf, nil
	}

	var body []byte
	if r.HasPreview() {
		data, ieof, err := r.ReadPreview()
		if err != nil {
			return nil, err
		}
		if ieof {
			body = data
		} else {
			rest, err := r.ReadBody()
			if err != nil {
				return nil, err
			}
			body = append(data, rest...)
		}
	} else {
		var err error
		body, err = r.ReadBody()
		if err != nil {
			return nil, err
		}
	}

	r.fullBodyRead = true
	r.fullBodyBuf = body
	return body, nil
}
