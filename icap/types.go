package icap

import "fmt"

// Method is one of the three ICAP/1.0 methods this server understands.
type Method string

const (
	MethodOptions Method = "OPTIONS"
	MethodReqmod  Method = "REQMOD"
	MethodRespmod Method = "RESPMOD"
)

// EncapsulatedSection names one of the six section kinds RFC 3507 allows
// in an Encapsulated header.
type EncapsulatedSection string

const (
	SectionReqHdr   EncapsulatedSection = "req-hdr"
	SectionReqBody  EncapsulatedSection = "req-body"
	SectionResHdr   EncapsulatedSection = "res-hdr"
	SectionResBody  EncapsulatedSection = "res-body"
	SectionOptBody  EncapsulatedSection = "opt-body"
	SectionNullBody EncapsulatedSection = "null-body"
)

var validEncapsulatedSections = map[EncapsulatedSection]bool{
	SectionReqHdr:   true,
	SectionReqBody:  true,
	SectionResHdr:   true,
	SectionResBody:  true,
	SectionOptBody:  true,
	SectionNullBody: true,
}

// EncapsulatedEntry is one (section, offset) pair from an Encapsulated
// header, in the order they appeared on the wire.
type EncapsulatedEntry struct {
	Section EncapsulatedSection
	Offset  int
}

// RequestHeader is the parsed ICAP request line plus header block.
type RequestHeader struct {
	Method       Method
	URI          string
	Version      string
	Header       *Header
	Encapsulated []EncapsulatedEntry
	Preview      *int
	Allow204     bool
}

// BodySection reports the terminal encapsulation entry, if any, and whether
// it names an actual body (as opposed to null-body, which names none).
func (h *RequestHeader) BodySection() (section EncapsulatedSection, hasBody bool) {
	if len(h.Encapsulated) == 0 {
		return "", false
	}
	last := h.Encapsulated[len(h.Encapsulated)-1]
	switch last.Section {
	case SectionReqBody, SectionResBody, SectionOptBody:
		return last.Section, true
	default:
		return last.Section, false
	}
}

// sectionLength returns the byte length of Encapsulated[i], computed from
// the next entry's offset. Only meaningful for non-terminal (*-hdr)
// entries; the terminal body entry has no declared length, since it is
// chunk-encoded and self-delimiting.
func sectionLength(entries []EncapsulatedEntry, i int) int {
	if i+1 < len(entries) {
		return entries[i+1].Offset - entries[i].Offset
	}
	return 0
}

// ResponseHeader is the ICAP status line plus header block.
type ResponseHeader struct {
	Status       int
	Reason       string
	Version      string
	Header       *Header
	Encapsulated []EncapsulatedEntry
}

// Recognized ICAP/HTTP-flavored status codes.
const (
	StatusContinue            = 100
	StatusOK                  = 200
	StatusNoContent           = 204
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusRequestTimeout      = 408
	StatusRequestTooLarge     = 414
	StatusServerError         = 500
	StatusNotImplemented      = 501
	StatusVersionNotSupported = 505
)

var reasonPhrases = map[int]string{
	StatusContinue:            "Continue",
	StatusOK:                  "OK",
	StatusNoContent:           "No Content",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusRequestTimeout:      "Request Timeout",
	StatusRequestTooLarge:     "Request Entity Too Large",
	StatusServerError:         "Server Error",
	StatusNotImplemented:      "Not Implemented",
	StatusVersionNotSupported: "ICAP Version Not Supported",
}

// ReasonPhrase returns the canonical reason phrase for status, or a
// generic placeholder if status is not one of the recognized constants.
func ReasonPhrase(status int) string {
	if r, ok := reasonPhrases[status]; ok {
		return r
	}
	return fmt.Sprintf("Status %d", status)
}

// NewResponseHeader builds a ResponseHeader for status with an empty
// header block and the canonical reason phrase.
func NewResponseHeader(status int) *ResponseHeader {
	return &ResponseHeader{
		Status:  status,
		Reason:  ReasonPhrase(status),
		Version: "1.0",
		Header:  NewHeader(),
	}
}

// Payload carries the up-to-four byte sections a Response may encapsulate.
// Any subset may be empty; at most one of ReqBody/ResBody is ever
// populated for a given message. There is no field for an opt-body.
type Payload struct {
	ReqHeader []byte
	ReqBody   []byte
	ResHeader []byte
	ResBody   []byte
}
