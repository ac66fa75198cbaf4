// Package stub ports original_source/modules/modpy/py.cpp's unfinished
// behavior: preview() always answers 100 Continue, modify() always
// answers 501 Not Implemented. The original left its embedded scripting
// hook unfinished (the TODO above Py::modify notes the PyCapsule plumbing
// was never completed); this module reproduces that exact placeholder
// behavior as a statically registered Modifier rather than carrying over
// an embedded interpreter, since scripted modules are out of scope for
// this core.
package stub

import "github.com/bitz-icapd/icapd/icap"

// Stub is a Modifier that never actually adapts anything: it asks for the
// full body on preview, then reports 501 once it has it.
type Stub struct {
	name string
}

// New returns a Stub registered under name.
func New(name string) *Stub {
	if name == "" {
		name = "stub"
	}
	return &Stub{name: name}
}

// Name implements modifier.Modifier.
func (s *Stub) Name() string { return s.name }

// Preview always requests the remainder of the body.
func (s *Stub) Preview(req *icap.Request) (*icap.Response, error) {
	return icap.NewResponse(icap.StatusContinue), nil
}

// Modify always reports that adaptation is unimplemented.
func (s *Stub) Modify(req *icap.Request) (*icap.Response, error) {
	return icap.NewResponse(icap.StatusNotImplemented), nil
}
