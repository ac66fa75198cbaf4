package handler

import (
	"io"

	"github.com/bitz-icapd/icapd/icap"
	"github.com/bitz-icapd/icapd/modifier"
)

// runChain drives req through chain per the preview/modify protocol and
// its tie-break rule: invoked in registration order, the
// first non-204 final response wins; if every modifier returns 204 (or has
// nothing to say), the caller is told so it can honor Allow: 204 or echo
// the input back unmodified.
//
// During the preview phase the preview bytes are read first, then each
// modifier may answer 204 or nil (decline, let the next modifier weigh in),
// 100 Continue (ask for the rest of the body before deciding — this stops
// the preview loop), or any other status (a final response that
// short-circuits the transaction immediately). A chain that declined
// entirely returns without calling Modify when the preview carried ieof or
// the client allows 204. Otherwise runChain writes the interim
// "100 Continue" to w (skipped when the preview carried ieof) and proceeds
// to Modify, which pulls the remainder of the body on demand.
func runChain(req *icap.Request, chain []modifier.Modifier, w io.Writer) (resp *icap.Response, allDeclined bool, err error) {
	if req.HasPreview() {
		_, ieof, perr := req.ReadPreview()
		if perr != nil {
			return nil, false, perr
		}

		wantsRest := false
		for _, m := range chain {
			r, perr := m.Preview(req)
			if perr != nil {
				return nil, false, perr
			}
			if r == nil || r.Header.Status == icap.StatusNoContent {
				continue // declined; let the next modifier's Preview weigh in
			}
			if r.Header.Status == icap.StatusContinue {
				wantsRest = true
				break // this modifier wants the rest of the body before deciding
			}
			return r, false, nil // a full final response short-circuits now
		}

		if !wantsRest && (ieof || req.Header.Allow204) {
			// The whole chain declined during preview. If the preview was
			// the entire entity there's nothing more Modify could learn
			// from, and if the client allows 204 there's no need to pull
			// the rest of the body across the wire just to decline again.
			// The caller decides between a bare 204 and echoing the input
			// back, so no response is built here.
			return nil, true, nil
		}

		if !ieof {
			if err := icap.WriteContinue(w); err != nil {
				return nil, false, err
			}
		}
	}

	for _, m := range chain {
		r, merr := m.Modify(req)
		if merr != nil {
			return nil, false, merr
		}
		if r != nil && r.Header.Status != icap.StatusNoContent {
			return r, false, nil
		}
	}

	return nil, true, nil
}
