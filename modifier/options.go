package modifier

import (
	"strconv"
	"strings"

	"github.com/bitz-icapd/icapd/icap"
)

// OptionsConfig carries the server-wide defaults announced by the built-in
// OPTIONS handler, merged with whatever OptionsHints the
// matched chain's modifiers contribute. Grounded on the two OPTIONS
// responses ppomes-TokenShield hand-builds in icap-server-go/main.go and
// unified-tokenizer/internal/icap/icap.go, generalized into one
// configurable builder instead of a fixed string.
type OptionsConfig struct {
	ServiceName    string
	OptionsTTL     int // seconds
	MaxConnections int
	PreviewBytes   int
}

// DefaultOptionsConfig mirrors the fields both TokenShield OPTIONS
// responses hard-coded.
func DefaultOptionsConfig() OptionsConfig {
	return OptionsConfig{
		ServiceName:    "bitz-icapd",
		OptionsTTL:     3600,
		MaxConnections: 100,
		PreviewBytes:   0,
	}
}

// BuildOptionsResponse synthesizes the OPTIONS document announcing method
// (a Methods value such as "REQMOD" or "REQMOD, RESPMOD") for the chain
// registered at path: Methods, Service, Max-Connections, Options-TTL,
// Preview, Transfer-Preview, Transfer-Complete, and Allow: 204, plus
// Transfer-Ignore when a chained modifier supplies one.
func BuildOptionsResponse(cfg OptionsConfig, method string, chain []Modifier) *icap.Response {
	resp := icap.NewResponse(icap.StatusOK)
	h := resp.Header.Header

	hints := mergeHints(cfg, chain)
	h.Set("Methods", method)
	h.Set("Service", serviceLabel(cfg.ServiceName, chain))
	h.Set("Max-Connections", strconv.Itoa(hints.MaxConnections))
	h.Set("Options-TTL", strconv.Itoa(cfg.OptionsTTL))
	h.Set("Allow", "204")

	h.Set("Preview", strconv.Itoa(hints.PreviewBytes))
	if len(hints.TransferPreview) > 0 {
		h.Set("Transfer-Preview", strings.Join(hints.TransferPreview, ", "))
	} else {
		h.Set("Transfer-Preview", "*")
	}
	if len(hints.TransferIgnore) > 0 {
		h.Set("Transfer-Ignore", strings.Join(hints.TransferIgnore, ","))
	}
	h.Set("Transfer-Complete", strings.Join(hints.TransferComplete, ","))

	return resp
}

func serviceLabel(name string, chain []Modifier) string {
	if len(chain) == 0 {
		return name
	}
	names := make([]string, len(chain))
	for i, m := range chain {
		names[i] = m.Name()
	}
	return name + " (" + strings.Join(names, ", ") + ")"
}

// mergeHints folds every chained modifier's OptionsHints (for those that
// implement OptionsDescriber) over cfg's defaults. A later modifier in the
// chain overrides an earlier one's non-zero fields.
func mergeHints(cfg OptionsConfig, chain []Modifier) OptionsHints {
	hints := OptionsHints{
		PreviewBytes:   cfg.PreviewBytes,
		MaxConnections: cfg.MaxConnections,
	}
	for _, m := range chain {
		d, ok := m.(OptionsDescriber)
		if !ok {
			continue
		}
		h := d.OptionsHints()
		if h.PreviewBytes != 0 {
			hints.PreviewBytes = h.PreviewBytes
		}
		if len(h.TransferPreview) > 0 {
			hints.TransferPreview = h.TransferPreview
		}
		if len(h.TransferIgnore) > 0 {
			hints.TransferIgnore = h.TransferIgnore
		}
		if len(h.TransferComplete) > 0 {
			hints.TransferComplete = h.TransferComplete
		}
		if h.MaxConnections != 0 {
			hints.MaxConnections = h.MaxConnections
		}
	}
	return hints
}
