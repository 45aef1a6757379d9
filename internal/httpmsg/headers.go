package httpmsg

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Headers is an ordered, case-insensitive map from header name to a set of
// string values: duplicate header lines collapse into a value set that
// preserves insertion order, and the name comparison is always
// case-insensitive.
type Headers struct {
	order   []string          // canonical (first-seen) names, insertion order
	display map[string]string // lower(name) -> first-seen casing
	values  map[string][]string
}

// NewHeaders returns an empty header set.
func NewHeaders() *Headers {
	return &Headers{
		display: make(map[string]string),
		values:  make(map[string][]string),
	}
}

func canon(name string) string {
	return strings.ToLower(name)
}

// Add appends value to name's value set, preserving the order values
// arrived in. The first casing seen for a name is kept as its display
// casing.
func (h *Headers) Add(name, value string) {
	key := canon(name)
	if _, ok := h.display[key]; !ok {
		h.display[key] = name
		h.order = append(h.order, key)
	}
	h.values[key] = append(h.values[key], value)
}

// Set replaces name's value set with a single value.
func (h *Headers) Set(name, value string) {
	key := canon(name)
	if _, ok := h.display[key]; !ok {
		h.display[key] = name
		h.order = append(h.order, key)
	} else {
		h.display[key] = name
	}
	h.values[key] = []string{value}
}

// Del removes name entirely.
func (h *Headers) Del(name string) {
	key := canon(name)
	delete(h.values, key)
	delete(h.display, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Get returns the first value for name, or "" if absent.
func (h *Headers) Get(name string) string {
	vs := h.values[canon(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for name in arrival order, or nil if absent.
func (h *Headers) Values(name string) []string {
	return h.values[canon(name)]
}

// Has reports whether name was set at all.
func (h *Headers) Has(name string) bool {
	_, ok := h.values[canon(name)]
	return ok
}

// Names returns every header name in first-seen order, with its
// originally-observed casing.
func (h *Headers) Names() []string {
	names := make([]string, len(h.order))
	for i, key := range h.order {
		names[i] = h.display[key]
	}
	return names
}

// ContainsToken reports whether any value of the comma-separated header
// name contains token, compared case-insensitively, per RFC 7230 §7
// list syntax (used for Connection: Upgrade and Upgrade: websocket).
func (h *Headers) ContainsToken(name, token string) bool {
	for _, v := range h.Values(name) {
		if httpguts.HeaderValuesContainsToken([]string{v}, token) {
			return true
		}
	}
	return false
}
