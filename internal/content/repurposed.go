package content

import (
	"bytes"
	"encoding/json"
)

// Repurposed maps platforms to their rendered content, remembering the order
// in which platforms were first added.
type Repurposed struct {
	order []Platform
	items map[Platform][]PlatformContent
}

// NewRepurposed returns an empty mapping.
func NewRepurposed() *Repurposed {
	return &Repurposed{items: make(map[Platform][]PlatformContent)}
}

// Add appends items under platform, registering the platform on first use.
func (r *Repurposed) Add(p Platform, items ...PlatformContent) {
	if _, ok := r.items[p]; !ok {
		r.order = append(r.order, p)
		r.items[p] = []PlatformContent{}
	}
	r.items[p] = append(r.items[p], items...)
}

// Set replaces the items of an already registered platform.
func (r *Repurposed) Set(p Platform, items []PlatformContent) {
	if _, ok := r.items[p]; !ok {
		r.order = append(r.order, p)
	}
	r.items[p] = items
}

// Platforms returns the platforms in insertion order.
func (r *Repurposed) Platforms() []Platform {
	out := make([]Platform, len(r.order))
	copy(out, r.order)
	return out
}

// Items returns the content slice for a platform. The slice is shared, which
// lets the compliance stage update status fields in place.
func (r *Repurposed) Items(p Platform) []PlatformContent {
	return r.items[p]
}

// Len returns the total number of content items across platforms.
func (r *Repurposed) Len() int {
	n := 0
	for _, items := range r.items {
		n += len(items)
	}
	return n
}

// MarshalJSON encodes the mapping as an object whose keys keep insertion order.
func (r *Repurposed) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(p))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.items[p])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
