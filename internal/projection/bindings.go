package projection

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bindings is the shape-polymorphic column->value map carried by an Event.
// Per SPEC_FULL.md §9 ("Dynamic column shapes"), this is deliberately not
// one concrete struct per event kind: the ledger can add or remove columns
// for a given event kind without requiring a schema change here. Key order
// is preserved because it is the order SQL columns are generated in, which
// keeps generated statements stable and diffable across runs.
type Bindings struct {
	keys   []string
	values map[string]any
}

// NewBindings returns an empty ordered binding set.
func NewBindings() *Bindings {
	return &Bindings{values: make(map[string]any)}
}

// ParseBindings decodes a JSON object into an order-preserving Bindings.
// encoding/json's map decoding does not preserve key order, so this walks
// the token stream directly; no library in the dependency pack offers
// order-preserving generic JSON object decoding, so this one piece is
// stdlib (see DESIGN.md).
func ParseBindings(raw string) (*Bindings, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("bindings: read opening token: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("bindings: expected JSON object, got %v", tok)
	}

	b := NewBindings()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("bindings: read key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("bindings: non-string key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("bindings: decode value for %q: %w", key, err)
		}
		val, err := decodeScalar(raw)
		if err != nil {
			return nil, fmt.Errorf("bindings: value for %q: %w", key, err)
		}
		b.Set(key, val)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("bindings: read closing token: %w", err)
	}
	return b, nil
}

func decodeScalar(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return v, nil
	}
}

// Set assigns a value, appending the key to the iteration order if new.
func (b *Bindings) Set(key string, val any) {
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = val
}

// Get returns the value for key and whether it was present.
func (b *Bindings) Get(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Delete removes key, preserving the order of the remaining keys.
func (b *Bindings) Delete(key string) {
	if _, ok := b.values[key]; !ok {
		return
	}
	delete(b.values, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the binding keys in insertion order.
func (b *Bindings) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Len returns the number of bindings.
func (b *Bindings) Len() int {
	return len(b.keys)
}

// Clone returns a deep copy safe for independent mutation.
func (b *Bindings) Clone() *Bindings {
	c := &Bindings{
		keys:   append([]string(nil), b.keys...),
		values: make(map[string]any, len(b.values)),
	}
	for k, v := range b.values {
		c.values[k] = v
	}
	return c
}

// StringValue returns the binding as a string, or "" if absent or not a string.
func (b *Bindings) StringValue(key string) string {
	v, ok := b.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Int64Value returns the binding as an int64, or 0 if absent or not numeric.
func (b *Bindings) Int64Value(key string) int64 {
	v, ok := b.Get(key)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	default:
		return 0
	}
}

// BoolValue returns the binding as a bool, or false if absent or not boolean.
func (b *Bindings) BoolValue(key string) bool {
	v, ok := b.Get(key)
	if !ok {
		return false
	}
	v2, _ := v.(bool)
	return v2
}
