// Package bundle is the structured-record format exchanged with the billing
// service and the UI host. Values keep their wire width: 32-bit integers are
// stored as int32, 64-bit integers as int64.
package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Wire keys used by the billing service protocol.
const (
	KeyResponseCode      = "RESPONSE_CODE"
	KeyDetailsList       = "DETAILS_LIST"
	KeyItemIDList        = "ITEM_ID_LIST"
	KeyPurchaseItemList  = "INAPP_PURCHASE_ITEM_LIST"
	KeyPurchaseDataList  = "INAPP_PURCHASE_DATA_LIST"
	KeySignatureList     = "INAPP_DATA_SIGNATURE_LIST"
	KeyContinuationToken = "INAPP_CONTINUATION_TOKEN"
	KeyBuyIntent         = "BUY_INTENT"
	KeyPurchaseData      = "INAPP_PURCHASE_DATA"
	KeyPurchaseSignature = "INAPP_DATA_SIGNATURE"
	KeyResultExtras      = "RESULT_EXTRAS"
)

// Bundle is an opaque key/value record.
type Bundle map[string]any

// New creates an empty bundle
func New() Bundle {
	return Bundle{}
}

// Has reports whether key is present with a non-nil value.
func (b Bundle) Has(key string) bool {
	if b == nil {
		return false
	}
	v, ok := b[key]
	return ok && v != nil
}

// Get returns the raw value stored under key.
func (b Bundle) Get(key string) any {
	if b == nil {
		return nil
	}
	return b[key]
}

// IsEmpty reports whether the bundle carries no fields.
func (b Bundle) IsEmpty() bool {
	return len(b) == 0
}

func (b Bundle) PutInt(key string, v int32) Bundle {
	b[key] = v
	return b
}

func (b Bundle) PutLong(key string, v int64) Bundle {
	b[key] = v
	return b
}

func (b Bundle) PutString(key, v string) Bundle {
	b[key] = v
	return b
}

func (b Bundle) PutStrings(key string, v []string) Bundle {
	b[key] = v
	return b
}

// PutBundle embeds one record inside another.
func (b Bundle) PutBundle(key string, v Bundle) Bundle {
	b[key] = v
	return b
}

// Put stores an arbitrary value, such as an opaque launch token.
func (b Bundle) Put(key string, v any) Bundle {
	b[key] = v
	return b
}

// String returns the string stored under key.
func (b Bundle) String(key string) (string, bool) {
	s, ok := b.Get(key).(string)
	return s, ok
}

// Int returns the 32-bit integer stored under key.
func (b Bundle) Int(key string) (int32, bool) {
	v, ok := b.Get(key).(int32)
	return v, ok
}

// Long returns the 64-bit integer stored under key.
func (b Bundle) Long(key string) (int64, bool) {
	v, ok := b.Get(key).(int64)
	return v, ok
}

// Strings returns the string list stored under key. Lists decoded from JSON
// arrive as []any and are converted when every element is a string.
func (b Bundle) Strings(key string) ([]string, bool) {
	switch v := b.Get(key).(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// Bundle returns the record embedded under key.
func (b Bundle) Bundle(key string) (Bundle, bool) {
	switch v := b.Get(key).(type) {
	case Bundle:
		return v, true
	case map[string]any:
		return Bundle(v), true
	default:
		return nil, false
	}
}

// FromJSON decodes a JSON object into a bundle. Integral numbers become int64
// (the wire cannot tell the two widths apart), other numbers float64, nested
// objects become bundles.
func FromJSON(data []byte) (Bundle, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	return convertMap(raw), nil
}

func convertMap(m map[string]any) Bundle {
	out := make(Bundle, len(m))
	for k, v := range m {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil && !math.IsInf(f, 0) {
			return f
		}
		return t.String()
	case map[string]any:
		return convertMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = convertValue(e)
		}
		return out
	default:
		return v
	}
}
