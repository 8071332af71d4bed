package envelope

import (
	"encoding/json"
	"fmt"
)

// Diagnostic names the offending field, what was expected, what was
// actually seen, and a free-form hint for the operator. This is the
// "structured diagnostic" spec §4.1 and §7 require for validation and
// parse failures.
type Diagnostic struct {
	Field    string
	Expected string
	Actual   string
	Hint     string
}

// ValidationError wraps a Diagnostic as an error.
type ValidationError struct {
	Diagnostic
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("envelope validation failed: field=%q expected=%q actual=%q hint=%q",
		e.Field, e.Expected, e.Actual, e.Hint)
}

func rejectf(field, expected, actual, hint string) error {
	return &ValidationError{Diagnostic{Field: field, Expected: expected, Actual: actual, Hint: hint}}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// rawTypeName decodes raw into a generic interface{} purely to report its
// JSON type in a Diagnostic; the decoded value itself is discarded.
func rawTypeName(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "unparseable"
	}
	return typeName(v)
}

// ParseAndValidate decodes raw JSON bytes into a raw object, checks it field
// by field against spec §4.1's rules (producing a precise Diagnostic rather
// than a bare json.Unmarshal error for shape mismatches), and returns a
// well-formed *Wire on success, with any top-level keys outside the six
// named fields preserved verbatim in Wire.Extra (spec §3/§4.1/§6). The total
// envelope cap is checked first, against the raw bytes, to bound
// serialization effort before any further parsing; the data cap is checked
// in ValidateRaw against the raw "data" bytes, after sender, elem and
// timestamp have been validated.
func ParseAndValidate(raw []byte) (*Wire, error) {
	if len(raw) > MaxEnvelopeBytes {
		return nil, rejectf("envelope", fmt.Sprintf("<= %d bytes", MaxEnvelopeBytes), fmt.Sprintf("%d bytes", len(raw)),
			"total envelope size exceeds the 1 MiB cap")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, rejectf("envelope", "JSON object", "unparseable bytes", err.Error())
	}
	return ValidateRaw(obj)
}

// ValidateRaw validates an already-decoded JSON object (top-level keys as
// raw JSON) against spec §4.1's rules and returns the corresponding *Wire.
// Any key outside the six named fields is copied into Wire.Extra untouched,
// rather than being interpreted or dropped. Pure: no I/O, no mutation of
// obj, no shared state.
func ValidateRaw(obj map[string]json.RawMessage) (*Wire, error) {
	if obj == nil {
		return nil, rejectf("envelope", "mapping", "nil", "envelope must be a JSON object")
	}

	w := &Wire{}

	senderRaw, ok := obj["sender"]
	if !ok {
		return nil, rejectf("sender", "non-empty role string", "missing", "sender is required")
	}
	var sender string
	if err := json.Unmarshal(senderRaw, &sender); err != nil {
		return nil, rejectf("sender", "string", rawTypeName(senderRaw), "sender must be a string role tag")
	}
	if !Role(sender).Valid() {
		return nil, rejectf("sender", "one of HydraClient|HydraServer|SimpleClient|SimpleServer|HydraRouter",
			sender, "sender must be one of the closed peer-role tags")
	}
	w.Sender = sender

	elemRaw, ok := obj["elem"]
	if !ok {
		return nil, rejectf("elem", "non-empty string", "missing", "elem is required")
	}
	var elem string
	if err := json.Unmarshal(elemRaw, &elem); err != nil {
		return nil, rejectf("elem", "string", rawTypeName(elemRaw), "elem must be a non-empty string naming the envelope kind")
	}
	if elem == "" {
		return nil, rejectf("elem", "non-empty string", "empty string", "elem must not be empty")
	}
	w.Elem = elem

	if tsRaw, present := obj["timestamp"]; present {
		var ts float64
		if err := json.Unmarshal(tsRaw, &ts); err != nil {
			return nil, rejectf("timestamp", "number", rawTypeName(tsRaw), "timestamp must be seconds-since-epoch")
		}
		if ts < 0 {
			return nil, rejectf("timestamp", ">= 0", fmt.Sprintf("%v", ts), "timestamp must be non-negative")
		}
		w.Timestamp = ts
	}

	if dataRaw, present := obj["data"]; present {
		var data map[string]interface{}
		if err := json.Unmarshal(dataRaw, &data); err != nil {
			return nil, rejectf("data", "object", rawTypeName(dataRaw), "data must be a mapping of string keys to JSON values")
		}
		if len(dataRaw) > MaxDataBytes {
			return nil, rejectf("data", fmt.Sprintf("<= %d bytes", MaxDataBytes), fmt.Sprintf("%d bytes", len(dataRaw)),
				"data payload exceeds the 512 KiB cap")
		}
		w.Data = data
	}

	if cidRaw, present := obj["client_id"]; present {
		var cid string
		if err := json.Unmarshal(cidRaw, &cid); err != nil {
			return nil, rejectf("client_id", "string", rawTypeName(cidRaw), "client_id must be a non-empty string")
		}
		if cid == "" {
			return nil, rejectf("client_id", "non-empty string", "empty string", "client_id must be omitted rather than empty")
		}
		w.ClientID = cid
	}

	if ridRaw, present := obj["request_id"]; present {
		var rid string
		if err := json.Unmarshal(ridRaw, &rid); err != nil {
			return nil, rejectf("request_id", "string", rawTypeName(ridRaw), "request_id must be a non-empty string")
		}
		if rid == "" {
			return nil, rejectf("request_id", "non-empty string", "empty string", "request_id must be omitted rather than empty")
		}
		w.RequestID = rid
	}

	for k, v := range obj {
		if wireFields[k] {
			continue
		}
		if w.Extra == nil {
			w.Extra = make(map[string]json.RawMessage, len(obj)-len(wireFields))
		}
		w.Extra[k] = v
	}

	return w, nil
}

// Validate re-checks an already-constructed *Wire against the same rules
// ValidateRaw applies. Used by internal/dispatch to re-validate the
// envelopes it builds by hand (client_registry_response, error) before
// handing them to the transport; dispatch logs a failure but does not
// drop the envelope.
func Validate(w *Wire) error {
	if w == nil {
		return rejectf("envelope", "mapping", "nil", "envelope must be non-nil")
	}
	b, err := json.Marshal(w)
	if err != nil {
		return rejectf("envelope", "JSON-serializable", "unserializable", err.Error())
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return rejectf("envelope", "JSON object", "unparseable", err.Error())
	}
	_, verr := ValidateRaw(obj)
	return verr
}
