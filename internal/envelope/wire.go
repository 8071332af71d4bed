package envelope

import "encoding/json"

// MaxEnvelopeBytes and MaxDataBytes are the size caps from spec §3: total
// envelope size and the "data" payload within it, respectively.
const (
	MaxEnvelopeBytes = 1 << 20       // 1 MiB
	MaxDataBytes     = 512 * (1 << 10) // 512 KiB
)

// Wire is the on-wire envelope: a JSON object with UTF-8 encoding, field
// names exactly as in spec §3. Optional fields are omitted rather than
// serialized as explicit null, matching the teacher envelope's omitempty
// discipline. Extra holds any top-level keys outside the six named fields,
// verbatim as raw JSON — spec §3/§4.1/§6 require unknown additional keys
// to be tolerated and carried through unchanged on every pass-through, not
// interpreted or dropped.
type Wire struct {
	Sender    string                 `json:"sender"`
	Elem      string                 `json:"elem"`
	Timestamp float64                `json:"timestamp,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ClientID  string                 `json:"client_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Extra     map[string]json.RawMessage `json:"-"`
}

// wireFields lists the six named top-level keys; anything else is an Extra
// key.
var wireFields = map[string]bool{
	"sender": true, "elem": true, "timestamp": true,
	"data": true, "client_id": true, "request_id": true,
}

// wireAlias mirrors Wire's named fields for delegating the known-field
// half of (un)marshaling to encoding/json, leaving Extra handled by hand.
type wireAlias struct {
	Sender    string                 `json:"sender"`
	Elem      string                 `json:"elem"`
	Timestamp float64                `json:"timestamp,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ClientID  string                 `json:"client_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// MarshalJSON emits the six named fields plus any Extra keys, merged into a
// single flat JSON object so unknown keys survive a parse-then-remarshal
// round trip (the shape every pass-through in internal/dispatch and
// internal/router performs).
func (w Wire) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(wireAlias{
		Sender: w.Sender, Elem: w.Elem, Timestamp: w.Timestamp,
		Data: w.Data, ClientID: w.ClientID, RequestID: w.RequestID,
	})
	if err != nil {
		return nil, err
	}
	if len(w.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(w.Extra)+6)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range w.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the six named fields and stashes every other
// top-level key in Extra, untouched.
func (w *Wire) UnmarshalJSON(data []byte) error {
	var a wireAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range wireFields {
		delete(raw, k)
	}

	*w = Wire{
		Sender: a.Sender, Elem: a.Elem, Timestamp: a.Timestamp,
		Data: a.Data, ClientID: a.ClientID, RequestID: a.RequestID,
	}
	if len(raw) > 0 {
		w.Extra = raw
	}
	return nil
}

// Size returns the marshaled size of w in bytes, or -1 if it cannot be
// marshaled (callers treat that as an oversize/malformed envelope).
func (w *Wire) Size() int {
	b, err := json.Marshal(w)
	if err != nil {
		return -1
	}
	return len(b)
}

// DataSize returns the marshaled size of w.Data alone, 0 if Data is absent.
func (w *Wire) DataSize() int {
	if w.Data == nil {
		return 0
	}
	b, err := json.Marshal(w.Data)
	if err != nil {
		return -1
	}
	return len(b)
}

// App is the application-side envelope used by peer libraries: same
// semantic fields as Wire, but Elem is replaced by a typed, closed Kind.
// Extra carries any unrecognized wire keys through ToWire/FromWire
// unchanged, same as Wire.Extra.
type App struct {
	Sender    Role
	Kind      Kind
	Timestamp float64
	Data      map[string]interface{}
	ClientID  string
	RequestID string
	Extra     map[string]json.RawMessage
}
