package envelope

import "fmt"

// ErrUnknownKind is returned by FromWire when a wire envelope's "elem" does
// not map to any Kind in the closed enum. The adapter never fabricates a
// generic kind for an unmapped elem — spec §4.2 requires the conversion to
// fail and be surfaced to the caller.
type ErrUnknownKind struct {
	Elem string
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("envelope adapter: unknown elem %q has no matching Kind", e.Elem)
}

// kindToElem is the fixed bijection between the application-facing Kind
// enum and the wire-level "elem" strings named in spec §6. It is built once
// and never mutated after init.
var kindToElem = map[Kind]string{
	KindHeartbeat:              "heartbeat",
	KindSquareRequest:          "square_request",
	KindSquareResponse:         "square_response",
	KindClientRegistryRequest:  "client_registry_request",
	KindClientRegistryResponse: "client_registry_response",
	KindStartSimulation:        "start_simulation",
	KindStopSimulation:         "stop_simulation",
	KindPauseSimulation:        "pause_simulation",
	KindResumeSimulation:       "resume_simulation",
	KindResetSimulation:        "reset_simulation",
	KindGetSimulationStatus:    "get_simulation_status",
	KindStatusUpdate:           "status_update",
	KindSimulationStarted:      "simulation_started",
	KindSimulationStopped:      "simulation_stopped",
	KindSimulationPaused:       "simulation_paused",
	KindSimulationResumed:      "simulation_resumed",
	KindSimulationReset:        "simulation_reset",
	KindError:                  "error",
}

var elemToKind map[string]Kind

func init() {
	elemToKind = make(map[string]Kind, len(kindToElem))
	for k, e := range kindToElem {
		elemToKind[e] = k
	}
}

// ParseKind looks up the Kind for a wire "elem" string. ok is false if elem
// is not in the closed enum.
func ParseKind(elem string) (kind Kind, ok bool) {
	kind, ok = elemToKind[elem]
	return kind, ok
}

// Valid reports whether k is one of the canonical kinds in the bijection.
func (k Kind) Valid() bool {
	_, ok := kindToElem[k]
	return ok
}

// ToWire converts an application envelope to its wire form. ToWire is
// total: every valid App value produces a Wire value. self is the role the
// producing peer (or router) declares as "sender". Absent optional fields
// are omitted rather than written as explicit nulls (handled by Wire's
// omitempty tags at marshal time).
func ToWire(app *App, self Role) *Wire {
	return &Wire{
		Sender:    string(self),
		Elem:      kindToElem[app.Kind],
		Timestamp: app.Timestamp,
		Data:      app.Data,
		ClientID:  app.ClientID,
		RequestID: app.RequestID,
		Extra:     app.Extra,
	}
}

// FromWire converts a wire envelope to its application form, the inverse of
// ToWire. It fails with *ErrUnknownKind if w.Elem is not in the closed
// enum — the adapter does not coerce an unmapped elem into a generic kind.
func FromWire(w *Wire) (*App, error) {
	kind, ok := ParseKind(w.Elem)
	if !ok {
		return nil, &ErrUnknownKind{Elem: w.Elem}
	}
	return &App{
		Sender:    Role(w.Sender),
		Kind:      kind,
		Timestamp: w.Timestamp,
		Data:      w.Data,
		ClientID:  w.ClientID,
		RequestID: w.RequestID,
		Extra:     w.Extra,
	}, nil
}
