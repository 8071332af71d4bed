// Package dispatch implements the routing engine (C4): given a validated
// inbound wire envelope and its sender's transport identity, it decides
// which outbound envelopes go to which targets, per spec §4.4.
package dispatch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/NadimGhaznavi/hydra-router/internal/envelope"
	"github.com/NadimGhaznavi/hydra-router/internal/registry"
)

// Outbound pairs a target transport identity with the wire envelope to send
// it.
type Outbound struct {
	Target   string
	Envelope *envelope.Wire
}

// Dispatcher evaluates spec §4.4's five routing rules in order.
type Dispatcher struct {
	reg *registry.Registry
	log *zap.SugaredLogger

	// onRuleHit, when set, is called with the name of the rule that fired,
	// for internal/metrics to count dispatch outcomes.
	onRuleHit func(rule string)
}

// New constructs a Dispatcher bound to reg. log may be nil.
func New(reg *registry.Registry, log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{reg: reg, log: log}
}

// SetRuleHitHook installs a callback invoked with the name of the routing
// rule that fired for each Dispatch call.
func (d *Dispatcher) SetRuleHitHook(f func(rule string)) {
	d.onRuleHit = f
}

func (d *Dispatcher) hit(rule string) {
	if d.onRuleHit != nil {
		d.onRuleHit(rule)
	}
}

// Dispatch applies the ensure-registered rule and then the five routing
// rules of spec §4.4, in order, to a single validated inbound envelope from
// senderIdentity. It returns zero or more outbound envelopes.
func (d *Dispatcher) Dispatch(senderIdentity string, w *envelope.Wire) []Outbound {
	declaredRole := envelope.Role(w.Sender)

	// Ensure-registered rule: register unknown senders, touch known ones.
	// An envelope whose declared sender role disagrees with a previously
	// registered role is routed by the declared role and the disagreement
	// is logged — spec §4.4's own stated (and, per §9, adopted) design
	// choice.
	if prev, known := d.reg.Lookup(senderIdentity); known {
		if prev.Role != declaredRole {
			d.log.Warnw("dispatch: sender role disagreement",
				"identity", senderIdentity, "registered_role", prev.Role, "declared_role", declaredRole)
			d.reg.Register(senderIdentity, declaredRole)
		} else {
			d.reg.Touch(senderIdentity)
		}
	} else {
		d.reg.Register(senderIdentity, declaredRole)
	}

	switch {
	case w.Elem == string(envelope.KindHeartbeat):
		d.hit("heartbeat")
		return nil

	case w.Elem == string(envelope.KindClientRegistryRequest):
		d.hit("registry_query")
		return []Outbound{d.registryResponse(senderIdentity, w.RequestID)}

	case declaredRole.IsClientRole():
		d.hit("client_to_server")
		return d.routeFromClient(senderIdentity, w)

	case declaredRole.IsServerRole():
		d.hit("server_broadcast")
		return d.routeFromServer(senderIdentity, w)

	default:
		d.hit("discard")
		d.log.Warnw("dispatch: discarding envelope from non-peer sender role",
			"identity", senderIdentity, "role", declaredRole, "elem", w.Elem)
		return nil
	}
}

// buildOutbound wraps an envelope the dispatcher constructs by hand (as
// opposed to one merely forwarded verbatim) in a re-validation pass. A
// validation failure is logged at error level; the envelope is still
// returned and sent to the target.
func (d *Dispatcher) buildOutbound(target string, w *envelope.Wire) Outbound {
	if err := envelope.Validate(w); err != nil {
		d.log.Errorw("dispatch: router-constructed envelope failed validation", "target", target, "error", err)
	}
	return Outbound{Target: target, Envelope: w}
}

func (d *Dispatcher) registryResponse(requester, requestID string) Outbound {
	snap := d.reg.Snapshot()
	data := make(map[string]interface{}, len(snap))
	for id, entry := range snap {
		data[id] = map[string]interface{}{
			"role":          entry.Role,
			"last_heartbeat": entry.LastHeartbeat,
			"is_server":     entry.IsServer,
		}
	}
	return d.buildOutbound(requester, &envelope.Wire{
		Sender:    string(envelope.RoleHydraRouter),
		Elem:      string(envelope.KindClientRegistryResponse),
		Data:      data,
		RequestID: requestID,
	})
}

func (d *Dispatcher) routeFromClient(senderIdentity string, w *envelope.Wire) []Outbound {
	serverID, ok := d.reg.ServerIdentity()
	if !ok {
		return []Outbound{d.buildOutbound(senderIdentity, &envelope.Wire{
			Sender: string(envelope.RoleHydraRouter),
			Elem:   string(envelope.KindError),
			Data: map[string]interface{}{
				"error":            "no_server_connected",
				"original_request": w.Elem,
				"message":          fmt.Sprintf("no server connected to handle %q", w.Elem),
			},
			RequestID: w.RequestID,
		})}
	}
	return []Outbound{{Target: serverID, Envelope: w}}
}

func (d *Dispatcher) routeFromServer(senderIdentity string, w *envelope.Wire) []Outbound {
	targets := d.reg.ClientsToBroadcast(senderIdentity)
	out := make([]Outbound, 0, len(targets))
	for _, t := range targets {
		out = append(out, Outbound{Target: t, Envelope: w})
	}
	return out
}
