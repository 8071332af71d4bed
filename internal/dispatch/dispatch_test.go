package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NadimGhaznavi/hydra-router/internal/envelope"
	"github.com/NadimGhaznavi/hydra-router/internal/registry"
)

func TestHeartbeatProducesNoOutbound(t *testing.T) {
	reg := registry.New(nil)
	d := New(reg, nil)

	out := d.Dispatch("c1", &envelope.Wire{Sender: "SimpleClient", Elem: "heartbeat"})
	assert.Empty(t, out)

	p, ok := reg.Lookup("c1")
	require.True(t, ok)
	assert.WithinDuration(t, p.LastHeartbeat, p.LastHeartbeat, 0)
}

func TestClientRequestForwardedToServer(t *testing.T) {
	reg := registry.New(nil)
	reg.Register("s1", envelope.RoleSimpleServer)
	d := New(reg, nil)

	req := &envelope.Wire{Sender: "SimpleClient", Elem: "square_request", RequestID: "r1", Data: map[string]interface{}{"number": 7.0}}
	out := d.Dispatch("c1", req)

	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].Target)
	assert.Equal(t, req, out[0].Envelope)
}

func TestClientRequestNoServerProducesError(t *testing.T) {
	reg := registry.New(nil)
	d := New(reg, nil)

	req := &envelope.Wire{Sender: "SimpleClient", Elem: "square_request", RequestID: "r2"}
	out := d.Dispatch("c1", req)

	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].Target)
	assert.Equal(t, "error", out[0].Envelope.Elem)
	assert.Equal(t, string(envelope.RoleHydraRouter), out[0].Envelope.Sender)
	assert.Equal(t, "r2", out[0].Envelope.RequestID)
	assert.Equal(t, "no_server_connected", out[0].Envelope.Data["error"])
}

func TestServerBroadcastReachesAllClientsExceptSender(t *testing.T) {
	reg := registry.New(nil)
	reg.Register("s1", envelope.RoleHydraServer)
	reg.Register("c1", envelope.RoleHydraClient)
	reg.Register("c2", envelope.RoleHydraClient)
	reg.Register("c3", envelope.RoleHydraClient)
	d := New(reg, nil)

	msg := &envelope.Wire{Sender: "HydraServer", Elem: "status_update", Data: map[string]interface{}{"phase": "warm"}}
	out := d.Dispatch("s1", msg)

	require.Len(t, out, 3)
	var targets []string
	for _, o := range out {
		targets = append(targets, o.Target)
		assert.Equal(t, msg, o.Envelope)
	}
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, targets)
}

func TestServerBroadcastEmptySetProducesNoOutbound(t *testing.T) {
	reg := registry.New(nil)
	reg.Register("s1", envelope.RoleHydraServer)
	d := New(reg, nil)

	out := d.Dispatch("s1", &envelope.Wire{Sender: "HydraServer", Elem: "status_update"})
	assert.Empty(t, out)
}

func TestRegistryQueryPreservesRequestID(t *testing.T) {
	reg := registry.New(nil)
	reg.Register("c1", envelope.RoleSimpleClient)
	d := New(reg, nil)

	out := d.Dispatch("c1", &envelope.Wire{Sender: "SimpleClient", Elem: "client_registry_request", RequestID: "rq1"})
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].Target)
	assert.Equal(t, "rq1", out[0].Envelope.RequestID)
	assert.Equal(t, "client_registry_response", out[0].Envelope.Elem)
	assert.Contains(t, out[0].Envelope.Data, "c1")
}

func TestDiscardFromNonPeerSender(t *testing.T) {
	reg := registry.New(nil)
	d := New(reg, nil)

	out := d.Dispatch("r1", &envelope.Wire{Sender: "HydraRouter", Elem: "status_update"})
	assert.Empty(t, out)
}

func TestServerDisplacementChangesForwardTarget(t *testing.T) {
	reg := registry.New(nil)
	reg.Register("s1", envelope.RoleSimpleServer)
	d := New(reg, nil)

	reg.Register("s2", envelope.RoleSimpleServer)

	req := &envelope.Wire{Sender: "SimpleClient", Elem: "square_request", RequestID: "r3"}
	out := d.Dispatch("c1", req)
	require.Len(t, out, 1)
	assert.Equal(t, "s2", out[0].Target)
}

func TestRoleDisagreementIsLoggedAndRoutedByDeclaredRole(t *testing.T) {
	reg := registry.New(nil)
	reg.Register("x1", envelope.RoleSimpleClient)
	d := New(reg, nil)

	// x1 now declares itself a server; should be routed/registered as such.
	d.Dispatch("x1", &envelope.Wire{Sender: "SimpleServer", Elem: "heartbeat"})

	p, ok := reg.Lookup("x1")
	require.True(t, ok)
	assert.Equal(t, envelope.RoleSimpleServer, p.Role)
}

func TestRuleHitHook(t *testing.T) {
	reg := registry.New(nil)
	d := New(reg, nil)

	var hits []string
	d.SetRuleHitHook(func(rule string) { hits = append(hits, rule) })

	d.Dispatch("c1", &envelope.Wire{Sender: "SimpleClient", Elem: "heartbeat"})
	assert.Equal(t, []string{"heartbeat"}, hits)
}
