// Package envelope defines the on-wire message format for the router, the
// closed set of envelope kinds it carries, and the pure conversion layer
// between the wire format and the application-facing typed envelope used by
// peer libraries.
package envelope

// Kind is the closed, application-facing enumeration of envelope kinds. It
// maps bijectively to the wire-level "elem" strings via the table in
// adapter.go. A Kind with no entry in that table is not part of the
// authoritative set named in the envelope-kind registry.
type Kind string

const (
	KindHeartbeat             Kind = "heartbeat"
	KindSquareRequest         Kind = "square_request"
	KindSquareResponse        Kind = "square_response"
	KindClientRegistryRequest Kind = "client_registry_request"
	KindClientRegistryResponse Kind = "client_registry_response"
	KindStartSimulation       Kind = "start_simulation"
	KindStopSimulation        Kind = "stop_simulation"
	KindPauseSimulation       Kind = "pause_simulation"
	KindResumeSimulation      Kind = "resume_simulation"
	KindResetSimulation       Kind = "reset_simulation"
	KindGetSimulationStatus   Kind = "get_simulation_status"
	KindStatusUpdate          Kind = "status_update"
	KindSimulationStarted     Kind = "simulation_started"
	KindSimulationStopped     Kind = "simulation_stopped"
	KindSimulationPaused      Kind = "simulation_paused"
	KindSimulationResumed     Kind = "simulation_resumed"
	KindSimulationReset       Kind = "simulation_reset"
	KindError                 Kind = "error"
)

// Role is the closed set of peer-role tags a wire envelope's "sender" field
// may carry.
type Role string

const (
	RoleHydraClient  Role = "HydraClient"
	RoleHydraServer  Role = "HydraServer"
	RoleSimpleClient Role = "SimpleClient"
	RoleSimpleServer Role = "SimpleServer"
	RoleHydraRouter  Role = "HydraRouter"
)

// IsClientRole reports whether role is one of the two client-like roles.
func (r Role) IsClientRole() bool {
	return r == RoleHydraClient || r == RoleSimpleClient
}

// IsServerRole reports whether role is one of the two server-like roles.
func (r Role) IsServerRole() bool {
	return r == RoleHydraServer || r == RoleSimpleServer
}

// Valid reports whether role is one of the five closed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHydraClient, RoleHydraServer, RoleSimpleClient, RoleSimpleServer, RoleHydraRouter:
		return true
	}
	return false
}
