package hosting

import (
	"github.com/sdnbridge/bridged/pkg/types"
)

// Application is the contract the hosting controller application implements
// for the communication layer. The layer never reaches into application
// tables directly; ownership of the topology graph, the unknown-link table
// and TE state stays with the application.
type Application interface {
	// Promote is called when this instance becomes the domain master
	Promote()

	// Demote is called when this instance becomes a slave
	Demote()

	// Hosts returns the attached hosts with their addresses
	Hosts() []types.Host

	// Switches returns the datapath IDs in the local topology
	Switches() []uint64

	// UnknownLinks returns a snapshot of the unknown-link table
	UnknownLinks() []types.UnknownLink

	// PortSpeed returns the capacity of a port in bits per second, or zero
	// when the port is not known.
	PortSpeed(sw uint64, port uint32) uint64

	// TEThreshold returns the local traffic-engineering utilisation
	// threshold advertised to the root.
	TEThreshold() float64

	// ResolveUnknownLink records the owning domain of an unknown link,
	// answering a cross-domain resolution response.
	ResolveUnknownLink(key types.UnknownLinkKey, domainID int64)

	// RemoveUnknownLink drops one unknown-link entry, returning the domain
	// it resolved to (zero when unresolved) and whether it existed.
	RemoveUnknownLink(key types.UnknownLinkKey) (int64, bool)

	// RemoveLinksToDomain drops every unknown link resolving to a failed
	// domain and returns how many were removed.
	RemoveLinksToDomain(domainID int64) int

	// InstallPathSegments applies an inter-domain path instruction from the
	// root to the local flow tables.
	InstallPathSegments(key types.HostPairKey, segments []types.PathSegment)

	// CongestionResolved clears a pending congestion report for a port
	CongestionResolved(sw uint64, port uint32)
}
