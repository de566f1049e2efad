package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/sdnbridge/bridged/pkg/types"
)

// Kind discriminates the wire message variants
type Kind string

const (
	// Election, peer to peer on the domain discovery subject
	KindFind      Kind = "find"
	KindKeepAlive Kind = "keep_alive"

	// Domain to root
	KindDiscover      Kind = "discover"
	KindTopology      Kind = "topology"
	KindDeadPort      Kind = "dead_port"
	KindLinkTraffic   Kind = "link_traffic"
	KindCongestion    Kind = "congestion"
	KindEgressChange  Kind = "egress_change"
	KindIngressChange Kind = "ingress_change"

	// Root to domain
	KindGetTopo             Kind = "get_topo"
	KindGetID               Kind = "get_id"
	KindComputePaths        Kind = "compute_paths"
	KindCtrlDead            Kind = "ctrl_dead"
	KindProcessedCongestion Kind = "processed_congestion"

	// Both directions: request carries the probe, response the resolution
	KindUnknownSwitch Kind = "unknown_sw"
)

// Message is one decoded wire message
type Message interface {
	Kind() Kind
}

// Find asks all election participants in a domain to advertise themselves
type Find struct{}

func (Find) Kind() Kind { return KindFind }

// KeepAlive advertises an election participant's identity and role.
// ReceiverIdentity is the sender's opaque per-connection token, used to
// ignore self-delivery and to break slave/slave instance-ID collisions.
type KeepAlive struct {
	InstanceID       int        `json:"instance_id"`
	Role             types.Role `json:"role"`
	ReceiverIdentity string     `json:"receiver_identity"`
}

func (KeepAlive) Kind() Kind { return KindKeepAlive }

// Discover advertises the domain ID and TE threshold to the root; doubles as
// the domain-level keep-alive.
type Discover struct {
	DomainID    int64   `json:"domain_id"`
	TEThreshold float64 `json:"te_threshold"`
}

func (Discover) Kind() Kind { return KindDiscover }

// Topology carries the domain's externally visible state. Paths is only
// populated on re-requests so the root can rebuild its view without
// persistent storage.
type Topology struct {
	DomainID     int64                         `json:"domain_id"`
	Hosts        []types.Host                  `json:"hosts"`
	Switches     []uint64                      `json:"switches"`
	UnknownLinks []types.UnknownLink           `json:"unknown_links"`
	TEThreshold  float64                       `json:"te_threshold"`
	Paths        []types.InterDomainPathRecord `json:"paths,omitempty"`
}

func (Topology) Kind() Kind { return KindTopology }

// GetTopo requests a topology re-advertisement
type GetTopo struct{}

func (GetTopo) Kind() Kind { return KindGetTopo }

// GetID requests a discover re-advertisement
type GetID struct{}

func (GetID) Kind() Kind { return KindGetID }

// UnknownSwitch resolves a cross-domain link. The domain sends it with the
// observed switch/port/destination and speed; the root answers with the same
// key plus the owning domain ID.
type UnknownSwitch struct {
	DomainID   int64  `json:"domain_id"`
	Switch     uint64 `json:"switch"`
	Port       uint32 `json:"port"`
	DestSwitch uint64 `json:"dest_switch"`
	SpeedBps   uint64 `json:"speed_bps,omitempty"`
}

func (UnknownSwitch) Kind() Kind { return KindUnknownSwitch }

// ComputePaths instructs the domain to install inter-domain path segments
type ComputePaths struct {
	Paths []types.InterDomainPathRecord `json:"paths"`
}

func (ComputePaths) Kind() Kind { return KindComputePaths }

// CtrlDead announces that a domain controller is no longer connected
type CtrlDead struct {
	DomainID int64 `json:"domain_id"`
}

func (CtrlDead) Kind() Kind { return KindCtrlDead }

// DeadPort reports an inter-domain port going down. ToDomainID is zero when
// the link never resolved to a domain.
type DeadPort struct {
	DomainID   int64  `json:"domain_id"`
	Switch     uint64 `json:"switch"`
	Port       uint32 `json:"port"`
	ToDomainID int64  `json:"to_domain_id"`
}

func (DeadPort) Kind() Kind { return KindDeadPort }

// LinkTraffic reports the measured rate on an inter-domain link
type LinkTraffic struct {
	DomainID   int64   `json:"domain_id"`
	Switch     uint64  `json:"switch"`
	Port       uint32  `json:"port"`
	TrafficBps float64 `json:"traffic_bps"`
}

func (LinkTraffic) Kind() Kind { return KindLinkTraffic }

// Congestion reports an over-utilised inter-domain link along with the host
// pairs currently using it.
type Congestion struct {
	DomainID    int64               `json:"domain_id"`
	Switch      uint64              `json:"switch"`
	Port        uint32              `json:"port"`
	TrafficBps  float64             `json:"traffic_bps"`
	Paths       []types.HostPairKey `json:"paths"`
	TEThreshold float64             `json:"te_threshold"`
}

func (Congestion) Kind() Kind { return KindCongestion }

// EgressChange carries a path record whose egress was moved by a local TE
// decision.
type EgressChange struct {
	DomainID int64               `json:"domain_id"`
	Key      types.HostPairKey   `json:"key"`
	Segments []types.PathSegment `json:"segments"`
}

func (EgressChange) Kind() Kind { return KindEgressChange }

// IngressChange carries a path record whose ingress (and possibly egress)
// was moved by an upstream TE decision.
type IngressChange struct {
	DomainID int64               `json:"domain_id"`
	Key      types.HostPairKey   `json:"key"`
	Segments []types.PathSegment `json:"segments"`
}

func (IngressChange) Kind() Kind { return KindIngressChange }

// ProcessedCongestion acknowledges that the root handled a congestion report
type ProcessedCongestion struct {
	Switch uint64 `json:"switch"`
	Port   uint32 `json:"port"`
}

func (ProcessedCongestion) Kind() Kind { return KindProcessedCongestion }

// UnknownKindError is returned by Decode for kinds this build does not know;
// receive loops log and drop these rather than failing.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown message kind %q", e.Kind)
}

// wire is the single self-describing envelope carried on the broker
type wire struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps a message in its envelope and marshals it
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", msg.Kind(), err)
	}
	return json.Marshal(wire{Kind: msg.Kind(), Data: data})
}

// Decode parses an envelope and returns the typed message. The payload is
// decoded exactly once, here at the transport boundary.
func Decode(body []byte) (Message, error) {
	var w wire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("malformed envelope: %v", err)
	}

	var msg Message
	switch w.Kind {
	case KindFind:
		msg = &Find{}
	case KindKeepAlive:
		msg = &KeepAlive{}
	case KindDiscover:
		msg = &Discover{}
	case KindTopology:
		msg = &Topology{}
	case KindGetTopo:
		msg = &GetTopo{}
	case KindGetID:
		msg = &GetID{}
	case KindUnknownSwitch:
		msg = &UnknownSwitch{}
	case KindComputePaths:
		msg = &ComputePaths{}
	case KindCtrlDead:
		msg = &CtrlDead{}
	case KindDeadPort:
		msg = &DeadPort{}
	case KindLinkTraffic:
		msg = &LinkTraffic{}
	case KindCongestion:
		msg = &Congestion{}
	case KindEgressChange:
		msg = &EgressChange{}
	case KindIngressChange:
		msg = &IngressChange{}
	case KindProcessedCongestion:
		msg = &ProcessedCongestion{}
	default:
		return nil, &UnknownKindError{Kind: w.Kind}
	}

	if len(w.Data) > 0 {
		if err := json.Unmarshal(w.Data, msg); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %v", w.Kind, err)
		}
	}
	return msg, nil
}
