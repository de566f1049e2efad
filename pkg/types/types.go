package types

import "fmt"

// Role is the leader-election role of a controller instance
type Role string

const (
	RoleUnknown Role = "unknown"
	RoleMaster  Role = "master"
	RoleSlave   Role = "slave"
)

// InstanceRecord tracks one peer leader-election participant. Records are
// created on the first keep-alive from an unseen instance ID, refreshed on
// every keep-alive and purged when the liveness credit runs out.
type InstanceRecord struct {
	InstanceID     int
	Role           Role
	LivenessCredit int
}

// HostPairKey identifies one source-destination host pair
type HostPairKey struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

func (k HostPairKey) String() string {
	return fmt.Sprintf("%s->%s", k.Src, k.Dst)
}

// PortRef identifies a switch port
type PortRef struct {
	Switch uint64 `json:"switch"`
	Port   uint32 `json:"port"`
}

// SegmentAction is the root controller's instruction for a path segment set
type SegmentAction string

const (
	SegmentActionAdd    SegmentAction = "add"
	SegmentActionDelete SegmentAction = "delete"
)

// PathSegment is one ingress/egress leg of an inter-domain path. The first
// segment of a record is the primary, the remainder are alternates kept for
// fast failover.
type PathSegment struct {
	In     PortRef       `json:"in"`
	Out    PortRef       `json:"out"`
	Action SegmentAction `json:"action"`
}

// InterDomainPathRecord is the last path instruction received from the root
// for one host pair. At most one record exists per key.
type InterDomainPathRecord struct {
	Key      HostPairKey   `json:"key"`
	Segments []PathSegment `json:"segments"`
}

// Clone returns a deep copy of the record so callers can hand it to the wire
// layer without racing in-place swaps.
func (r *InterDomainPathRecord) Clone() *InterDomainPathRecord {
	segs := make([]PathSegment, len(r.Segments))
	copy(segs, r.Segments)
	return &InterDomainPathRecord{Key: r.Key, Segments: segs}
}

// UnknownLinkKey identifies a physical link whose far end belongs to another
// domain: the local switch/port plus the remote switch learned from LLDP.
type UnknownLinkKey struct {
	Switch       uint64 `json:"switch"`
	Port         uint32 `json:"port"`
	RemoteSwitch uint64 `json:"remote_switch"`
}

// UnknownLink is one advertised unknown-link table entry, annotated with the
// port speed for the root's TE decisions.
type UnknownLink struct {
	Key      UnknownLinkKey `json:"key"`
	SpeedBps uint64         `json:"speed_bps"`
	DomainID int64          `json:"domain_id"`
}

// Host is one attached host with its link-layer and network addresses
type Host struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	IP   string `json:"ip"`
}
