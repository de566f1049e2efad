package hosting

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sdnbridge/bridged/pkg/log"
	"github.com/sdnbridge/bridged/pkg/types"
)

// StaticApp is a reference Application backed by a fixed topology, used by
// the bridged CLI when no controller application is embedded and by tests.
// It tracks role transitions and installed paths but programs no switches.
type StaticApp struct {
	mu           sync.RWMutex
	hosts        []types.Host
	switches     []uint64
	unknownLinks map[types.UnknownLinkKey]int64
	speeds       map[types.PortRef]uint64
	teThreshold  float64

	role      types.Role
	installed map[types.HostPairKey][]types.PathSegment
}

// topologyFile is the YAML shape accepted by LoadStaticApp
type topologyFile struct {
	TEThreshold float64      `yaml:"te_threshold"`
	Hosts       []types.Host `yaml:"hosts"`
	Switches    []uint64     `yaml:"switches"`
	Links       []struct {
		Switch       uint64 `yaml:"switch"`
		Port         uint32 `yaml:"port"`
		RemoteSwitch uint64 `yaml:"remote_switch"`
		SpeedBps     uint64 `yaml:"speed_bps"`
		DomainID     int64  `yaml:"domain_id"`
	} `yaml:"links"`
}

// NewStaticApp creates an empty static application
func NewStaticApp(teThreshold float64) *StaticApp {
	return &StaticApp{
		unknownLinks: make(map[types.UnknownLinkKey]int64),
		speeds:       make(map[types.PortRef]uint64),
		teThreshold:  teThreshold,
		role:         types.RoleUnknown,
		installed:    make(map[types.HostPairKey][]types.PathSegment),
	}
}

// LoadStaticApp reads a topology description from a YAML file
func LoadStaticApp(path string) (*StaticApp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %v", err)
	}

	var tf topologyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %v", err)
	}

	app := NewStaticApp(tf.TEThreshold)
	app.hosts = tf.Hosts
	app.switches = tf.Switches
	for _, l := range tf.Links {
		key := types.UnknownLinkKey{Switch: l.Switch, Port: l.Port, RemoteSwitch: l.RemoteSwitch}
		app.unknownLinks[key] = l.DomainID
		app.speeds[types.PortRef{Switch: l.Switch, Port: l.Port}] = l.SpeedBps
	}
	return app, nil
}

// SetHosts replaces the host list
func (a *StaticApp) SetHosts(hosts []types.Host) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hosts = hosts
}

// SetSwitches replaces the switch list
func (a *StaticApp) SetSwitches(switches []uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.switches = switches
}

// AddUnknownLink seeds an unknown-link entry with its port speed
func (a *StaticApp) AddUnknownLink(key types.UnknownLinkKey, speedBps uint64, domainID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unknownLinks[key] = domainID
	a.speeds[types.PortRef{Switch: key.Switch, Port: key.Port}] = speedBps
}

func (a *StaticApp) Promote() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.role = types.RoleMaster
	logger := log.WithComponent("hosting")
	logger.Info().Msg("Promoted to master")
}

func (a *StaticApp) Demote() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.role = types.RoleSlave
	logger := log.WithComponent("hosting")
	logger.Info().Msg("Demoted to slave")
}

// Role returns the last role the communication layer reported
func (a *StaticApp) Role() types.Role {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.role
}

func (a *StaticApp) Hosts() []types.Host {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.Host, len(a.hosts))
	copy(out, a.hosts)
	return out
}

func (a *StaticApp) Switches() []uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]uint64, len(a.switches))
	copy(out, a.switches)
	return out
}

func (a *StaticApp) UnknownLinks() []types.UnknownLink {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.UnknownLink, 0, len(a.unknownLinks))
	for key, dom := range a.unknownLinks {
		out = append(out, types.UnknownLink{
			Key:      key,
			SpeedBps: a.speeds[types.PortRef{Switch: key.Switch, Port: key.Port}],
			DomainID: dom,
		})
	}
	return out
}

func (a *StaticApp) PortSpeed(sw uint64, port uint32) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.speeds[types.PortRef{Switch: sw, Port: port}]
}

func (a *StaticApp) TEThreshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.teThreshold
}

func (a *StaticApp) ResolveUnknownLink(key types.UnknownLinkKey, domainID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unknownLinks[key] = domainID
}

func (a *StaticApp) RemoveUnknownLink(key types.UnknownLinkKey) (int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	dom, ok := a.unknownLinks[key]
	if ok {
		delete(a.unknownLinks, key)
	}
	return dom, ok
}

func (a *StaticApp) RemoveLinksToDomain(domainID int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for key, dom := range a.unknownLinks {
		if dom == domainID {
			delete(a.unknownLinks, key)
			removed++
		}
	}
	return removed
}

func (a *StaticApp) InstallPathSegments(key types.HostPairKey, segments []types.PathSegment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	segs := make([]types.PathSegment, len(segments))
	copy(segs, segments)
	a.installed[key] = segs
}

// InstalledSegments returns the last instruction applied for a host pair
func (a *StaticApp) InstalledSegments(key types.HostPairKey) []types.PathSegment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.installed[key]
}

func (a *StaticApp) CongestionResolved(sw uint64, port uint32) {
	logger := log.WithComponent("hosting")
	logger.Info().
		Uint64("switch", sw).Uint32("port", port).
		Msg("Congestion resolved by root")
}
