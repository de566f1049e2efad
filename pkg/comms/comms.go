package comms

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sdnbridge/bridged/pkg/election"
	"github.com/sdnbridge/bridged/pkg/envelope"
	"github.com/sdnbridge/bridged/pkg/hosting"
	"github.com/sdnbridge/bridged/pkg/log"
	"github.com/sdnbridge/bridged/pkg/metrics"
	"github.com/sdnbridge/bridged/pkg/timeutil"
	"github.com/sdnbridge/bridged/pkg/transport"
	"github.com/sdnbridge/bridged/pkg/types"
)

// Root-bound subjects
const (
	SubjectDiscover      = "root.c.discover"
	SubjectTopology      = "root.c.topo"
	SubjectUnknownSwitch = "root.c.inter_domain.unknown_sw"
	SubjectDeadPort      = "root.c.inter_domain.dead_port"
	SubjectLinkTraffic   = "root.c.inter_domain.link_traffic"
	SubjectCongestion    = "root.c.inter_domain.congestion"
	SubjectEgressChange  = "root.c.inter_domain.egress_change"
	SubjectIngressChange = "root.c.inter_domain.ingress_change"

	// SubjectBroadcast reaches every domain controller
	SubjectBroadcast = "c.all"
)

// DefaultKeepAliveTimeout is the inactivity period after which the domain
// keep-alive (a discover message) is re-sent so the root does not time out a
// quiet but alive domain.
const DefaultKeepAliveTimeout = 4 * time.Second

// DefaultObserverPoll bounds the role-observer wait so Stop is noticed
// promptly.
const DefaultObserverPoll = time.Second

// Config holds the communication layer parameters
type Config struct {
	DomainID         int64
	KeepAliveTimeout time.Duration
	ObserverPoll     time.Duration

	// Election carries timing overrides for the embedded election engine;
	// its DomainID and InstanceID fields are filled in by Start.
	Election election.Config
}

// Layer wraps the broker with role gating, reconnect logic and the
// inter-domain path cache, and notifies the hosting application of role
// changes. Each controller process owns exactly one Layer.
type Layer struct {
	cfg    Config
	app    hosting.Application
	dialer transport.Dialer
	logger zerolog.Logger

	cid int64

	sender *transport.Sender
	recv   transport.Conn
	sub    transport.Subscription

	elect    *election.Engine
	watchdog *timeutil.Watchdog
	paths    *pathCache

	stopCh       chan struct{}
	recvDone     chan struct{}
	observerDone chan struct{}
	stopOnce     sync.Once

	activeMu sync.Mutex
	active   bool
	started  bool
}

// New creates a communication layer for one domain controller instance
func New(cfg Config, app hosting.Application, dialer transport.Dialer) *Layer {
	if cfg.KeepAliveTimeout <= 0 {
		cfg.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	if cfg.ObserverPoll <= 0 {
		cfg.ObserverPoll = DefaultObserverPoll
	}

	return &Layer{
		cfg:          cfg,
		app:          app,
		dialer:       dialer,
		logger:       log.WithComponent("comms").With().Int64("domain_id", cfg.DomainID).Logger(),
		cid:          DeriveCID(cfg.DomainID),
		paths:        newPathCache(),
		stopCh:       make(chan struct{}),
		recvDone:     make(chan struct{}),
		observerDone: make(chan struct{}),
	}
}

// DeriveCID builds the controller ID advertised to the root from the domain
// ID by prefixing it with 100, keeping CIDs clear of switch datapath IDs on
// the root side.
func DeriveCID(domainID int64) int64 {
	cid, err := strconv.ParseInt("100"+strconv.FormatInt(domainID, 10), 10, 64)
	if err != nil {
		return 1000 + domainID
	}
	return cid
}

// CID returns the controller ID advertised to the root
func (l *Layer) CID() int64 { return l.cid }

// Start opens the transport channels, launches the election engine and the
// role-observer worker. A non-zero instanceID pins the election instance ID;
// zero generates a random one.
func (l *Layer) Start(instanceID int) error {
	sender, err := transport.NewSender(l.dialer)
	if err != nil {
		return fmt.Errorf("failed to open send path: %v", err)
	}
	l.sender = sender
	l.sender.OnRetry = func() { metrics.SendRetries.Inc() }

	recv, err := l.dialer.Dial()
	if err != nil {
		l.sender.Close()
		return fmt.Errorf("failed to open receive path: %v", err)
	}
	l.recv = recv

	sub, err := recv.Subscribe(fmt.Sprintf("c.%d", l.cid), SubjectBroadcast)
	if err != nil {
		l.sender.Close()
		l.recv.Close()
		return fmt.Errorf("failed to subscribe: %v", err)
	}
	l.sub = sub

	electCfg := l.cfg.Election
	electCfg.DomainID = l.cfg.DomainID
	electCfg.InstanceID = instanceID
	l.elect = election.New(electCfg, l.dialer)
	if err := l.elect.Start(); err != nil {
		l.sub.Cancel()
		l.sender.Close()
		l.recv.Close()
		return fmt.Errorf("failed to start election engine: %v", err)
	}

	l.watchdog = timeutil.NewWatchdog(l.cfg.KeepAliveTimeout, l.watchdogFire)

	l.activeMu.Lock()
	l.active = true
	l.started = true
	l.activeMu.Unlock()

	go l.receiveLoop()
	go l.roleObserver()

	l.logger.Info().Int64("cid", l.cid).Msg("Controller communication started")
	return nil
}

// Stop tears down the observer worker, the election engine and the
// connections; safe to call more than once.
func (l *Layer) Stop() {
	l.stopOnce.Do(func() {
		l.activeMu.Lock()
		l.active = false
		started := l.started
		l.activeMu.Unlock()

		if l.watchdog != nil {
			l.watchdog.Stop()
		}
		close(l.stopCh)
		if l.elect != nil {
			l.elect.Stop()
		}
		if l.sub != nil {
			l.sub.Cancel()
		}
		// Join the workers only if Start launched them
		if started {
			<-l.recvDone
			<-l.observerDone
		}

		if l.recv != nil {
			l.recv.Close()
		}
		if l.sender != nil {
			l.sender.Close()
		}

		l.logger.Info().Msg("Controller communication stopped")
	})
}

// IsActive reports whether the layer is between Start and Stop
func (l *Layer) IsActive() bool {
	l.activeMu.Lock()
	defer l.activeMu.Unlock()
	return l.active
}

// Role returns the current election role
func (l *Layer) Role() types.Role {
	if l.elect == nil {
		return types.RoleUnknown
	}
	return l.elect.Role()
}

// IsMaster reports whether this instance is the domain master
func (l *Layer) IsMaster() bool { return l.Role() == types.RoleMaster }

// IsSlave reports whether this instance is a domain slave
func (l *Layer) IsSlave() bool { return l.Role() == types.RoleSlave }

// PathRecords returns a copy of the cached inter-domain path records
func (l *Layer) PathRecords() []types.InterDomainPathRecord {
	return l.paths.snapshot()
}

// ---- role observer ----

// roleObserver serializes promote/demote callbacks so the application never
// sees two racing for the same transition.
func (l *Layer) roleObserver() {
	defer close(l.observerDone)
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		if !l.elect.RoleSignal().Wait(l.cfg.ObserverPoll) {
			continue
		}
		l.elect.RoleSignal().Clear()

		role := l.elect.Role()
		l.logger.Info().Str("role", string(role)).Msg("Received controller role")
		switch role {
		case types.RoleSlave:
			l.app.Demote()
			// Slaves are silent toward the root, so no keep-alive either
			l.watchdog.Disarm()
		case types.RoleMaster:
			l.app.Promote()
			// Send an early domain keep-alive so the root does not time the
			// domain out across the instance failover.
			l.SendCID()
		}
	}
}

func (l *Layer) watchdogFire() {
	metrics.WatchdogFires.Inc()
	l.logger.Debug().Msg("Keep-alive watchdog fired, re-sending controller ID")
	l.SendCID()
}

// ---- send path ----

// send role-gates, encodes and publishes one root-bound message, resetting
// the keep-alive watchdog on success. All failures are non-fatal.
func (l *Layer) send(subject string, msg envelope.Message) error {
	if !l.IsActive() {
		return nil
	}
	if !l.IsMaster() {
		metrics.SendsGated.Inc()
		l.logger.Debug().Str("subject", subject).Msg("Suppressing message, instance is not master")
		return nil
	}

	body, err := envelope.Encode(msg)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to encode outbound message")
		return err
	}
	if err := l.sender.Publish(subject, body); err != nil {
		metrics.SendFailures.Inc()
		l.logger.Error().Err(err).Str("subject", subject).Msg("Send failed after retry")
		return err
	}

	metrics.SendsTotal.WithLabelValues(string(msg.Kind())).Inc()
	l.watchdog.Reset()
	return nil
}

// SendCID advertises the controller ID and TE threshold on the discovery
// subject; this is also the domain-level keep-alive.
func (l *Layer) SendCID() error {
	return l.send(SubjectDiscover, &envelope.Discover{
		DomainID:    l.cid,
		TEThreshold: l.app.TEThreshold(),
	})
}

// SendTopology advertises hosts, switches, the unknown-link table and the
// TE threshold. includePaths adds the cached inter-domain path records,
// used on re-requests so the root can recover state.
func (l *Layer) SendTopology(includePaths bool) error {
	links := l.app.UnknownLinks()
	for i := range links {
		links[i].SpeedBps = l.app.PortSpeed(links[i].Key.Switch, links[i].Key.Port)
	}

	msg := &envelope.Topology{
		DomainID:     l.cid,
		Hosts:        l.app.Hosts(),
		Switches:     l.app.Switches(),
		UnknownLinks: links,
		TEThreshold:  l.app.TEThreshold(),
	}
	if includePaths {
		msg.Paths = l.paths.snapshot()
	}
	return l.send(SubjectTopology, msg)
}

// NotifyUnknownLink asks the root to resolve a link whose far end is not in
// the local topology.
func (l *Layer) NotifyUnknownLink(sw uint64, port uint32, destSwitch uint64, speedBps uint64) error {
	err := l.send(SubjectUnknownSwitch, &envelope.UnknownSwitch{
		DomainID:   l.cid,
		Switch:     sw,
		Port:       port,
		DestSwitch: destSwitch,
		SpeedBps:   speedBps,
	})
	if err == nil {
		l.logger.Info().Uint64("switch", sw).Uint32("port", port).Msg("Notified root of outside link")
	}
	return err
}

// NotifyPortDown reports that an inter-domain port went down, removing the
// link from the application's table. Unresolved links report domain zero.
func (l *Layer) NotifyPortDown(key types.UnknownLinkKey) error {
	toDomain, _ := l.app.RemoveUnknownLink(key)
	return l.send(SubjectDeadPort, &envelope.DeadPort{
		DomainID:   l.cid,
		Switch:     key.Switch,
		Port:       key.Port,
		ToDomainID: toDomain,
	})
}

// NotifyLinkTraffic reports the measured rate on an inter-domain link
func (l *Layer) NotifyLinkTraffic(sw uint64, port uint32, trafficBps float64) error {
	return l.send(SubjectLinkTraffic, &envelope.LinkTraffic{
		DomainID:   l.cid,
		Switch:     sw,
		Port:       port,
		TrafficBps: trafficBps,
	})
}

// NotifyCongestion reports an over-utilised inter-domain link with the host
// pairs using it.
func (l *Layer) NotifyCongestion(sw uint64, port uint32, trafficBps float64, paths []types.HostPairKey) error {
	return l.send(SubjectCongestion, &envelope.Congestion{
		DomainID:    l.cid,
		Switch:      sw,
		Port:        port,
		TrafficBps:  trafficBps,
		Paths:       paths,
		TEThreshold: l.app.TEThreshold(),
	})
}

// NotifyEgressChange patches the cached path record for a local TE egress
// move and forwards it to the root. An untracked key or unmatched egress is
// logged and abandoned; that state gap is deliberate, not fatal.
func (l *Layer) NotifyEgressChange(key types.HostPairKey, newEgress types.PortRef) error {
	segs, ok := l.paths.swapEgress(key, newEgress)
	if !ok {
		l.logger.Error().Str("host_pair", key.String()).
			Uint64("switch", newEgress.Switch).Uint32("port", newEgress.Port).
			Msg("Could not locate egress in cached root paths, abandoning egress change")
		return nil
	}
	l.logger.Info().Str("host_pair", key.String()).Msg("Notifying root of egress change on inter-domain path")

	return l.send(SubjectEgressChange, &envelope.EgressChange{
		DomainID: l.cid,
		Key:      key,
		Segments: segs,
	})
}

// NotifyIngressChange patches the cached path record for an upstream TE
// ingress move and forwards it to the root. Nil egress refs mark a
// non-transit segment whose egress stays put.
func (l *Layer) NotifyIngressChange(key types.HostPairKey, oldIngress, newIngress types.PortRef, oldEgress, newEgress *types.PortRef) error {
	segs, ok := l.paths.swapIngress(key, oldIngress, newIngress, oldEgress, newEgress)
	if !ok {
		l.logger.Error().Str("host_pair", key.String()).
			Msg("Could not locate ingress in cached root paths, abandoning ingress change")
		return nil
	}
	l.logger.Info().Str("host_pair", key.String()).Msg("Notifying root of ingress change on inter-domain path")

	return l.send(SubjectIngressChange, &envelope.IngressChange{
		DomainID: l.cid,
		Key:      key,
		Segments: segs,
	})
}

// ---- receive path ----

func (l *Layer) receiveLoop() {
	defer close(l.recvDone)
	for {
		select {
		case d, ok := <-l.sub.Messages():
			if !ok {
				return
			}
			l.handle(d)
		case <-l.stopCh:
			return
		}
	}
}

func (l *Layer) handle(d transport.Delivery) {
	msg, err := envelope.Decode(d.Body)
	if err != nil {
		metrics.MessagesDropped.Inc()
		l.logger.Warn().Err(err).Msg("Dropping undecodable message")
		return
	}

	switch m := msg.(type) {
	case *envelope.GetTopo:
		l.logger.Info().Msg("Topology re-requested, resending host information")
		l.SendTopology(true)

	case *envelope.GetID:
		l.logger.Info().Msg("Controller ID re-requested")
		l.SendCID()

	case *envelope.UnknownSwitch:
		key := types.UnknownLinkKey{Switch: m.Switch, Port: m.Port, RemoteSwitch: m.DestSwitch}
		l.app.ResolveUnknownLink(key, m.DomainID)
		l.logger.Info().Uint64("switch", m.Switch).Uint32("port", m.Port).
			Int64("remote_domain", m.DomainID).Msg("Resolved unknown link to domain")

	case *envelope.ComputePaths:
		l.logger.Info().Int("count", len(m.Paths)).Msg("Inter-domain path instructions received")
		for _, rec := range m.Paths {
			l.app.InstallPathSegments(rec.Key, rec.Segments)
			if !l.paths.apply(rec.Key, rec.Segments) {
				l.logger.Info().Str("host_pair", rec.Key.String()).
					Msg("Unknown action for path, cache not updated")
			}
		}

	case *envelope.CtrlDead:
		removed := l.app.RemoveLinksToDomain(m.DomainID)
		l.logger.Info().Int64("dead_domain", m.DomainID).Int("links_removed", removed).
			Msg("Received controller dead notification")

	case *envelope.ProcessedCongestion:
		l.logger.Info().Uint64("switch", m.Switch).Uint32("port", m.Port).
			Msg("Root processed inter-domain congestion")
		l.app.CongestionResolved(m.Switch, m.Port)

	default:
		metrics.MessagesDropped.Inc()
		l.logger.Info().Str("kind", string(msg.Kind())).Msg("Unknown operation received, ignoring")
	}
}
