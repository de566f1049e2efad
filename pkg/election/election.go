package election

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sdnbridge/bridged/pkg/envelope"
	"github.com/sdnbridge/bridged/pkg/log"
	"github.com/sdnbridge/bridged/pkg/metrics"
	"github.com/sdnbridge/bridged/pkg/timeutil"
	"github.com/sdnbridge/bridged/pkg/transport"
	"github.com/sdnbridge/bridged/pkg/types"
)

const (
	// MinInstanceID and MaxInstanceID bound generated instance IDs
	MinInstanceID = 1
	MaxInstanceID = 10000

	// DefaultKeepAliveInterval is the period between keep-alive broadcasts.
	// The timeout interval defaults to half of it, so a failure is detected
	// within roughly 1.5 keep-alive intervals at miss tolerance 1.
	DefaultKeepAliveInterval = time.Second

	// DefaultMissTolerance is the number of consecutive missed keep-alives
	// tolerated before a peer is declared failed.
	DefaultMissTolerance = 1
)

// Config holds the election engine parameters
type Config struct {
	DomainID int64

	// InstanceID fixes the local instance ID; zero generates a random one
	InstanceID int

	KeepAliveInterval time.Duration
	TimeoutInterval   time.Duration // defaults to KeepAliveInterval / 2
	InitInterval      time.Duration // defaults to TimeoutInterval
	MissTolerance     int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.KeepAliveInterval <= 0 {
		out.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if out.TimeoutInterval <= 0 {
		out.TimeoutInterval = out.KeepAliveInterval / 2
	}
	if out.InitInterval <= 0 {
		out.InitInterval = out.TimeoutInterval
	}
	if out.MissTolerance <= 0 {
		out.MissTolerance = DefaultMissTolerance
	}
	return out
}

// Engine elects a master among the controller instances of one domain. The
// instance with the lowest ID wins; failures are detected with token-bucket
// keep-alive credits. Role changes are never raised as errors: they set
// RoleSignal and the observer reads the new role back.
type Engine struct {
	cfg     Config
	dialer  transport.Dialer
	logger  zerolog.Logger
	subject string

	sender *transport.Sender
	recv   transport.Conn
	sub    transport.Subscription
	token  string // subscription queue identity, the collision tie-break

	mu     sync.Mutex
	role   types.Role
	instID int
	peers  map[int]*types.InstanceRecord
	inInit bool

	roleSignal *Signal

	keepAlive *timeutil.Recurring
	timeout   *timeutil.Watchdog
	initTimer *timeutil.Watchdog

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	activeMu sync.Mutex
	active   bool
	started  bool
}

// New creates an engine for one domain instance group
func New(cfg Config, dialer transport.Dialer) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:        cfg,
		dialer:     dialer,
		logger:     log.WithComponent("election"),
		subject:    fmt.Sprintf("c.%d.discover", cfg.DomainID),
		role:       types.RoleUnknown,
		instID:     cfg.InstanceID,
		peers:      make(map[int]*types.InstanceRecord),
		roleSignal: NewSignal(),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	if e.instID == 0 {
		e.instID = randomInstanceID()
	}
	e.logger = e.logger.With().Int("instance_id", e.instID).Logger()

	e.keepAlive = timeutil.NewRecurring(cfg.KeepAliveInterval, e.keepAliveTick)
	e.timeout = timeutil.NewWatchdog(cfg.TimeoutInterval, e.timeoutTick)
	e.initTimer = timeutil.NewWatchdog(cfg.InitInterval, e.initTick)
	return e
}

// Start opens the broker connections, begins consuming keep-alives and
// kicks off the discovery phase with a find broadcast.
func (e *Engine) Start() error {
	sender, err := transport.NewSender(e.dialer)
	if err != nil {
		return fmt.Errorf("failed to open election send path: %v", err)
	}
	e.sender = sender
	e.sender.OnRetry = func() { metrics.SendRetries.Inc() }

	recv, err := e.dialer.Dial()
	if err != nil {
		e.sender.Close()
		return fmt.Errorf("failed to open election receive path: %v", err)
	}
	e.recv = recv

	sub, err := recv.Subscribe(e.subject)
	if err != nil {
		e.sender.Close()
		e.recv.Close()
		return fmt.Errorf("failed to subscribe to %s: %v", e.subject, err)
	}
	e.sub = sub
	e.token = sub.Queue()

	e.activeMu.Lock()
	e.active = true
	e.started = true
	e.activeMu.Unlock()

	go e.receiveLoop()

	// Advertise immediately, then look for the rest of the group
	e.resyncKeepAlive()
	e.sendFind()

	e.logger.Info().Int64("domain_id", e.cfg.DomainID).Msg("Election engine started")
	return nil
}

// Stop cancels the timers, stops consuming and joins the receive worker.
// Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.keepAlive.Stop()
		e.timeout.Stop()
		e.initTimer.Stop()

		close(e.stopCh)
		if e.sub != nil {
			e.sub.Cancel()
		}

		// Join the receive worker only if Start launched it
		e.activeMu.Lock()
		started := e.started
		e.activeMu.Unlock()
		if started {
			<-e.done
		}

		if e.recv != nil {
			e.recv.Close()
		}
		if e.sender != nil {
			e.sender.Close()
		}

		e.activeMu.Lock()
		e.active = false
		e.activeMu.Unlock()

		e.logger.Info().Msg("Election engine stopped")
	})
}

// IsActive reports whether the engine is between Start and Stop
func (e *Engine) IsActive() bool {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	return e.active
}

// Role returns the current role
func (e *Engine) Role() types.Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role
}

// InstanceID returns the current (possibly regenerated) instance ID
func (e *Engine) InstanceID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instID
}

// RoleSignal returns the level-triggered role-change signal. The observer
// must Clear it after handling a change.
func (e *Engine) RoleSignal() *Signal {
	return e.roleSignal
}

// Peers returns a snapshot of the known peer records
func (e *Engine) Peers() []types.InstanceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.InstanceRecord, 0, len(e.peers))
	for _, rec := range e.peers {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// ---- receive path ----

func (e *Engine) receiveLoop() {
	defer close(e.done)
	for {
		select {
		case d, ok := <-e.sub.Messages():
			if !ok {
				return
			}
			e.handle(d)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) handle(d transport.Delivery) {
	msg, err := envelope.Decode(d.Body)
	if err != nil {
		metrics.MessagesDropped.Inc()
		e.logger.Warn().Err(err).Msg("Dropping undecodable election message")
		return
	}

	switch m := msg.(type) {
	case *envelope.Find:
		// A starting peer wants the group to resync keep-alive timers
		e.resyncKeepAlive()
	case *envelope.KeepAlive:
		if m.ReceiverIdentity == e.token {
			return
		}
		metrics.KeepAlivesReceived.Inc()
		log.Trace(e.logger, "keep_alive_recv", map[string]interface{}{
			"peer_instance_id": m.InstanceID,
			"peer_role":        m.Role,
		})
		e.handleKeepAlive(m)
	default:
		metrics.MessagesDropped.Inc()
		e.logger.Info().Str("kind", string(msg.Kind())).Msg("Unknown operation received by election engine")
	}
}

func (e *Engine) handleKeepAlive(ka *envelope.KeepAlive) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ka.InstanceID == e.instID {
		e.resolveCollision(ka)
		return
	}

	rec, ok := e.peers[ka.InstanceID]
	if !ok {
		rec = &types.InstanceRecord{InstanceID: ka.InstanceID, Role: types.RoleUnknown}
		e.peers[ka.InstanceID] = rec
		e.logger.Info().Int("peer_instance_id", ka.InstanceID).Msg("Discovered peer instance")
	}
	rec.Role = ka.Role
	rec.LivenessCredit = e.cfg.MissTolerance
	metrics.KnownPeers.Set(float64(len(e.peers)))

	// A master already runs this domain: end the init phase early
	if e.inInit && ka.Role == types.RoleMaster {
		e.logger.Info().Msg("Found master, stopping init phase early")
		e.setRoleLocked(types.RoleSlave)
		e.initTimer.Disarm()
		e.inInit = false
	}
}

// resolveCollision handles a keep-alive carrying our own instance ID.
// Callers hold e.mu.
func (e *Engine) resolveCollision(ka *envelope.KeepAlive) {
	switch {
	case e.role == types.RoleUnknown:
		e.regenerateIDLocked()
	case ka.Role == types.RoleMaster:
		e.regenerateIDLocked()
	case ka.Role == types.RoleSlave && e.role == types.RoleSlave:
		// Deterministic tie-break on the opaque session tokens: the side
		// whose token sorts higher regenerates.
		if ka.ReceiverIdentity < e.token {
			e.regenerateIDLocked()
		}
	}
}

func (e *Engine) regenerateIDLocked() {
	old := e.instID
	next := randomInstanceID()
	for next == old {
		next = randomInstanceID()
	}
	e.instID = next
	metrics.IDRegenerations.Inc()
	e.logger.Info().Int("old_instance_id", old).Int("instance_id", next).Msg("Regenerated instance ID after collision")
}

// ---- timers ----

// resyncKeepAlive advertises immediately and restarts both the keep-alive
// period and the timeout watchdog.
func (e *Engine) resyncKeepAlive() {
	e.sendKeepAlive()
	e.keepAlive.Reset()
	e.timeout.Reset()
}

func (e *Engine) keepAliveTick() {
	e.sendKeepAlive()
	e.timeout.Reset()
}

// timeoutTick is the liveness re-evaluation: consume one credit per peer,
// purge exhausted records and take over if the purged master leaves the
// local ID lowest.
func (e *Engine) timeoutTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	checkMaster := false
	for id, rec := range e.peers {
		if rec.LivenessCredit <= 0 {
			e.logger.Info().Int("peer_instance_id", id).Str("peer_role", string(rec.Role)).Msg("Peer instance timed out")
			log.Trace(e.logger, "inst_fail", map[string]interface{}{"peer_instance_id": id})
			metrics.PeerFailures.Inc()
			if rec.Role == types.RoleMaster {
				checkMaster = true
			}
			delete(e.peers, id)
		} else {
			rec.LivenessCredit--
		}
	}
	metrics.KnownPeers.Set(float64(len(e.peers)))

	if checkMaster && e.isLowestLocked() {
		e.setRoleLocked(types.RoleMaster)
	}
}

// initTick assigns the initial role once the discovery window closes
func (e *Engine) initTick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inInit {
		return
	}
	e.inInit = false
	e.logger.Info().Msg("Initiation timer triggered")

	if len(e.peers) == 0 || (!e.masterExistsLocked() && e.isLowestLocked()) {
		e.setRoleLocked(types.RoleMaster)
	} else {
		e.setRoleLocked(types.RoleSlave)
	}
}

func (e *Engine) masterExistsLocked() bool {
	for _, rec := range e.peers {
		if rec.Role == types.RoleMaster {
			return true
		}
	}
	return false
}

func (e *Engine) isLowestLocked() bool {
	for id := range e.peers {
		if id < e.instID {
			return false
		}
	}
	return true
}

func (e *Engine) setRoleLocked(role types.Role) {
	e.role = role
	metrics.SetRole(string(role))
	e.logger.Info().Str("role", string(role)).Msg("Set controller role")
	log.Trace(e.logger, "role", map[string]interface{}{"role": role})
	e.roleSignal.Set()
}

// ---- send path ----

func (e *Engine) sendKeepAlive() {
	e.mu.Lock()
	ka := &envelope.KeepAlive{
		InstanceID:       e.instID,
		Role:             e.role,
		ReceiverIdentity: e.token,
	}
	e.mu.Unlock()

	e.publish(ka)
	metrics.KeepAlivesSent.Inc()
	log.Trace(e.logger, "keep_alive_send", map[string]interface{}{
		"role": ka.Role,
	})
}

func (e *Engine) sendFind() {
	e.mu.Lock()
	e.inInit = true
	e.mu.Unlock()

	e.publish(&envelope.Find{})
	e.logger.Info().Msg("Sending find")
	log.Trace(e.logger, "send_find", nil)

	e.initTimer.Reset()
}

func (e *Engine) publish(msg envelope.Message) {
	body, err := envelope.Encode(msg)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to encode election message")
		return
	}
	if err := e.sender.Publish(e.subject, body); err != nil {
		// Liveness traffic is best effort; the next cycle retries anyway
		metrics.SendFailures.Inc()
		e.logger.Error().Err(err).Msg("Failed to publish election message")
	}
}

func randomInstanceID() int {
	return rand.Intn(MaxInstanceID-MinInstanceID+1) + MinInstanceID
}
