// Package honeypot implements the Connection Manager: the per-honeypot
// subsystem that binds a listener, accepts connections, drives each
// session through container provisioning, dial loop, and proxied copy, and
// enforces at-most-once teardown across the session table and the orphan
// container list.
package honeypot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dodancs/bit-hih-docker/pkg/backoff"
	"github.com/dodancs/bit-hih-docker/pkg/config"
	"github.com/dodancs/bit-hih-docker/pkg/log"
	"github.com/dodancs/bit-hih-docker/pkg/runtime"
	"github.com/dodancs/bit-hih-docker/pkg/session"
)

// DataHandler intercepts bytes flowing through a copier in either direction.
// Identity by default; the seam exists so a future variant can fingerprint
// or redact traffic without touching the copy engine itself.
type DataHandler func(buf []byte) []byte

func identityHandler(buf []byte) []byte { return buf }

// copyBufferSize is the per-read chunk size the copier contract specifies.
const copyBufferSize = 1024

// stopGraceTimeout bounds how long Stop is given before the adapter gives
// up waiting for a graceful exit; AutoRemove makes the engine authoritative
// either way.
const stopGraceTimeout = 5 * time.Second

// Metrics is the subset of pkg/metrics.Collector the Connection Manager
// reports through, kept as an interface so tests don't need a live
// Prometheus registry.
type Metrics interface {
	ContainerLaunched(honeypot string)
	ContainerStopped(honeypot string)
	SessionStarted(honeypot string)
	SessionEnded(honeypot string)
	DialRetry(honeypot string)
	DialDuration(honeypot string, started time.Time)
	OrphanSwept(honeypot string)
}

type noopMetrics struct{}

func (noopMetrics) ContainerLaunched(string)        {}
func (noopMetrics) ContainerStopped(string)         {}
func (noopMetrics) SessionStarted(string)           {}
func (noopMetrics) SessionEnded(string)             {}
func (noopMetrics) DialRetry(string)                {}
func (noopMetrics) DialDuration(string, time.Time)  {}
func (noopMetrics) OrphanSwept(string)              {}

// Manager is one Connection Manager: one HoneypotSpec, one listener, one
// mutex guarding its session table and orphan list.
type Manager struct {
	spec    config.HoneypotSpec
	bind    string
	backlog int
	rt      runtime.Runtime
	logger  zerolog.Logger
	metrics Metrics

	dataHandler DataHandler

	mu         sync.Mutex
	sessions   map[string]*session.Session
	containers []runtime.Handle

	listener  net.Listener
	acceptWG  sync.WaitGroup
	sessionWG sync.WaitGroup

	cancel context.CancelFunc
}

// NewManager builds a Manager for one HoneypotSpec. backlog is the
// pre-computed floor(max_connections / honeypots_num) the Supervisor derives
// at construction time.
func NewManager(spec config.HoneypotSpec, bind string, backlog int, rt runtime.Runtime, metrics Metrics) *Manager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Manager{
		spec:        spec,
		bind:        bind,
		backlog:     backlog,
		rt:          rt,
		logger:      log.WithHoneypot(spec.Name),
		metrics:     metrics,
		dataHandler: identityHandler,
		sessions:    make(map[string]*session.Session),
	}
}

// SetDataHandler overrides the identity data handler. Must be called before
// Start.
func (m *Manager) SetDataHandler(h DataHandler) {
	if h != nil {
		m.dataHandler = h
	}
}

// Start binds the listener and spawns the accept loop.
func (m *Manager) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.bind, m.spec.Port)
	ln, err := listenWithBacklog(addr, m.backlog)
	if err != nil {
		var be *bindError
		var le *listenError
		switch {
		case errors.As(err, &le):
			return &CannotBindPortError{Honeypot: m.spec.Name, Port: m.spec.Port, Reason: "Already in use"}
		case errors.As(err, &be):
			return &CannotBindPortError{Honeypot: m.spec.Name, Port: m.spec.Port, Reason: be.err.Error()}
		default:
			return &CannotBindPortError{Honeypot: m.spec.Name, Port: m.spec.Port, Reason: err.Error()}
		}
	}
	m.listener = ln

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.logger.Info().Str("addr", ln.Addr().String()).Int("backlog", m.backlog).Msg("listening")

	m.acceptWG.Add(1)
	go m.acceptLoop(runCtx)
	return nil
}

// acceptLoop runs until the listener fails, which is the normal shutdown
// path once Kill closes it.
func (m *Manager) acceptLoop(ctx context.Context) {
	defer m.acceptWG.Done()
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			m.logger.Debug().Err(err).Msg("accept loop exiting")
			return
		}
		m.sessionWG.Add(1)
		go m.provision(ctx, conn)
	}
}

// provision runs the per-connection path: launch, dial, pair, register.
func (m *Manager) provision(ctx context.Context, client net.Conn) {
	defer m.sessionWG.Done()

	sessionID := uuid.NewString()
	logger := m.logger.With().Str("session_id", sessionID).Str("remote_addr", client.RemoteAddr().String()).Logger()

	spec := runtime.Spec{
		Image:         m.spec.Image,
		Command:       m.spec.Options.Command,
		Env:           m.spec.Options.Environment,
		Hostname:      m.spec.Options.Hostname,
		User:          m.spec.Options.User,
		Network:       m.spec.Options.Network,
		NetworkMode:   m.spec.Options.NetworkMode,
		ReadOnly:      m.spec.Options.ReadOnly,
		Volumes:       m.spec.Options.Volumes,
		ContainerPort: m.spec.ContainerPort,
		LogTag:        fmt.Sprintf("%s/{{.ID}}", log.AppName),
	}

	handle, err := m.rt.Launch(ctx, spec)
	if err != nil {
		logger.Warn().Err(err).Msg("container launch failed")
		_ = client.Close()
		return
	}
	m.metrics.ContainerLaunched(m.spec.Name)

	m.mu.Lock()
	m.containers = append(m.containers, handle)
	m.mu.Unlock()

	logger = logger.With().Str("container_id", handle.ID).Logger()

	honeypotConn, err := m.dial(ctx, handle.ID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("dial loop abandoned")
		_ = client.Close()
		stopCtx, cancel := context.WithTimeout(context.Background(), stopGraceTimeout)
		m.stopIfRunning(stopCtx, handle.ID)
		cancel()
		return
	}

	sess := session.New(handle.ID, client, honeypotConn)

	m.mu.Lock()
	m.sessions[handle.ID] = sess
	sess.Activate()
	m.mu.Unlock()
	m.metrics.SessionStarted(m.spec.Name)

	m.sessionWG.Add(2)
	go m.copy(sess, client, honeypotConn, false, logger)
	go m.copy(sess, honeypotConn, client, true, logger)
}

// dial repeatedly tries to connect to the container's service port, using a
// fresh Waiter per connection attempt loop. If the honeypot spec carries a
// positive DialTimeoutSeconds, the loop is bounded; otherwise it retries
// indefinitely.
func (m *Manager) dial(ctx context.Context, containerID string, logger zerolog.Logger) (net.Conn, error) {
	started := time.Now()
	waiter := backoff.New()

	var deadline <-chan time.Time
	if m.spec.DialTimeoutSeconds > 0 {
		timer := time.NewTimer(time.Duration(m.spec.DialTimeoutSeconds) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		handle, err := m.rt.Get(ctx, containerID)
		if err == nil && handle.IPAddress != "" {
			addr := fmt.Sprintf("%s:%d", handle.IPAddress, m.spec.ContainerPort)
			conn, dialErr := net.DialTimeout("tcp", addr, 2*time.Second)
			if dialErr == nil {
				m.metrics.DialDuration(m.spec.Name, started)
				return conn, nil
			}
		}

		select {
		case <-deadline:
			return nil, fmt.Errorf("container %s never started listening on port %d", containerID, m.spec.ContainerPort)
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		m.metrics.DialRetry(m.spec.Name)
		waiter.Wait()
	}
}

// copy is the copier task contract: 1024-byte reads, the data-handler hook,
// and a direction-gated single "ended" log line.
func (m *Manager) copy(sess *session.Session, src, dst net.Conn, honeypotToClient bool, logger zerolog.Logger) {
	defer m.sessionWG.Done()

	buf := make([]byte, copyBufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			out := m.dataHandler(buf[:n])
			if _, werr := dst.Write(out); werr != nil {
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug().Err(err).Msg("copier i/o error")
			}
			break
		}
	}

	if honeypotToClient {
		logger.Info().Str("remote_addr", dst.RemoteAddr().String()).Msg("connection ended")
	}
	m.endSession(sess.ContainerID)
}

// endSession is the single teardown entry point, called by both copier
// directions. Its first entrant wins: detaching the Session from the table
// under the mutex is what makes the second caller's lookup come up empty
// and short-circuit.
func (m *Manager) endSession(containerID string) {
	m.mu.Lock()
	sess, ok := m.sessions[containerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, containerID)
	sess.MarkClosing()
	sess.CloseSocketsOnce()
	m.mu.Unlock()

	m.metrics.SessionEnded(m.spec.Name)

	ctx, cancel := context.WithTimeout(context.Background(), stopGraceTimeout)
	defer cancel()
	m.stopIfRunning(ctx, containerID)
	sess.MarkClosed()
}

// stopIfRunning re-fetches the container handle and stops it if still
// running, logging and swallowing any error rather than propagating it.
func (m *Manager) stopIfRunning(ctx context.Context, containerID string) {
	handle, err := m.rt.Get(ctx, containerID)
	if err != nil {
		m.logger.Warn().Err(err).Str("container_id", containerID).Msg("could not re-fetch container before stop")
		return
	}
	if !handle.Running() {
		return
	}
	if err := m.rt.Stop(ctx, containerID, stopGraceTimeout); err != nil {
		m.logger.Warn().Err(err).Str("container_id", containerID).Msg("container stop failed")
		return
	}
	m.metrics.ContainerStopped(m.spec.Name)
}

// Kill performs the orderly drain: close the listener, cancel in-flight
// provisioning, drain the session table, sweep the orphan list, then join
// every outstanding goroutine.
func (m *Manager) Kill(ctx context.Context) {
	m.logger.Info().Msg("stopping")

	if m.listener != nil {
		_ = m.listener.Close()
	}
	if m.cancel != nil {
		// Unblocks any provisioning goroutine still in the dial loop or
		// blocked on a context-aware engine call; its own teardown path
		// abandons the session and closes the client socket.
		m.cancel()
	}

	m.mu.Lock()
	live := make([]*session.Session, 0, len(m.sessions))
	for id, sess := range m.sessions {
		live = append(live, sess)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, sess := range live {
		sess.MarkClosing()
		sess.CloseSocketsOnce()
		m.stopIfRunning(ctx, sess.ContainerID)
		sess.MarkClosed()
	}

	// Orphan sweep: containers launched but possibly never registered in
	// sessions, either genuinely orphaned or registered by a provisioning
	// goroutine racing this drain. Stopping them here unblocks any copier
	// still reading from that container's socket, which then runs its
	// normal endSession path.
	m.mu.Lock()
	orphans := m.containers
	m.mu.Unlock()
	for _, handle := range orphans {
		current, err := m.rt.Get(ctx, handle.ID)
		if err != nil || !current.Running() {
			continue
		}
		if err := m.rt.Stop(ctx, handle.ID, stopGraceTimeout); err != nil {
			m.logger.Warn().Err(err).Str("container_id", handle.ID).Msg("orphan stop failed")
			continue
		}
		m.metrics.OrphanSwept(m.spec.Name)
	}

	m.sessionWG.Wait()
	m.acceptWG.Wait()
	m.logger.Info().Msg("stopped")
}
