package runtime

import (
	"context"
	"time"
)

// State is the runtime-reported lifecycle state of a container, as exposed
// by Handle.Status. Only "running" is inspected by the Connection Manager;
// the rest exist so adapters and tests have a complete vocabulary.
type State string

const (
	StateRunning State = "running"
	StateExited  State = "exited"
	StateCreated State = "created"
	StateUnknown State = "unknown"
)

// Spec describes the container to launch for one honeypot connection. It is
// the runtime-facing projection of a config.HoneypotSpec: everything the
// adapter needs and nothing it doesn't.
type Spec struct {
	Image       string
	Command     []string
	Env         []string
	Hostname    string
	User        string
	Network     string
	NetworkMode string
	ReadOnly    bool
	Volumes     []string // "host:container[:mode]" bind specs
	// ContainerPort is the internal TCP port the honeypot service listens
	// on. It is declared as an exposed port on the container, documentation
	// only: nothing is published to the host, since the Connection Manager
	// dials it directly over the container's own network address.
	ContainerPort int
	// LogTag is rendered into the container's log-config so the engine's
	// log driver can correlate stdout/stderr back to one session.
	LogTag string
}

// Handle is a live view onto one launched container: its id plus whatever
// the adapter last observed about its status and network attributes.
type Handle struct {
	ID        string
	Status    State
	IPAddress string
}

// Running reports whether the handle's last-known status is "running".
func (h Handle) Running() bool {
	return h.Status == StateRunning
}

// Runtime is the Container Runtime Adapter's capability set: launch,
// re-fetch, idempotent stop, image presence/pull for the Supervisor's
// pre-pull step, and Close. The Connection Manager
// depends only on this interface so it never cares whether the underlying
// engine is local or remote.
type Runtime interface {
	// Launch starts a detached, auto-removing container from spec and
	// returns a handle to it. The returned handle's IPAddress may be empty
	// immediately after launch on some engines; callers re-fetch via Get
	// until it is populated.
	Launch(ctx context.Context, spec Spec) (Handle, error)

	// Get re-fetches a handle by container id, refreshing Status and
	// IPAddress.
	Get(ctx context.Context, id string) (Handle, error)

	// Stop idempotently stops a running container. Implementations must
	// swallow "already gone"/"not running" errors; the caller treats Stop
	// as best-effort.
	Stop(ctx context.Context, id string, timeout time.Duration) error

	// HasImage reports whether an image reference is present locally.
	HasImage(ctx context.Context, ref string) (bool, error)

	// PullImage pulls an image reference from its registry.
	PullImage(ctx context.Context, ref string) error

	// Close releases the adapter's connection to the engine.
	Close() error
}
