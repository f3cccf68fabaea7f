// Package runtimetest provides an in-memory runtime.Runtime for exercising
// the Connection Manager and Supervisor without a real Docker daemon.
package runtimetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dodancs/bit-hih-docker/pkg/runtime"
)

// Fake is a goroutine-safe, in-memory runtime.Runtime. Containers "start"
// immediately unless ListenDelay is set, in which case Get reports no
// IPAddress until the delay elapses, used to exercise the dial loop's
// backoff retries.
type Fake struct {
	mu         sync.Mutex
	containers map[string]*fakeContainer
	nextID     int64

	// ListenDelay, when set, is how long a launched container withholds its
	// IP address before Get starts reporting it.
	ListenDelay time.Duration
	// LaunchErr, when set, is returned by every Launch call.
	LaunchErr error
	// Images is the set of image references HasImage reports as present.
	Images map[string]bool
	// OnLaunch, when set, is invoked synchronously from Launch before the
	// container is recorded, letting tests observe launch ordering.
	OnLaunch func(spec runtime.Spec)
}

type fakeContainer struct {
	spec      runtime.Spec
	launched  time.Time
	listening time.Duration
	stopped   int32 // atomic bool
}

// NewFake returns an empty Fake runtime.
func NewFake() *Fake {
	return &Fake{
		containers: make(map[string]*fakeContainer),
		Images:     make(map[string]bool),
	}
}

func (f *Fake) Launch(ctx context.Context, spec runtime.Spec) (runtime.Handle, error) {
	if f.OnLaunch != nil {
		f.OnLaunch(spec)
	}
	if f.LaunchErr != nil {
		return runtime.Handle{}, f.LaunchErr
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.containers[id] = &fakeContainer{
		spec:      spec,
		launched:  time.Now(),
		listening: f.ListenDelay,
	}
	f.mu.Unlock()

	return f.Get(ctx, id)
}

func (f *Fake) Get(_ context.Context, id string) (runtime.Handle, error) {
	f.mu.Lock()
	c, ok := f.containers[id]
	f.mu.Unlock()
	if !ok {
		return runtime.Handle{}, fmt.Errorf("fake runtime: no such container %s", id)
	}

	h := runtime.Handle{ID: id, IPAddress: "127.0.0.1"}
	if atomic.LoadInt32(&c.stopped) != 0 {
		h.Status = runtime.StateExited
		return h, nil
	}
	h.Status = runtime.StateRunning
	if time.Since(c.launched) < c.listening {
		h.IPAddress = "" // not "listening" yet
	}
	return h, nil
}

func (f *Fake) Stop(_ context.Context, id string, _ time.Duration) error {
	f.mu.Lock()
	c, ok := f.containers[id]
	f.mu.Unlock()
	if !ok {
		return nil // idempotent: already gone
	}
	atomic.StoreInt32(&c.stopped, 1)
	return nil
}

func (f *Fake) HasImage(_ context.Context, ref string) (bool, error) {
	return f.Images[ref], nil
}

func (f *Fake) PullImage(_ context.Context, ref string) error {
	f.mu.Lock()
	f.Images[ref] = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Close() error { return nil }

// Running reports how many launched containers have not been stopped.
func (f *Fake) Running() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.containers {
		if atomic.LoadInt32(&c.stopped) == 0 {
			n++
		}
	}
	return n
}

// Stopped reports whether Stop was ever called for id.
func (f *Fake) Stopped(id string) bool {
	f.mu.Lock()
	c, ok := f.containers[id]
	f.mu.Unlock()
	return ok && atomic.LoadInt32(&c.stopped) != 0
}
