package runtime

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// LogDriver is the log-config type tagged onto every launched container, so
// attacker activity shows up in syslog correlated per container.
const LogDriver = "syslog"

// DockerRuntime implements Runtime against a local or remote Docker Engine,
// discovered from the ambient environment.
type DockerRuntime struct {
	cli *client.Client
}

// NewDockerRuntime connects to the Docker Engine using the standard
// DOCKER_HOST/DOCKER_TLS_VERIFY/DOCKER_CERT_PATH environment conventions.
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to docker engine: %w", err)
	}
	return &DockerRuntime{cli: cli}, nil
}

// Close implements Runtime.
func (r *DockerRuntime) Close() error {
	return r.cli.Close()
}

// Launch implements Runtime. It creates a detached, auto-removing container
// with the options in spec, starts it, and returns its handle.
func (r *DockerRuntime) Launch(ctx context.Context, spec Spec) (Handle, error) {
	cfg := &container.Config{
		Image:    spec.Image,
		Cmd:      spec.Command,
		Env:      spec.Env,
		Hostname: spec.Hostname,
		User:     spec.User,
	}
	if spec.ContainerPort > 0 {
		port, err := nat.NewPort("tcp", strconv.Itoa(spec.ContainerPort))
		if err != nil {
			return Handle{}, fmt.Errorf("invalid container port %d: %w", spec.ContainerPort, err)
		}
		cfg.ExposedPorts = nat.PortSet{port: struct{}{}}
	}

	hostCfg := &container.HostConfig{
		AutoRemove:     true,
		ReadonlyRootfs: spec.ReadOnly,
		Binds:          spec.Volumes,
		LogConfig: container.LogConfig{
			Type:   LogDriver,
			Config: map[string]string{"tag": spec.LogTag},
		},
	}
	if spec.NetworkMode != "" {
		hostCfg.NetworkMode = container.NetworkMode(spec.NetworkMode)
	}

	var netCfg *network.NetworkingConfig
	if spec.Network != "" {
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {},
			},
		}
	}

	created, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, "")
	if err != nil {
		return Handle{}, fmt.Errorf("failed to create container from image %s: %w", spec.Image, err)
	}

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return Handle{}, fmt.Errorf("failed to start container %s: %w", created.ID, err)
	}

	return r.Get(ctx, created.ID)
}

// Get implements Runtime.
func (r *DockerRuntime) Get(ctx context.Context, id string) (Handle, error) {
	info, err := r.cli.ContainerInspect(ctx, id)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to inspect container %s: %w", id, err)
	}

	h := Handle{
		ID:     info.ID,
		Status: mapStatus(info.State),
	}
	if info.NetworkSettings != nil {
		h.IPAddress = containerIPAddress(info.NetworkSettings)
	}
	return h, nil
}

// Stop implements Runtime. Best-effort: a container that no longer exists
// counts as stopped; other errors are returned for the caller to log, never
// retried, since AutoRemove makes the engine authoritative for final
// cleanup regardless.
func (r *DockerRuntime) Stop(ctx context.Context, id string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := r.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to stop container %s: %w", id, err)
	}
	return nil
}

// HasImage implements Runtime.
func (r *DockerRuntime) HasImage(ctx context.Context, ref string) (bool, error) {
	images, err := r.cli.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list images matching %s: %w", ref, err)
	}
	return len(images) > 0, nil
}

// PullImage implements Runtime.
func (r *DockerRuntime) PullImage(ctx context.Context, ref string) error {
	rc, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to stream pull progress for %s: %w", ref, err)
	}
	return nil
}

func mapStatus(s *container.State) State {
	if s == nil {
		return StateUnknown
	}
	switch {
	case s.Running:
		return StateRunning
	case s.Status == "exited":
		return StateExited
	case s.Status == "created":
		return StateCreated
	default:
		return StateUnknown
	}
}

// containerIPAddress prefers the container's top-level IPAddress, falling
// back to the first attached user-defined network's address when the
// container was launched without the default bridge.
func containerIPAddress(ns *container.NetworkSettings) string {
	if ns.IPAddress != "" {
		return ns.IPAddress
	}
	for _, ep := range ns.Networks {
		if ep.IPAddress != "" {
			return ep.IPAddress
		}
	}
	return ""
}
