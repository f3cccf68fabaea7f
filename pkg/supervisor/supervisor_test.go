package supervisor

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dodancs/bit-hih-docker/pkg/config"
	"github.com/dodancs/bit-hih-docker/pkg/runtime/runtimetest"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// pullRecorder wraps the fake runtime and records every image it is asked
// to pull.
type pullRecorder struct {
	*runtimetest.Fake
	pulled []string
}

func (p *pullRecorder) PullImage(ctx context.Context, ref string) error {
	p.pulled = append(p.pulled, ref)
	return p.Fake.PullImage(ctx, ref)
}

func TestDistinctImagesDedups(t *testing.T) {
	specs := []config.HoneypotSpec{
		{Name: "a", Image: "img/ssh"},
		{Name: "b", Image: "img/http"},
		{Name: "c", Image: "img/ssh"},
	}
	got := distinctImages(specs)
	require.ElementsMatch(t, []string{"img/ssh", "img/http"}, got)
}

func TestBacklogIsFloorDivision(t *testing.T) {
	cfg := &config.GlobalConfig{
		MaxConnections: 10,
		Honeypots: []config.HoneypotSpec{
			{Name: "a"}, {Name: "b"}, {Name: "c"},
		},
	}
	require.Equal(t, 3, backlog(cfg))
}

func TestPrePullImagesPullsMissingOnly(t *testing.T) {
	fake := runtimetest.NewFake()
	fake.Images["img/http"] = true

	cfg := &config.GlobalConfig{
		Bind:           "127.0.0.1",
		MaxConnections: 10,
		Honeypots: []config.HoneypotSpec{
			{Name: "ssh", Image: "img/ssh", Port: freePort(t), ContainerPort: 22},
			{Name: "http", Image: "img/http", Port: freePort(t), ContainerPort: 80},
		},
	}

	rt := &pullRecorder{Fake: fake}
	sup := New(cfg, rt, nil, false)
	require.NoError(t, sup.PrePullImages(context.Background()))

	require.True(t, fake.Images["img/ssh"])
	require.True(t, fake.Images["img/http"])
	require.Equal(t, []string{"img/ssh"}, rt.pulled)
}

func TestPrePullImagesForcePullsEverything(t *testing.T) {
	fake := runtimetest.NewFake()
	fake.Images["img/ssh"] = true

	cfg := &config.GlobalConfig{
		Bind:           "127.0.0.1",
		MaxConnections: 10,
		Honeypots: []config.HoneypotSpec{
			{Name: "ssh", Image: "img/ssh", Port: freePort(t), ContainerPort: 22},
		},
	}

	rt := &pullRecorder{Fake: fake}
	sup := New(cfg, rt, nil, true)
	require.NoError(t, sup.PrePullImages(context.Background()))
	require.True(t, fake.Images["img/ssh"])
	require.Equal(t, []string{"img/ssh"}, rt.pulled)
}

func TestSupervisorStartAndShutdown(t *testing.T) {
	fake := runtimetest.NewFake()
	cfg := &config.GlobalConfig{
		Bind:           "127.0.0.1",
		MaxConnections: 10,
		Honeypots: []config.HoneypotSpec{
			{Name: "ssh", Image: "img/ssh", Port: freePort(t), ContainerPort: 22},
			{Name: "http", Image: "img/http", Port: freePort(t), ContainerPort: 80},
		},
	}
	require.NoError(t, cfg.Validate())

	sup := New(cfg, fake, nil, false)
	require.NoError(t, sup.Start(context.Background()))
	require.Len(t, sup.managers, 2)

	sup.Shutdown(context.Background())
}

func TestOverSubscriptionRejectedAtConfig(t *testing.T) {
	cfg := &config.GlobalConfig{
		Bind:           "127.0.0.1",
		MaxConnections: 1,
		Honeypots: []config.HoneypotSpec{
			{Name: "a", Image: "img/a", Port: 1, ContainerPort: 1},
			{Name: "b", Image: "img/b", Port: 2, ContainerPort: 2},
		},
	}
	require.Error(t, cfg.Validate())
}
