package sysprobe_test

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/openclaw/dashboard/dashd/sysprobe"
	"github.com/openclaw/dashboard/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, testutil.GoleakOptions...)
}

func TestSystem(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t, testutil.WaitShort)
	p := sysprobe.New(sysprobe.Options{
		DiskPath:  os.TempDir(),
		CPUSample: 10 * time.Millisecond,
		Logger:    testutil.Logger(t),
	})

	h := p.System(ctx)
	require.GreaterOrEqual(t, h.CPUPercent, 0.0)
	require.LessOrEqual(t, h.CPUPercent, 100.0)
	require.NotZero(t, h.MemoryTotal)
	require.NotZero(t, h.DiskTotal)
}

func TestGateway(t *testing.T) {
	t.Parallel()
	if runtime.GOOS != "linux" {
		t.Skip("relies on sleep and /proc")
	}
	ctx := testutil.Context(t, testutil.WaitShort)

	t.Run("NotRunning", func(t *testing.T) {
		t.Parallel()
		p := sysprobe.New(sysprobe.Options{
			GatewayPattern: "no-such-gateway-0d1f6c",
			Logger:         testutil.Logger(t),
		})
		status := p.Gateway(ctx)
		require.False(t, status.Running)
		require.Nil(t, status.StartedAt)
	})

	t.Run("Running", func(t *testing.T) {
		t.Parallel()
		cmd := exec.Command("sleep", "30.123")
		require.NoError(t, cmd.Start())
		t.Cleanup(func() {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		})

		p := sysprobe.New(sysprobe.Options{GatewayPattern: "sleep 30.123", Logger: testutil.Logger(t)})
		require.Eventually(t, func() bool {
			return p.Gateway(ctx).Running
		}, testutil.WaitShort, testutil.IntervalFast)
		status := p.Gateway(ctx)
		require.EqualValues(t, cmd.Process.Pid, status.PID)
		require.NotNil(t, status.StartedAt)
	})
}
