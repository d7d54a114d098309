package clitest_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/openclaw/dashboard/cli/clitest"
	"github.com/openclaw/dashboard/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, testutil.GoleakOptions...)
}

func TestCli(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t, testutil.WaitShort)

	inv, stdout, dirs := clitest.New(t, "version")
	require.NotEmpty(t, dirs.Data)
	require.NoError(t, clitest.Run(t, ctx, inv))
	require.Contains(t, stdout.String(), "OpenClaw dashboard")
}
