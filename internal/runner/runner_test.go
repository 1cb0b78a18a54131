package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/runner"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "case.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))

	return path
}

func newCase(t *testing.T, script string, timeoutSec float64) *testcase.TestCase {
	t.Helper()

	c := &testcase.TestCase{
		ID:         "case-1",
		FilePath:   script,
		TimeoutSec: timeoutSec,
	}
	c.SetStatus(status.Pending, "")
	c.SetStatus(status.Ready, "")
	c.SetStatus(status.Running, "")

	return c
}

func TestRunSuccessExitZero(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	r := runner.New(pool, nil)

	c := newCase(t, writeScript(t, "exit 0\n"), 5)

	result := r.Run(context.Background(), c)
	assert.Equal(t, status.Success, result.Status)
	assert.Equal(t, 0, result.ReturnCode)
}

func TestRunFailedExitNonZero(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	r := runner.New(pool, nil)

	c := newCase(t, writeScript(t, "exit 1\n"), 5)

	result := r.Run(context.Background(), c)
	assert.Equal(t, status.Failed, result.Status)
	assert.Equal(t, 1, result.ReturnCode)
}

func TestRunDiffCodeClassifiesDiffed(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	r := runner.New(pool, nil)

	c := newCase(t, writeScript(t, "exit 64\n"), 5)

	result := r.Run(context.Background(), c)
	assert.Equal(t, status.Diffed, result.Status)
}

func TestRunExpectedFailSentinel(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	r := runner.New(pool, nil)

	c := newCase(t, writeScript(t, "exit 7\n"), 5)
	c.ExpectedExit = testcase.ExpectedExit{Kind: testcase.ExpectFail}

	result := r.Run(context.Background(), c)
	assert.Equal(t, status.XFail, result.Status)
}

func TestRunTimeoutClassifiesTimeout(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	r := runner.New(pool, nil)
	r.PollInterval = 10 * time.Millisecond

	c := newCase(t, writeScript(t, "sleep 5\n"), 0.1)

	result := r.Run(context.Background(), c)
	assert.Equal(t, status.Timeout, result.Status)
	assert.Contains(t, result.Detail, "0.10s")
	assert.Equal(t, runner.TimeoutCode, result.ReturnCode)
}

func TestRunMissingAssetSkipsCase(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	r := runner.New(pool, nil)

	c := newCase(t, writeScript(t, "exit 0\n"), 5)
	c.Assets = []testcase.Asset{{Action: testcase.AssetCopy, Src: "/no/such/source/file", Dst: "copied"}}

	result := r.Run(context.Background(), c)
	assert.Equal(t, status.Skipped, result.Status)
	assert.Contains(t, result.Detail, "/no/such/source/file")
}

func TestRunEnvironmentModSetIsVisibleToChild(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	r := runner.New(pool, nil)

	outPath := filepath.Join(t.TempDir(), "env.out")
	c := newCase(t, writeScript(t, `echo "$CANARY_GREETING" > `+outPath+"\n"), 5)
	c.EnvironmentMods = []testcase.EnvMod{{Op: testcase.EnvSet, Var: "CANARY_GREETING", Value: "hello"}}

	result := r.Run(context.Background(), c)
	require.Equal(t, status.Success, result.Status)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))
}

func TestRunInjectsCanaryResourceVarsAndWorkDirOnPath(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	require.NoError(t, pool.Fill([]respool.NodeSpec{{
		ID: "node-1",
		Resources: map[string][]respool.InstanceSpec{
			respool.CPUType: {{LocalID: "0", Slots: 1}, {LocalID: "1", Slots: 1}},
		},
	}}))

	acq, err := pool.Acquire(respool.Request{Groups: [][]respool.RequestItem{{{Type: respool.CPUType, Slots: 2}}}})
	require.NoError(t, err)

	r := runner.New(pool, nil)

	outPath := filepath.Join(t.TempDir(), "env.out")
	c := newCase(t, writeScript(t, `printf '%s\n%s' "$CANARY_CPUS" "$PATH" > `+outPath+"\n"), 5)
	c.ResourcesHeld = acq

	result := r.Run(context.Background(), c)
	require.Equal(t, status.Success, result.Status)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)

	lines := strings.SplitN(string(got), "\n", 2)
	assert.ElementsMatch(t, []string{"0", "1"}, strings.Split(lines[0], ","))
	assert.True(t, strings.HasPrefix(lines[1], c.WorkingDir+string(os.PathListSeparator)))
}
