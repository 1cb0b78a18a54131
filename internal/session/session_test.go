package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gruntwork-io/canary/internal/config"
	"github.com/gruntwork-io/canary/internal/session"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCase(id string, keywords ...string) *testcase.TestCase {
	c := &testcase.TestCase{ID: id, DisplayName: id, Keywords: keywords}
	c.SetStatus(status.Pending, "")
	c.SetStatus(status.Ready, "")
	c.SetStatus(status.Running, "")
	c.SetStatus(status.Success, "")

	return c
}

func TestDiscoverWalksUpToSessionTag(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, err := session.Init(root)
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := session.Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestDiscoverFailsWithoutASessionTag(t *testing.T) {
	t.Parallel()

	_, err := session.Discover(t.TempDir())
	require.Error(t, err)
}

func TestSaveAndLoadCaseRoundTrips(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo, err := session.Init(root)
	require.NoError(t, err)

	c := newCase("abc123", "smoke")
	require.NoError(t, repo.SaveCase(c))

	loaded, err := repo.LoadCase("abc123")
	require.NoError(t, err)
	assert.Equal(t, status.Success, loaded.Status)
	assert.Equal(t, []string{"smoke"}, loaded.Keywords)
}

func TestAppendAndLoadIndex(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo, err := session.Init(root)
	require.NoError(t, err)

	require.NoError(t, repo.AppendIndex("a", nil))
	require.NoError(t, repo.AppendIndex("b", []string{"a"}))

	index, err := repo.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, index["b"])
	assert.Empty(t, index["a"])
}

func TestNewSessionUpdatesRefs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo, err := session.Init(root)
	require.NoError(t, err)

	sess, err := repo.NewSession()
	require.NoError(t, err)

	latest, err := os.Readlink(filepath.Join(repo.CanaryDir, "refs", "latest"))
	require.NoError(t, err)
	assert.Equal(t, sess.WorkDir, latest)

	head, err := os.Readlink(filepath.Join(repo.CanaryDir, "HEAD"))
	require.NoError(t, err)
	assert.Equal(t, sess.WorkDir, head)
}

func TestWriteResultsComputesRollup(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo, err := session.Init(root)
	require.NoError(t, err)

	sess, err := repo.NewSession()
	require.NoError(t, err)

	ok := newCase("a")
	failing := newCase("b")
	failing.Status = status.Failed

	require.NoError(t, repo.WriteResults(sess, []*testcase.TestCase{ok, failing}))

	data, err := os.ReadFile(filepath.Join(sess.Dir, "results.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exit_code": 2`)
}

func TestReFilterMatchesByStatusAndKeyword(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo, err := session.Init(root)
	require.NoError(t, err)

	smoke := newCase("aa", "smoke")
	slow := newCase("bb", "slow")
	slow.Status = status.Failed

	for _, c := range []*testcase.TestCase{smoke, slow} {
		require.NoError(t, repo.SaveCase(c))
		require.NoError(t, repo.AppendIndex(c.ID, nil))
	}

	matched, err := repo.ReFilter(session.Criteria{Keywords: []string{"smoke"}})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "aa", matched[0].ID)

	failed, err := repo.ReFilter(session.Criteria{Statuses: []status.Status{status.Failed}})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "bb", failed[0].ID)
}

func TestInitWritesConfigAndOpenReadsItBack(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, err := session.Init(root)
	require.NoError(t, err)

	repo, err := session.Open(root)
	require.NoError(t, err)

	cfg, err := repo.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.SchemaVersion, cfg.SchemaVersion)
}

func TestOpenRejectsIncompatibleSchemaVersion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo, err := session.Init(root)
	require.NoError(t, err)

	stale := config.New()
	stale.SchemaVersion = "99.0.0"
	require.NoError(t, config.Write(repo.ConfigPath(), stale))

	_, err = session.Open(root)
	require.Error(t, err)
}

func TestCacheSelectionRoundTrips(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo, err := session.Init(root)
	require.NoError(t, err)

	key := session.CacheKey([]string{"a", "b"}, "-k smoke")
	require.NoError(t, repo.SaveCacheSelection(key, []string{"a", "b"}))

	ids, ok, err := repo.LoadCacheSelection(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, repo.SetTag("nightly", key))

	target, err := os.Readlink(filepath.Join(repo.CanaryDir, "tags", "nightly"))
	require.NoError(t, err)
	assert.NotEmpty(t, target)
}
