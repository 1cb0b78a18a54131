// Package session implements the Session/Repository layer from §6: the
// persisted `.canary/` tree that makes a run's case set, results, and
// caches durable across invocations, discoverable from any working
// directory beneath the session root the same way the teacher finds
// its own config by walking up from the current directory.
package session

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/gruntwork-io/canary/internal/config"
	canaryerrors "github.com/gruntwork-io/canary/internal/errors"
	"github.com/gruntwork-io/canary/internal/testcase"
)

const (
	canaryDirName  = ".canary"
	sessionTagFile = "SESSION.TAG"
	configFile     = "config"
	casesDir       = "cases"
	indexFile      = "index.jsons"
	sessionsDir    = "sessions"
	cacheDir       = "cache"
	tagsDir        = "tags"
	refsDir        = "refs"
	lockFileName   = "testcase.lock"

	// maxAncestorsToCheck bounds the upward walk the same way the
	// teacher bounds find_in_parent_folders, guarding against cyclical
	// symlinks turning discovery into an infinite loop.
	maxAncestorsToCheck = 128
)

// Repository is a handle on one `.canary` tree.
type Repository struct {
	Root      string // the directory containing .canary
	CanaryDir string // Root/.canary
}

// Discover walks upward from startDir looking for a .canary/SESSION.TAG
// marker, the same ancestor-walk shape as the teacher's
// findInParentFolders: stop at the filesystem root (detected by
// filepath.Dir no longer changing the path) or after
// maxAncestorsToCheck hops.
func Discover(startDir string) (string, error) {
	current, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for i := 0; i < maxAncestorsToCheck; i++ {
		candidate := filepath.Join(current, canaryDirName, sessionTagFile)
		if _, err := os.Stat(candidate); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}

		current = parent
	}

	return "", canaryerrors.Errorf("no %s/%s found above %s", canaryDirName, sessionTagFile, startDir)
}

// Open discovers and opens the .canary tree rooted above startDir. A
// config file recorded by an earlier, newer build of canary is rejected
// here rather than left to surface as a confusing failure deeper in the
// run.
func Open(startDir string) (*Repository, error) {
	root, err := Discover(startDir)
	if err != nil {
		return nil, err
	}

	repo := &Repository{Root: root, CanaryDir: filepath.Join(root, canaryDirName)}

	if _, err := os.Stat(repo.ConfigPath()); err == nil {
		if _, err := config.Load(repo.ConfigPath()); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

// Init creates a fresh `.canary` tree at root, writing the SESSION.TAG
// marker and the directory skeleton. A flock on the marker file guards
// against two processes racing to initialize the same root.
func Init(root string) (*Repository, error) {
	canaryDir := filepath.Join(root, canaryDirName)
	if err := os.MkdirAll(canaryDir, 0o755); err != nil {
		return nil, err
	}

	tagPath := filepath.Join(canaryDir, sessionTagFile)

	lock := flock.New(tagPath)
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if _, err := os.Stat(tagPath); os.IsNotExist(err) {
		if err := os.WriteFile(tagPath, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
			return nil, err
		}
	}

	for _, dir := range []string{casesDir, sessionsDir, cacheDir, tagsDir, refsDir} {
		if err := os.MkdirAll(filepath.Join(canaryDir, dir), 0o755); err != nil {
			return nil, err
		}
	}

	repo := &Repository{Root: root, CanaryDir: canaryDir}

	if _, err := os.Stat(repo.ConfigPath()); os.IsNotExist(err) {
		if err := config.Write(repo.ConfigPath(), config.New()); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

// ConfigPath is the path to the resolved configuration snapshot.
func (r *Repository) ConfigPath() string {
	return filepath.Join(r.CanaryDir, configFile)
}

// LoadConfig reads this tree's resolved configuration snapshot, or
// returns build defaults if none was ever written.
func (r *Repository) LoadConfig() (*config.Config, error) {
	if _, err := os.Stat(r.ConfigPath()); os.IsNotExist(err) {
		return config.New(), nil
	}

	return config.Load(r.ConfigPath())
}

// caseDir is .canary/cases/<id[0:2]>/<id[2:]>, the two-level fan-out
// §6 specifies to keep any one directory from accumulating too many
// entries as the case population grows.
func (r *Repository) caseDir(id string) string {
	if len(id) < 2 {
		return filepath.Join(r.CanaryDir, casesDir, id)
	}

	return filepath.Join(r.CanaryDir, casesDir, id[:2], id[2:])
}

// SaveCase persists one case's current record to its lock file.
func (r *Repository) SaveCase(c *testcase.TestCase) error {
	dir := r.caseDir(c.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(ToRecord(c), "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, lockFileName), data, 0o644)
}

// LoadCase reads back a previously persisted case record.
func (r *Repository) LoadCase(id string) (*testcase.TestCase, error) {
	data, err := os.ReadFile(filepath.Join(r.caseDir(id), lockFileName))
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	return rec.ToTestCase(), nil
}

// indexEntry is one line of cases/index.jsons.
type indexEntry struct {
	ID      string   `json:"id"`
	DepIDs  []string `json:"dep_ids"`
}

// AppendIndex records one case's dependency edges to the append-only
// JSONL index used to reconstruct the graph without re-reading every
// case's full lock file.
func (r *Repository) AppendIndex(id string, depIDs []string) error {
	f, err := os.OpenFile(filepath.Join(r.CanaryDir, casesDir, indexFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(indexEntry{ID: id, DepIDs: depIDs})
	if err != nil {
		return err
	}

	_, err = f.Write(append(line, '\n'))

	return err
}

// LoadIndex reads the full dependency index built up by AppendIndex.
func (r *Repository) LoadIndex() (map[string][]string, error) {
	f, err := os.Open(filepath.Join(r.CanaryDir, casesDir, indexFile))
	if os.IsNotExist(err) {
		return map[string][]string{}, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	index := map[string][]string{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry indexEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, err
		}

		index[entry.ID] = entry.DepIDs
	}

	return index, scanner.Err()
}

// CacheKey hashes a case selection (the case ids chosen plus the
// filter expression that chose them) to a content-addressed key, the
// same identity scheme testcase.ComputeID uses for individual cases.
func CacheKey(caseIDs []string, filters string) string {
	h := sha256.New()

	for _, id := range caseIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}

	h.Write([]byte(filters))

	return hex.EncodeToString(h.Sum(nil))
}

func (r *Repository) cachePath(key string) string {
	if len(key) < 2 {
		return filepath.Join(r.CanaryDir, cacheDir, key)
	}

	return filepath.Join(r.CanaryDir, cacheDir, key[:2], key[2:])
}

// SaveCacheSelection persists the case ids a (cases, filters) pair
// resolved to, so a repeated `find`/`status` invocation with identical
// inputs can skip re-discovery.
func (r *Repository) SaveCacheSelection(key string, caseIDs []string) error {
	path := r.cachePath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(caseIDs)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// LoadCacheSelection reads back a cached case selection, if any.
func (r *Repository) LoadCacheSelection(key string) ([]string, bool, error) {
	data, err := os.ReadFile(r.cachePath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false, err
	}

	return ids, true, nil
}

// SetTag points a named tag at a cache key, so later runs can refer to
// a selection by a stable name instead of its content hash.
func (r *Repository) SetTag(tag, cacheKey string) error {
	path := filepath.Join(r.CanaryDir, tagsDir, tag)
	_ = os.Remove(path)

	return os.Symlink(r.cachePath(cacheKey), path)
}
