package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// Session is one invocation's directory under .canary/sessions.
type Session struct {
	Dir       string
	Timestamp time.Time
	WorkDir   string
}

// sessionMeta is the shape of sessions/<ts>/session.json.
type sessionMeta struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
}

// resultsDoc is the shape of sessions/<ts>/results.json.
type resultsDoc struct {
	ExitCode int      `json:"exit_code"`
	Cases    []Record `json:"cases"`
}

// NewSession creates a fresh sessions/<iso-timestamp> directory. Two
// invocations landing in the same second are disambiguated with a
// uuid suffix, the same way the teacher's provider cache disambiguates
// concurrent cache requests (cli/provider_cache.go's uuid.New()).
// Session-root creation is serialized with a flock on SESSION.TAG so
// two canary processes starting at once never collide on the same
// directory name.
func (r *Repository) NewSession() (*Session, error) {
	lock := flock.New(filepath.Join(r.CanaryDir, sessionTagFile))
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	defer lock.Unlock()

	now := time.Now().UTC()
	name := now.Format("20060102T150405Z")
	dir := filepath.Join(r.CanaryDir, sessionsDir, name)

	if _, err := os.Stat(dir); err == nil {
		name = name + "-" + uuid.New().String()[:8]
		dir = filepath.Join(r.CanaryDir, sessionsDir, name)
	}

	workDir := filepath.Join(dir, "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, err
	}

	meta := sessionMeta{Timestamp: now, ID: name}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(dir, "session.json"), data, 0o644); err != nil {
		return nil, err
	}

	sess := &Session{Dir: dir, Timestamp: now, WorkDir: workDir}

	if err := r.updateRefs(sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// updateRefs repoints refs/latest and HEAD at the new session's work
// directory, the "convenience symlinks" §6 calls for.
func (r *Repository) updateRefs(sess *Session) error {
	for _, name := range []string{"latest", "HEAD"} {
		var path string
		if name == "HEAD" {
			path = filepath.Join(r.CanaryDir, name)
		} else {
			path = filepath.Join(r.CanaryDir, refsDir, name)
		}

		_ = os.Remove(path)

		if err := os.Symlink(sess.WorkDir, path); err != nil {
			return err
		}
	}

	return nil
}

// WriteResults persists the terminal results.json for the session:
// every case's final record plus the exit code computed over them.
func (r *Repository) WriteResults(sess *Session, cases []*testcase.TestCase) error {
	records := make([]Record, len(cases))
	statuses := make([]status.Status, len(cases))

	for i, c := range cases {
		rec := ToRecord(c)
		records[i] = rec
		statuses[i] = rec.Status

		if err := r.SaveCase(c); err != nil {
			return err
		}

		if err := r.AppendIndex(c.ID, c.DependencyIDs()); err != nil {
			return err
		}
	}

	doc := resultsDoc{ExitCode: Rollup(statuses), Cases: records}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(sess.Dir, "results.json"), data, 0o644)
}

// Rollup is the §6 exit-code bitmask, delegated to internal/status
// (see DESIGN.md for why Rollup itself lives there rather than here:
// it is a pure function of Status values with no session-tree
// dependency, so session only forwards to it for callers that think
// of a session's outcome, not a queue's).
func Rollup(statuses []status.Status) int {
	return status.Rollup(statuses)
}

// Criteria narrows ReFilter's reconsideration of a prior session's
// case set, mirroring the keyword/status axes `status` filters on
// without re-running discovery.
type Criteria struct {
	Keywords []string
	Statuses []status.Status
}

func (c Criteria) matches(rec Record) bool {
	if len(c.Statuses) > 0 {
		found := false

		for _, s := range c.Statuses {
			if rec.Status == s {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	if len(c.Keywords) == 0 {
		return true
	}

	have := map[string]bool{}
	for _, k := range rec.Keywords {
		have[k] = true
	}

	for _, k := range c.Keywords {
		if !have[k] {
			return false
		}
	}

	return true
}

// ReFilter re-filters a prior session's persisted case set for
// `status` without re-discovering tests: it walks the
// dependency index (every case that has ever been recorded) and
// returns the ones matching criteria.
func (r *Repository) ReFilter(criteria Criteria) ([]*testcase.TestCase, error) {
	index, err := r.LoadIndex()
	if err != nil {
		return nil, err
	}

	var matched []*testcase.TestCase

	for id := range index {
		c, err := r.LoadCase(id)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, err
		}

		rec := ToRecord(c)
		if criteria.matches(rec) {
			matched = append(matched, c)
		}
	}

	return matched, nil
}
