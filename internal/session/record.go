package session

import (
	"time"

	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// Record is the JSON shape persisted at
// .canary/cases/<id[0:2]>/<id[2:]>/testcase.lock: a case's immutable
// spec plus its latest mutable state, stripped of the in-process
// handles (mutex, live resource acquisition) that only make sense for
// the lifetime of one run.
type Record struct {
	ID                string                 `json:"id"`
	DisplayName       string                 `json:"display_name"`
	FilePath          string                 `json:"file_path"`
	Keywords          []string               `json:"keywords,omitempty"`
	Parameters        map[string]string      `json:"parameters,omitempty"`
	RequiredResources respool.Request        `json:"required_resources"`
	TimeoutSec        float64                `json:"timeout_sec"`
	ExpectedExit      testcase.ExpectedExit  `json:"expected_exit"`
	Dependencies      []testcase.Dependency  `json:"dependencies,omitempty"`
	EnvironmentMods   []testcase.EnvMod      `json:"environment_mods,omitempty"`
	Assets            []testcase.Asset       `json:"assets,omitempty"`
	Exclusive         bool                   `json:"exclusive,omitempty"`
	OnOptions         testcase.OnOptions     `json:"on_options,omitempty"`

	Status     status.Status `json:"status"`
	Detail     string        `json:"detail,omitempty"`
	StartTS    time.Time     `json:"start_ts,omitempty"`
	StopTS     time.Time     `json:"stop_ts,omitempty"`
	ReturnCode int           `json:"return_code"`
	WorkingDir string        `json:"working_dir,omitempty"`
	Mask       *testcase.Mask `json:"mask,omitempty"`
}

// ToRecord flattens a live TestCase into its persisted shape. Reads the
// mutable fields through SnapshotStatus so it never races the runner's
// terminal-status write.
func ToRecord(c *testcase.TestCase) Record {
	st, detail := c.SnapshotStatus()

	return Record{
		ID:                c.ID,
		DisplayName:       c.DisplayName,
		FilePath:          c.FilePath,
		Keywords:          c.Keywords,
		Parameters:        c.Parameters,
		RequiredResources: c.RequiredResources,
		TimeoutSec:        c.TimeoutSec,
		ExpectedExit:      c.ExpectedExit,
		Dependencies:      c.Dependencies,
		EnvironmentMods:   c.EnvironmentMods,
		Assets:            c.Assets,
		Exclusive:         c.Exclusive,
		OnOptions:         c.OnOptions,
		Status:            st,
		Detail:            detail,
		StartTS:           c.StartTS,
		StopTS:            c.StopTS,
		ReturnCode:        c.ReturnCode,
		WorkingDir:        c.WorkingDir,
		Mask:              c.Mask,
	}
}

// ToTestCase reconstructs a TestCase from a persisted Record, used when
// ReFilter reloads a prior session's case set without re-discovering.
func (r Record) ToTestCase() *testcase.TestCase {
	return &testcase.TestCase{
		ID:                r.ID,
		DisplayName:       r.DisplayName,
		FilePath:          r.FilePath,
		Keywords:          r.Keywords,
		Parameters:        r.Parameters,
		RequiredResources: r.RequiredResources,
		TimeoutSec:        r.TimeoutSec,
		ExpectedExit:      r.ExpectedExit,
		Dependencies:      r.Dependencies,
		EnvironmentMods:   r.EnvironmentMods,
		Assets:            r.Assets,
		Exclusive:         r.Exclusive,
		OnOptions:         r.OnOptions,
		Status:            r.Status,
		Detail:            r.Detail,
		StartTS:           r.StartTS,
		StopTS:            r.StopTS,
		ReturnCode:        r.ReturnCode,
		WorkingDir:        r.WorkingDir,
		Mask:              r.Mask,
	}
}
