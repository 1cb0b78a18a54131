package batchrunner

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gruntwork-io/canary/internal/respool"
)

// ConfigStub is the compute allocation the re-invoked sub-tool reads
// back to learn what the scheduler actually handed the job, since the
// scheduler's own allocation (node list, per-node slot counts) isn't
// otherwise visible to a process it spawned.
type ConfigStub struct {
	BatchID   string           `json:"batch_id"`
	TaskCount int              `json:"task_count"`
	Nodes     []ConfigStubNode `json:"nodes"`
	CaseIDs   []string         `json:"case_ids"`
}

// ConfigStubNode records one node's local resource ids, keyed by type,
// as the scheduler allocated them.
type ConfigStubNode struct {
	ID    string              `json:"id"`
	Slots map[string][]string `json:"slots"`
}

// WriteConfigStub renders the allocation job's Acquisition resolved to,
// as the config file the batch's re-invocation command will load.
func WriteConfigStub(path string, job Job, caseIDs []string, pool *respool.Pool, acq *respool.Acquisition) error {
	stub := ConfigStub{
		BatchID:   job.Name,
		TaskCount: job.TaskCount,
		CaseIDs:   caseIDs,
	}

	if acq != nil {
		stub.Nodes = []ConfigStubNode{{
			ID: "localhost",
			Slots: map[string][]string{
				respool.CPUType: pool.LocalIDs(acq, respool.CPUType),
			},
		}}
	}

	data, err := json.MarshalIndent(stub, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
