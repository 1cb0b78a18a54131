package respool

import (
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// poolFile mirrors the YAML schema from §6:
//
//	resource_pool:
//	  - id: str
//	    cpus: [{id: str, slots: int}, ...]
//	    gpus: [{id: str, slots: int}, ...]   # optional
type poolFile struct {
	ResourcePool []poolFileNode `yaml:"resource_pool"`
}

type poolFileNode struct {
	ID   string             `yaml:"id"`
	CPUs []poolFileInstance `yaml:"cpus"`
	GPUs []poolFileInstance `yaml:"gpus"`
}

type poolFileInstance struct {
	ID    string `yaml:"id"`
	Slots int    `yaml:"slots"`
}

// LoadPoolFile parses the YAML resource-pool schema from disk and fills
// a fresh Pool from it.
func LoadPoolFile(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pf poolFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, err
	}

	nodes := make([]NodeSpec, 0, len(pf.ResourcePool))

	for _, n := range pf.ResourcePool {
		spec := NodeSpec{ID: n.ID, Resources: map[string][]InstanceSpec{
			CPUType: toInstanceSpecs(n.CPUs),
		}}

		if len(n.GPUs) > 0 {
			spec.Resources[GPUType] = toInstanceSpecs(n.GPUs)
		}

		nodes = append(nodes, spec)
	}

	pool := New()
	if err := pool.Fill(nodes); err != nil {
		return nil, err
	}

	return pool, nil
}

func toInstanceSpecs(in []poolFileInstance) []InstanceSpec {
	out := make([]InstanceSpec, 0, len(in))
	for _, i := range in {
		out = append(out, InstanceSpec{LocalID: i.ID, Slots: i.Slots})
	}

	return out
}

// DefaultPool builds a single-node pool sized from runtime.NumCPU(),
// used when neither `run --pool` nor the session config names a pool
// file.
func DefaultPool() *Pool {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}

	instances := make([]InstanceSpec, 0, n)
	for i := range n {
		instances = append(instances, InstanceSpec{LocalID: strconv.Itoa(i), Slots: 1})
	}

	pool := New()
	_ = pool.Fill([]NodeSpec{{ID: "localhost", Resources: map[string][]InstanceSpec{CPUType: instances}}})

	return pool
}
