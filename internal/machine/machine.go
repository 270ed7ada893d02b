// Package machine models the capacity of the HPC machines jobs are submitted
// to: node/cpu layout resolution, walltime ceilings, and the number of
// chained jobs needed to cover a walltime beyond one job's limit.
package machine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/scheduler"
	"github.com/jackleland/autospice/internal/utils"
)

// Machine describes one target machine's hard limits. Instances are
// immutable, constructed once at process start from the registry.
type Machine struct {
	Name          string
	CpusPerNode   int  // maximum cpus per node
	MemoryPerNode int  // GB per node
	MaxNodes      int  // maximum nodes per job
	MaxJobTime    *int // maximum single-job walltime in hours; nil = unbounded
	Scheduler     *scheduler.Scheduler
	Modules       []string // environment modules loaded in every job script
}

// ResolveLayout maps a requested total cpu count onto a (nodes, cpusPerNode)
// layout. When nodes is zero the node count is derived by dividing the cpu
// count across full nodes, rounding up; an explicit node count is validated
// as given. The cpu count must split evenly across the resulting nodes.
//
// Under-filled nodes and a request for the machine's full node count are
// reported as warnings; infeasible layouts fail with a ConfigError.
func (m *Machine) ResolveLayout(totalCpus, nodes int) (int, int, error) {
	if totalCpus <= 0 {
		return 0, 0, errs.Configf("requested cpu count (%d) must be positive", totalCpus)
	}

	if nodes == 0 {
		nodes = (totalCpus + m.CpusPerNode - 1) / m.CpusPerNode
	} else if nodes < 0 {
		return 0, 0, errs.Configf("requested node count (%d) must be positive", nodes)
	}

	if totalCpus%nodes != 0 {
		return 0, 0, errs.Configf(
			"requested cpu count (%d) does not split evenly across %d nodes on %s",
			totalCpus, nodes, m.Name)
	}
	cpusPerNode := totalCpus / nodes

	if cpusPerNode > m.CpusPerNode {
		return 0, 0, errs.Configf(
			"layout requires %d cpus per node but %s has only %d per node",
			cpusPerNode, m.Name, m.CpusPerNode)
	}
	if cpusPerNode < m.CpusPerNode {
		utils.PrintWarning("Inefficient number of processors chosen - you won't be fully "+
			"utilising every node (%d of %d cpus per node). Your account will also be "+
			"charged for all nodes occupied!", cpusPerNode, m.CpusPerNode)
	}

	if nodes > m.MaxNodes {
		return 0, 0, errs.Configf(
			"number of nodes requested (%d) is greater than the maximum available on %s (%d)",
			nodes, m.Name, m.MaxNodes)
	}
	if nodes == m.MaxNodes {
		utils.PrintWarning("Using maximum acceptable number of nodes on %s. If you have any "+
			"currently running jobs this job will not be run until they have finished.", m.Name)
	}

	return nodes, cpusPerNode, nil
}

// SafeJobTimeHours returns the machine's maximum single-job time reduced by a
// 10%% margin (floored to whole hours) to leave headroom for I/O before a
// hard kill. A one-hour limit is returned unreduced. Machines without a
// defined maximum job time fail with an UndefinedCapacityError.
func (m *Machine) SafeJobTimeHours() (int, error) {
	if m.MaxJobTime == nil || *m.MaxJobTime <= 0 {
		return 0, &errs.UndefinedCapacityError{Machine: m.Name}
	}
	if *m.MaxJobTime == 1 {
		return 1, nil
	}
	return *m.MaxJobTime * 9 / 10, nil
}

// JobsForWalltime returns the number of sequential, chained jobs needed to
// cover the requested walltime. Machines without a maximum job time always
// return 1. When useSafe is set the splitting threshold is the safe job time
// rather than the hard maximum; note the walltime actually requested per
// sub-job is still pinned to the hard maximum by the caller.
func (m *Machine) JobsForWalltime(requested Walltime, useSafe bool) (int, error) {
	if m.MaxJobTime == nil {
		return 1, nil
	}

	perJobHours := *m.MaxJobTime
	if useSafe {
		safe, err := m.SafeJobTimeHours()
		if err != nil {
			return 0, err
		}
		perJobHours = safe
	}
	if perJobHours <= 0 {
		return 0, &errs.UndefinedCapacityError{Machine: m.Name}
	}

	perJobSeconds := perJobHours * 3600
	n := (requested.Seconds() + perJobSeconds - 1) / perJobSeconds
	if n < 1 {
		n = 1
	}
	return n, nil
}

// MaxWalltime returns the machine's hard single-job walltime, which chained
// sub-jobs are pinned to. Fails with an UndefinedCapacityError on unbounded
// machines.
func (m *Machine) MaxWalltime() (Walltime, error) {
	if m.MaxJobTime == nil || *m.MaxJobTime <= 0 {
		return 0, &errs.UndefinedCapacityError{Machine: m.Name}
	}
	return WalltimeHours(*m.MaxJobTime), nil
}

// IsolatedFirstNodeDistribution splits totalCpus across nodes so that node 0
// carries exactly one task and the remaining nodes split the rest as evenly
// as possible, remainder on the last node. The result is a comma-separated
// per-node task count list consumed by the arbitrary-placement launcher.
func (m *Machine) IsolatedFirstNodeDistribution(totalCpus, nodes int) (string, error) {
	if nodes < 2 {
		return "", errs.Configf(
			"isolating the first node requires at least 2 nodes, got %d", nodes)
	}
	if totalCpus < nodes {
		return "", errs.Configf(
			"cannot distribute %d cpus across %d nodes with an isolated first node",
			totalCpus, nodes)
	}

	rest := totalCpus - 1
	per := rest / (nodes - 1)
	rem := rest % (nodes - 1)
	last := per + rem
	if last > m.CpusPerNode {
		return "", errs.Configf(
			"isolated-node distribution places %d tasks on the last node but %s has only %d cpus per node",
			last, m.Name, m.CpusPerNode)
	}

	counts := make([]string, nodes)
	counts[0] = "1"
	for i := 1; i < nodes-1; i++ {
		counts[i] = strconv.Itoa(per)
	}
	counts[nodes-1] = strconv.Itoa(last)
	return strings.Join(counts, ","), nil
}

// ModulesBlock renders the environment-module load block placed between the
// scheduler header and the script body. Empty when the machine loads none.
func (m *Machine) ModulesBlock() string {
	if len(m.Modules) == 0 {
		return ""
	}
	var b strings.Builder
	for _, mod := range m.Modules {
		fmt.Fprintf(&b, "module load %s\n", mod)
	}
	b.WriteString("\n")
	return b.String()
}
