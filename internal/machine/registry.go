package machine

import (
	"sort"
	"strings"

	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/scheduler"
)

func hours(h int) *int {
	return &h
}

// Built-in machines. MarconiSkl is the Marconi SKL partition; MarconiSklFua
// is the same hardware behind the fuaspecial queue with its long job limit;
// Cumulus has no upper walltime bound.
var (
	MarconiSkl = &Machine{
		Name:          "marconi",
		CpusPerNode:   48,
		MemoryPerNode: 182,
		MaxNodes:      64,
		MaxJobTime:    hours(24),
		Scheduler:     scheduler.Slurm,
		Modules:       []string{"intel/pe-xe-2018--binary", "intelmpi/2018--binary"},
	}

	MarconiSklFua = &Machine{
		Name:          "marconi_long",
		CpusPerNode:   48,
		MemoryPerNode: 182,
		MaxNodes:      64,
		MaxJobTime:    hours(180),
		Scheduler:     scheduler.Slurm,
		Modules:       []string{"intel/pe-xe-2018--binary", "intelmpi/2018--binary"},
	}

	Cumulus = &Machine{
		Name:          "cumulus",
		CpusPerNode:   32,
		MemoryPerNode: 512,
		MaxNodes:      16,
		MaxJobTime:    nil,
		Scheduler:     scheduler.PBS,
	}
)

// Registry maps machine names to their capacity models.
type Registry map[string]*Machine

// DefaultRegistry returns the built-in machine registry.
func DefaultRegistry() Registry {
	return Registry{
		"marconi":      MarconiSkl,
		"marconi_long": MarconiSklFua,
		"cumulus":      Cumulus,
	}
}

// Lookup resolves a machine by name, case-insensitively.
func (r Registry) Lookup(name string) (*Machine, error) {
	if m, ok := r[strings.ToLower(name)]; ok {
		return m, nil
	}
	return nil, errs.Configf("machine %q is not supported; available machines are: %s",
		name, strings.Join(r.Names(), ", "))
}

// Names returns the registered machine names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
