// Package orchestrator turns a validated submission config into batch
// scripts and queued jobs. Planning resolves the machine, code and job
// layout and prepares the output directory; execution writes the scripts
// for every scan variant and chains the submissions.
package orchestrator

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/jackleland/autospice/internal/code"
	"github.com/jackleland/autospice/internal/config"
	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/machine"
	"github.com/jackleland/autospice/internal/scan"
	"github.com/jackleland/autospice/internal/scheduler"
	"github.com/jackleland/autospice/internal/utils"
)

// scriptStem is the base name of generated job scripts. The first job in a
// chain is melange_0, every follow-up job reuses melange_1.
const scriptStem = "melange"

// Options control how a submission runs, independent of the config file.
type Options struct {
	DryRun          bool
	SafeJobTime     bool
	Backup          bool
	SubmitJob       bool
	RestartCopyMode code.RestartCopyMode
}

// SubmitFunc submits one script with an optional job dependency and returns
// the new job's id.
type SubmitFunc func(s *scheduler.Scheduler, scriptPath, dependencyJobID string) (string, error)

// Orchestrator wires the machine and code registries to the filesystem and
// the batch system.
type Orchestrator struct {
	Machines machine.Registry
	Codes    code.Registry

	// Fs receives all generated files. Dry runs swap in a memory fs.
	Fs afero.Fs

	// Submit is swapped out in tests and on dry runs.
	Submit SubmitFunc
}

// New returns an Orchestrator over the built-in registries and the real
// filesystem.
func New() *Orchestrator {
	return &Orchestrator{
		Machines: machine.DefaultRegistry(),
		Codes:    code.DefaultRegistry(),
		Fs:       afero.NewOsFs(),
		Submit:   scheduler.Submit,
	}
}

// Plan is a fully resolved submission, ready to execute.
type Plan struct {
	Config  *config.Config
	Machine *machine.Machine
	Code    code.SimulationCode
	CodeCfg code.Config

	Params   *scheduler.Params
	Call     *code.CallParams
	Walltime machine.Walltime
	NJobs    int

	// Variants is empty for a plain run and holds one entry per scan
	// combination for a parameter scan.
	Variants []scan.Variant
	Input    *code.InputFile

	OutputDir string

	// Scripts collects every rendered job script, so callers can inspect
	// the generated text without touching the filesystem.
	Scripts []Script

	// ownsOutputDir is set when planning created OutputDir. Restarts that
	// run in a pre-existing directory leave it unset, so Cleanup never
	// removes user data.
	ownsOutputDir bool

	opts Options
}

// Script is a rendered job script and the path it was written to.
type Script struct {
	Path    string
	Content string
}

// Plan resolves a submission config into a Plan. It validates everything
// that can fail before any job is queued, and prepares the output directory.
func (o *Orchestrator) Plan(cfg *config.Config, opts Options) (*Plan, error) {
	m, err := o.Machines.Lookup(cfg.Scheduler.Machine)
	if err != nil {
		return nil, err
	}
	simCode, err := o.Codes.Lookup(cfg.Code.CodeName)
	if err != nil {
		return nil, err
	}
	utils.PrintMessage("User %s on machine %s", cfg.Scheduler.User, m.Name)

	p := &Plan{Config: cfg, Machine: m, Code: simCode, opts: opts}
	if err := p.processSchedulerOpts(opts.SafeJobTime); err != nil {
		return nil, err
	}
	if err := p.checkCodePaths(opts.DryRun); err != nil {
		return nil, err
	}

	p.CodeCfg, err = simCode.ValidateConfig(cfg.CodeSpecific)
	if err != nil {
		return nil, err
	}
	p.Call.Config = p.CodeCfg

	p.Input, err = code.LoadInputFile(p.Call.InputFile)
	if err != nil {
		return nil, err
	}
	if err := simCode.VerifyInputFile(p.Input, p.CodeCfg, p.Call.TotalCpus); err != nil {
		return nil, err
	}

	if simCode.IsParameterScan(p.Input) {
		p.Variants, err = scan.Expand(simCode.ScanningParameters(p.Input), 0)
		if err != nil {
			return nil, err
		}
		utils.PrintMessage("Submitting a parameter scan over the following %d combinations:", len(p.Variants))
		for _, line := range scan.Preview(p.Variants) {
			utils.PrintMessage("\t%s", line)
		}
	}

	p.OutputDir, err = simCode.DirectoryIO(p.Call.OutputDir, p.CodeCfg, opts.DryRun, opts.RestartCopyMode)
	if err != nil {
		return nil, err
	}
	p.Call.OutputDir = p.OutputDir
	p.ownsOutputDir = p.CodeCfg.Restart() == code.RestartNone ||
		opts.RestartCopyMode == code.CopyNew

	// The output directory keeps a record of the exact input and config
	// used for the run.
	if !opts.DryRun {
		if err := o.copyFileIn(p.Call.InputFile, p.OutputDir); err != nil {
			return nil, err
		}
		if err := o.copyFileIn(cfg.Path, p.OutputDir); err != nil {
			return nil, err
		}
	}

	if cfg.Code.CopyExe {
		if err := simCode.CopyExecutable(p.Call, opts.DryRun); err != nil {
			return nil, err
		}
	}

	p.Params.Set(scheduler.ParamOutLog, filepath.Join(p.OutputDir, "log.out"))
	p.Params.Set(scheduler.ParamErrLog, filepath.Join(p.OutputDir, "log.err"))
	return p, nil
}

// processSchedulerOpts resolves the job layout and fills the scheduler
// parameter set in submission order.
func (p *Plan) processSchedulerOpts(safeJobTime bool) error {
	s := p.Config.Scheduler
	m := p.Machine

	nodes, cpusPerNode, err := m.ResolveLayout(s.NCpus, s.Nodes)
	if err != nil {
		return err
	}

	walltime := s.Walltime
	nJobs, err := m.JobsForWalltime(walltime, safeJobTime)
	if err != nil {
		return err
	}
	if nJobs > 1 {
		maxWalltime, err := m.MaxWalltime()
		if err != nil {
			return err
		}
		if safeJobTime {
			safe, err := m.SafeJobTimeHours()
			if err != nil {
				return err
			}
			utils.PrintWarning("Walltime requested (%s) exceeds the maximum safe walltime for a single job on %s, "+
				"which is %dhrs. The job will be split into %d to complete successfully, "+
				"but the requested time will remain %s per job",
				walltime, m.Name, safe, nJobs, maxWalltime)
		} else {
			utils.PrintWarning("Walltime requested (%s) exceeds the maximum walltime for a single job on %s, "+
				"which is %s. The job will be split into %d to complete successfully",
				walltime, m.Name, maxWalltime, nJobs)
		}
		walltime = maxWalltime
	}

	params := scheduler.NewParams()
	params.Set(scheduler.ParamJobName, s.JobName)
	params.Set(scheduler.ParamNodes, nodes)
	params.Set(scheduler.ParamCpusPerNode, cpusPerNode)
	params.Set(scheduler.ParamWalltime, walltime.String())

	optional := map[string]string{
		scheduler.ParamQueue:       s.Queue,
		scheduler.ParamQos:         s.Qos,
		scheduler.ParamAccount:     s.Account,
		scheduler.ParamEmail:       s.Email,
		scheduler.ParamEmailEvents: s.EmailEvents,
	}
	if s.Memory > 0 {
		memory := s.Memory
		if available := m.MemoryPerNode * nodes; memory > available {
			utils.PrintWarning("Requested amount of memory exceeds the maximum available on %s. "+
				"With %d node(s) the maximum available memory is %dGB and the job will be submitted "+
				"with that amount. To request %dGB you would need %d nodes",
				m.Name, nodes, available, memory, (memory+m.MemoryPerNode-1)/m.MemoryPerNode)
			memory = available
		}
		optional[scheduler.ParamMemory] = strconv.Itoa(memory)
	}
	for _, key := range m.Scheduler.Optional {
		if value, ok := optional[key]; ok && value != "" {
			params.Set(key, value)
		}
	}
	if params.Has(scheduler.ParamEmail) && !params.Has(scheduler.ParamEmailEvents) &&
		m.Scheduler.IsOptional(scheduler.ParamEmailEvents) {
		params.Set(scheduler.ParamEmailEvents, m.Scheduler.DefaultEmailEvents)
	}

	p.warnIgnoredParams(params)

	call := &code.CallParams{TotalCpus: s.NCpus}
	if s.IsolateFirstNode {
		call.NodeDistribution, err = m.IsolatedFirstNodeDistribution(s.NCpus, nodes)
		if err != nil {
			return err
		}
	}

	p.Params = params
	p.Call = call
	p.Walltime = walltime
	p.NJobs = nJobs
	return nil
}

// warnIgnoredParams reports config keys the target scheduler has no use
// for, so they are not silently dropped.
func (p *Plan) warnIgnoredParams(params *scheduler.Params) {
	implemented := map[string]bool{
		"machine": true, "user": true, "n_cpus": true, "isolate_first_node": true,
	}
	for _, key := range params.Keys() {
		implemented[key] = true
	}
	var ignored []string
	for key := range p.Config.Scheduler.Raw {
		if !implemented[key] {
			ignored = append(ignored, key)
		}
	}
	if len(ignored) > 0 {
		utils.PrintWarning("The following parameters have not been implemented for the scheduler (%s) on %s "+
			"and will be ignored on this run: %v", p.Machine.Scheduler.Name, p.Machine.Name, ignored)
	}
}

// checkCodePaths resolves the code paths to absolute ones and checks they
// exist. The executable check is skipped on dry runs, where the binary may
// not have been built yet.
func (p *Plan) checkCodePaths(dryRun bool) error {
	c := p.Config.Code

	execDir, err := filepath.Abs(c.Bin)
	if err != nil {
		return err
	}
	if !utils.IsDir(execDir) {
		return errs.Configf("the bin option must be a valid directory with a binary in it, got %s", execDir)
	}

	inputFile, err := filepath.Abs(c.Input)
	if err != nil {
		return err
	}
	if !utils.IsFile(inputFile) {
		return &errs.NotFoundError{Kind: "input file", Path: inputFile}
	}

	executable := c.Executable
	if !filepath.IsAbs(executable) {
		executable = filepath.Join(execDir, executable)
	}
	if !utils.IsFile(executable) && !dryRun {
		return &errs.NotFoundError{Kind: "executable file", Path: executable}
	}

	outputDir, err := filepath.Abs(c.Output)
	if err != nil {
		return err
	}

	p.Call.ExecutableDir = execDir
	p.Call.Executable = executable
	p.Call.InputFile = inputFile
	p.Call.OutputDir = outputDir
	return nil
}

// PrintChoices summarises the resolved submission before the user commits
// to it.
func (p *Plan) PrintChoices() {
	jobName, _ := p.Params.Get(scheduler.ParamJobName)
	utils.PrintMessage("Chosen options for simulation run are:")
	utils.PrintMessage("  Run name:             %s", utils.StyleName(jobName))
	utils.PrintMessage("  Machine:              %s", p.Machine.Name)
	utils.PrintMessage("  Code:                 %s", p.Code.Name())
	utils.PrintMessage("  Input file path:      %s", utils.StylePath(p.Call.InputFile))
	utils.PrintMessage("  Output directory:     %s", utils.StylePath(p.OutputDir))
	utils.PrintMessage("  Executable file path: %s", utils.StylePath(p.Call.Executable))
	utils.PrintMessage("  Walltime:             %s", p.Walltime)
	if queue, ok := p.Params.Get(scheduler.ParamQueue); ok {
		utils.PrintMessage("  Queue:                %s", queue)
	}
	if account, ok := p.Params.Get(scheduler.ParamAccount); ok {
		utils.PrintMessage("  Account:              %s", account)
	}
	nodes, _ := p.Params.Get(scheduler.ParamNodes)
	utils.PrintMessage("Will use %d cpus across %s nodes", p.Call.TotalCpus, nodes)

	total := time.Duration(p.Walltime.Seconds()*p.Call.TotalCpus) * time.Second
	utils.PrintMessage("Total CPU time requested is %s", total)
	if p.NJobs > 1 {
		utils.PrintMessage("The run will be chained across %d jobs", p.NJobs)
	}
	p.Code.PrintOptions(p.CodeCfg)
}

// Cleanup removes the output directory that planning created, used when the
// user declines a planned submission. A restart running in a pre-existing
// simulation directory is left untouched.
func (p *Plan) Cleanup() error {
	if p.opts.DryRun || !p.ownsOutputDir || p.OutputDir == "" {
		return nil
	}
	return os.RemoveAll(p.OutputDir)
}

// copyFileIn records src in dir. A restart directory already holds the
// records of the previous run, so the copy takes the next free name
// instead of overwriting them.
func (o *Orchestrator) copyFileIn(src, dir string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	dst := utils.NextAvailableFilename(filepath.Join(dir, filepath.Base(src)))
	return afero.WriteFile(o.Fs, dst, content, utils.PermFile)
}
