package orchestrator

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/jackleland/autospice/internal/scheduler"
	"github.com/jackleland/autospice/internal/utils"
)

// Execute writes the job scripts for every run in the plan and submits
// them. A parameter scan gets one run per variant, each in its own
// sub-directory with its own substituted input file. Runs longer than the
// machine's job limit are chained with an after-any dependency on the
// previous job.
func (o *Orchestrator) Execute(p *Plan) error {
	if len(p.Variants) == 0 {
		return o.executeRun(p)
	}

	baseDir := p.OutputDir
	baseInput := p.Call.InputFile
	jobName, _ := p.Params.Get(scheduler.ParamJobName)

	for _, variant := range p.Variants {
		variantDir := filepath.Join(baseDir, variant.Label)
		if err := o.Fs.MkdirAll(variantDir, utils.PermDir); err != nil {
			return err
		}

		p.Input.ApplyVariant(variant)
		inputFile := filepath.Join(variantDir, "input.inp")
		if err := p.Input.WriteTo(o.Fs, inputFile); err != nil {
			return err
		}

		p.Params.Set(scheduler.ParamJobName, jobName+"_"+variant.Label)
		p.Params.Set(scheduler.ParamOutLog, filepath.Join(variantDir, "log.out"))
		p.Params.Set(scheduler.ParamErrLog, filepath.Join(variantDir, "log.err"))
		p.Call.OutputDir = variantDir
		p.Call.InputFile = inputFile

		if err := o.executeRun(p); err != nil {
			return err
		}
	}

	p.Params.Set(scheduler.ParamJobName, jobName)
	p.Call.OutputDir = baseDir
	p.Call.InputFile = baseInput
	return nil
}

// executeRun writes and submits the script chain for a single run.
func (o *Orchestrator) executeRun(p *Plan) error {
	script, err := o.writeJobScript(p, "_0", false)
	if err != nil {
		return err
	}
	if p.opts.DryRun {
		utils.PrintMessage("Job script for %s:\n%s", script.Path, script.Content)
		return nil
	}
	if !p.opts.SubmitJob {
		utils.PrintMessage("Job script written as %s", script.Path)
		return nil
	}

	jobID, err := o.Submit(p.Machine.Scheduler, script.Path, "")
	if err != nil {
		return err
	}
	utils.PrintSuccess("Submitted job number %s", jobID)
	jobs := []string{jobID}

	if p.NJobs > 1 {
		chained, err := o.writeJobScript(p, "_1", true)
		if err != nil {
			return err
		}
		for i := 0; i < p.NJobs-1; i++ {
			jobID, err = o.Submit(p.Machine.Scheduler, chained.Path, jobID)
			if err != nil {
				return err
			}
			utils.PrintSuccess("Submitted multisubmission %d, job number %s", i, jobID)
			jobs = append(jobs, jobID)
		}
	}

	// jobs.txt lets a finished run cancel the rest of its chain.
	jobsFile := filepath.Join(p.Call.OutputDir, "jobs.txt")
	return afero.WriteFile(o.Fs, jobsFile, []byte(strings.Join(jobs, "\n")+"\n"), utils.PermFile)
}

// writeJobScript renders the header, module block and body into a script in
// the run's output directory, and records the rendered text on the plan.
func (o *Orchestrator) writeJobScript(p *Plan, label string, multiSubmission bool) (Script, error) {
	header, err := p.Machine.Scheduler.RenderHeader(p.Params)
	if err != nil {
		return Script{}, err
	}
	body, err := p.Code.RenderBody(p.Machine, p.Call, multiSubmission, p.opts.SafeJobTime, p.opts.Backup)
	if err != nil {
		return Script{}, err
	}

	script := Script{
		Path:    filepath.Join(p.Call.OutputDir, scriptStem+label+p.Machine.Scheduler.ScriptExt),
		Content: header + p.Machine.ModulesBlock() + body,
	}
	if err := afero.WriteFile(o.Fs, script.Path, []byte(script.Content), utils.PermExec); err != nil {
		return Script{}, err
	}
	p.Scripts = append(p.Scripts, script)
	return script, nil
}
