package scheduler

import "regexp"

// Slurm is the Scheduler variant for the SLURM workload manager.
var Slurm = &Scheduler{
	Name:               "Slurm",
	SubmitCommand:      "sbatch",
	CancelCommand:      "scancel",
	ScriptExt:          ".slurm",
	Shebang:            "#!/bin/bash",
	DefaultEmailEvents: "ALL",
	Templates: map[string]string{
		ParamJobName:     "#SBATCH -J %s",
		ParamNodes:       "#SBATCH -N %s",
		ParamCpusPerNode: "#SBATCH --tasks-per-node=%s",
		ParamWalltime:    "#SBATCH -t %s",
		ParamOutLog:      "#SBATCH -o %s",
		ParamErrLog:      "#SBATCH -e %s",
		ParamQueue:       "#SBATCH -p %s",
		ParamQos:         "#SBATCH --qos=%s",
		ParamAccount:     "#SBATCH -A %s",
		ParamMemory:      "#SBATCH --mem=%sgb",
		ParamEmail:       "#SBATCH --mail-user=%s",
		ParamEmailEvents: "#SBATCH --mail-type=%s",
	},
	Required: []string{
		ParamJobName, ParamNodes, ParamCpusPerNode, ParamWalltime, ParamOutLog, ParamErrLog,
	},
	Optional: []string{
		ParamQueue, ParamQos, ParamAccount, ParamMemory, ParamEmail, ParamEmailEvents,
	},
	JobIDPattern: regexp.MustCompile(`Submitted batch job (\d+)`),
	DependencyArgs: func(jobID string) []string {
		return []string{"-d", "afterany:" + jobID}
	},
}

// PBS is the Scheduler variant for the PBS/Torque queueing system. The node
// and cpu directives share a single physical line (-l nodes=N:ppn=M), which
// is expressed through JoinedParams.
var PBS = &Scheduler{
	Name:               "PBS",
	SubmitCommand:      "qsub",
	CancelCommand:      "qdel",
	ScriptExt:          ".pbs",
	Shebang:            "#!/bin/bash",
	DefaultEmailEvents: "abe",
	Templates: map[string]string{
		ParamJobName:     "#PBS -N %s",
		ParamNodes:       "#PBS -l nodes=%s",
		ParamCpusPerNode: ":ppn=%s",
		ParamWalltime:    "#PBS -l walltime=%s",
		ParamOutLog:      "#PBS -o %s",
		ParamErrLog:      "#PBS -e %s",
		ParamInitialDir:  "#PBS -d %s",
		ParamQueue:       "#PBS -q %s",
		ParamMemory:      "#PBS -l pmem=%sgb",
		ParamEmail:       "#PBS -M %s",
		ParamEmailEvents: "#PBS -m %s",
	},
	Required: []string{
		ParamJobName, ParamNodes, ParamCpusPerNode, ParamWalltime, ParamOutLog, ParamErrLog,
	},
	Optional: []string{
		ParamQueue, ParamEmail, ParamEmailEvents, ParamMemory, ParamInitialDir,
	},
	JoinedParams: []string{ParamNodes, ParamCpusPerNode},
	JobIDPattern: regexp.MustCompile(`^(\d+\S*)`),
	DependencyArgs: func(jobID string) []string {
		return []string{"-W", "depend=afterany:" + jobID}
	},
}

// Loadleveller is the Scheduler variant for the IBM LoadLeveler queueing
// system. Its header carries an extra "# @ queue" directive after the
// standard block, and it has no command-line job-dependency mechanism.
var Loadleveller = &Scheduler{
	Name:               "Loadleveller",
	SubmitCommand:      "llsubmit",
	CancelCommand:      "llcancel",
	ScriptExt:          ".ll",
	Shebang:            "#!/bin/bash",
	DefaultEmailEvents: "always",
	Templates: map[string]string{
		ParamJobName:     "# @ job_name = %s",
		ParamNodes:       "# @ nodes = %s",
		ParamCpusPerNode: "# @ cpus_per_node = %s",
		ParamWalltime:    "# @ walltime = %s",
		ParamOutLog:      "# @ output = %s",
		ParamErrLog:      "# @ error = %s",
		ParamInitialDir:  "# @ initialdir = %s",
		ParamQueue:       "# @ queue = %s",
		ParamMemory:      "# @ requirements = (Memory >= %sgb)",
		ParamEmail:       "# @ notify_user = %s",
		ParamEmailEvents: "# @ notification = %s",
	},
	Required: []string{
		ParamJobName, ParamNodes, ParamCpusPerNode, ParamWalltime, ParamOutLog, ParamErrLog,
	},
	Optional: []string{
		ParamQueue, ParamEmail, ParamEmailEvents, ParamMemory, ParamInitialDir,
	},
	Trailer:      []string{"# @ queue"},
	JobIDPattern: regexp.MustCompile(`The job "([^"]+)"`),
}
