package code

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	cp "github.com/otiai10/copy"
	"github.com/spf13/afero"

	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/utils"
)

// timeNow is swapped out in tests to pin the stay_in backup timestamp.
var timeNow = time.Now

// DirectoryIO implements SimulationCode. Fresh runs get a newly created
// directory, falling back to the next available sibling when the requested
// one already exists. Restarts require an existing directory and back it up
// according to the copy mode before the run starts.
func (s *Spice) DirectoryIO(outputDir string, cfg Config, dryRun bool, copyMode RestartCopyMode) (string, error) {
	if cfg.Restart() == RestartNone {
		if utils.IsDir(outputDir) {
			utils.PrintWarning("%s already exists, searching for next available similar directory", outputDir)
			outputDir = utils.NextAvailableDir(outputDir)
		} else if exists(outputDir) {
			return "", errs.Configf("desired output path %s exists and is not a directory", outputDir)
		}
		utils.PrintMessage("Using directory %s", outputDir)
		if !dryRun {
			if err := os.MkdirAll(outputDir, utils.PermDir); err != nil {
				return "", err
			}
		}
		return outputDir, nil
	}

	switch {
	case exists(outputDir) && s.IsOwnOutputDir(afero.NewOsFs(), outputDir):
		return s.copyOnRestart(outputDir, dryRun, copyMode)
	case utils.IsDir(outputDir):
		utils.PrintWarning("Directory %s doesn't look like a %s simulation output folder, will continue anyway", outputDir, s.Name())
		return s.copyOnRestart(outputDir, dryRun, copyMode)
	case exists(outputDir):
		return "", errs.Configf("desired directory %s is not a %s directory and therefore not restartable", outputDir, s.Name())
	default:
		return "", &errs.NotFoundError{Kind: "restart directory", Path: outputDir}
	}
}

// copyOnRestart backs up an existing output directory per the copy mode and
// returns the directory the restarted run should use.
func (s *Spice) copyOnRestart(outputDir string, dryRun bool, mode RestartCopyMode) (string, error) {
	switch mode {
	case CopyNone:
		utils.PrintMessage("You've opted not to backup the restart directory")
		return outputDir, nil

	case CopyNew:
		restartDir := utils.NextAvailableDir(outputDir + "_restart")
		utils.PrintMessage("Restarting %s run in directory %s, leaving a backup of start files in %s",
			s.Name(), restartDir, outputDir)
		if !dryRun {
			if err := copyTree(outputDir, restartDir); err != nil {
				return "", err
			}
		}
		return restartDir, nil

	case CopyStayOut:
		restartDir := utils.NextAvailableDir(outputDir + "_at_restart")
		utils.PrintMessage("Restarting %s run in directory %s, making a backup of start files in %s",
			s.Name(), outputDir, restartDir)
		if !dryRun {
			if err := copyTree(outputDir, restartDir); err != nil {
				return "", err
			}
		}
		return outputDir, nil

	case CopyStayIn:
		stamp := timeNow().Format("20060102-1504")
		restartDir := utils.NextAvailableDir(filepath.Join(outputDir, "backup_at_restart_"+stamp))
		utils.PrintMessage("Restarting %s run in directory %s, making a backup of start files in %s",
			s.Name(), outputDir, restartDir)
		if !dryRun {
			if err := copyTree(outputDir, restartDir); err != nil {
				return "", err
			}
		}
		return outputDir, nil

	default:
		return "", errs.Configf("invalid restart copy mode %q", mode)
	}
}

// copyTree copies src to dst, skipping anything with "backup" in its name.
// The skip also keeps a stay_in backup from recursing into itself.
func copyTree(src, dst string) error {
	return cp.Copy(src, dst, cp.Options{
		Skip: func(info os.FileInfo, src, dest string) (bool, error) {
			return strings.Contains(filepath.Base(src), "backup"), nil
		},
	})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
