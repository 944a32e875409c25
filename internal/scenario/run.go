package scenario

import (
	"errors"
	"fmt"
)

// RunAll executes every scenario enabled in the configuration, in a fixed
// order, and stops at the first failure
func (r *Runner) RunAll() error {
	sc := r.cfg.Scenarios
	if !sc.VettingTable && !sc.FastVoting && !sc.LocalesAndPages && !sc.AnnotationVoting {
		return errors.New("no scenario enabled")
	}
	if sc.VettingTable {
		if err := r.VettingTable(); err != nil {
			return fmt.Errorf("vetting table: %w", err)
		}
	}
	if sc.FastVoting {
		steps, err := r.FastVoteSteps()
		if err != nil {
			return err
		}
		report, err := r.FastVote(steps)
		if err != nil {
			return err
		}
		r.log.Info("fast vote finished", "iterations", report.Iterations, "passed", report.Passed,
			"restarts", report.Restarts, "warnings", report.Warnings, "mean", report.Mean())
	}
	if sc.LocalesAndPages {
		if _, err := r.Sweep("locales and pages", r.cfg.Sweep); err != nil {
			return err
		}
	}
	if sc.AnnotationVoting {
		if _, err := r.Sweep("annotation voting", r.cfg.Annotations); err != nil {
			return err
		}
	}
	return nil
}

// FastVoteSteps returns the configured step file's steps or the built-in plan
func (r *Runner) FastVoteSteps() ([]Step, error) {
	fv := r.cfg.FastVote
	if fv.StepsFile != "" {
		return LoadSteps(fv.StepsFile)
	}
	return FastVotePlan(fv.RowKeys, fv.NewValue), nil
}
