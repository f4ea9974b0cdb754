package features

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/drew/ptrun/internal/coverage"
	"github.com/drew/ptrun/internal/model"
	"github.com/drew/ptrun/internal/pipeline"
	"github.com/drew/ptrun/internal/proc"
)

func (c *sharedContext) aTargetWithOnlyATestSuite() error {
	return c.makeTarget(model.Configuration{
		TestSuite:        "proj.tests.base",
		TestSuiteTimeout: 7,
		EntryPointModule: "proj",
	})
}

func (c *sharedContext) aBareTarget() error {
	return c.makeTarget(model.Configuration{
		TestSuiteTimeout: 7,
		EntryPointModule: "proj",
	})
}

func (c *sharedContext) theLintGateIsEnabled() error {
	c.target.Config.RunLint = true
	return nil
}

func (c *sharedContext) theTestCommandFailsWith(msg string) error {
	c.runner().failures["coverage"] = &proc.ExecError{ExitCode: 2, Output: msg}
	c.runner().outputs["coverage"] = msg
	return nil
}

func (c *sharedContext) theInstallCommandTimesOut() error {
	c.runner().failures["pip"] = &proc.TimeoutError{After: 7 * time.Second}
	return nil
}

func (c *sharedContext) thePipelineExecutes() error {
	if err := c.makeVenv(); err != nil {
		return err
	}
	out := c.quietWriter()
	p := pipeline.New(c.runner(), coverage.NewAnalyzer(out), out)
	c.result, c.attempted = p.Execute(context.Background(), c.target, c.venv,
		map[string]string{}, model.NewRunStats(), pipeline.Options{})
	return nil
}

func (c *sharedContext) stepsAreAttempted(n int) error {
	if c.attempted != n {
		return fmt.Errorf("%d steps attempted, expected %d", c.attempted, n)
	}
	return nil
}

func (c *sharedContext) theTargetPasses() error {
	if c.result != nil {
		return fmt.Errorf("expected a pass, got failure at %s: %s", c.result.FailedStep, c.result.Output)
	}
	return nil
}

func (c *sharedContext) theReportedRuntimeIsTheStepTimeout() error {
	if c.result == nil {
		return fmt.Errorf("the target did not fail at all")
	}
	if c.result.RuntimeSeconds != c.target.Config.TestSuiteTimeout {
		return fmt.Errorf("runtime is %ds, expected the %ds timeout",
			c.result.RuntimeSeconds, c.target.Config.TestSuiteTimeout)
	}
	if !c.result.TimedOut {
		return fmt.Errorf("result not marked as timed out")
	}
	return nil
}

func InitializePipelineStepsScenario(sc *godog.ScenarioContext, c *sharedContext) {
	sc.Step(`^a target configured with only a test suite$`, c.aTargetWithOnlyATestSuite)
	sc.Step(`^a target configured with no suite and no gates$`, c.aBareTarget)
	sc.Step(`^the lint gate is enabled$`, c.theLintGateIsEnabled)
	sc.Step(`^the test command fails with "([^"]*)"$`, c.theTestCommandFailsWith)
	sc.Step(`^the install command times out$`, c.theInstallCommandTimesOut)
	sc.Step(`^the pipeline executes$`, c.thePipelineExecutes)
	sc.Step(`^(\d+) steps are attempted$`, c.stepsAreAttempted)
	sc.Step(`^the target passes$`, c.theTargetPasses)
	sc.Step(`^the reported runtime is the step timeout$`, c.theReportedRuntimeIsTheStepTimeout)
}
