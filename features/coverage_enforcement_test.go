package features

import (
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/drew/ptrun/internal/coverage"
	"github.com/drew/ptrun/internal/model"
)

func (c *sharedContext) aCoverageReportShowing(file string, pct int) error {
	c.report = fmt.Sprintf(`Name         Stmts   Miss  Cover   Missing
------------------------------------------
%s    59     14     %d%%     70-72, 76-94, 98
------------------------------------------
TOTAL          84     14    %d%%
`, file, pct, pct)
	return nil
}

func (c *sharedContext) anEmptyCoverageReport() error {
	c.report = ""
	return nil
}

func (c *sharedContext) theTargetRequiresCoverage(pct int, file string) error {
	c.required[file] = float64(pct)
	return nil
}

func (c *sharedContext) theCoverageReportIsAnalyzed() error {
	if err := c.makeVenv(); err != nil {
		return err
	}
	if err := c.makeTarget(model.Configuration{}); err != nil {
		return err
	}
	analyzer := coverage.NewAnalyzer(c.quietWriter())
	c.result = analyzer.Analyze(c.venv, c.target, c.required, c.report, model.NewRunStats(), time.Now())
	return nil
}

func (c *sharedContext) theTargetPassesCoverageEnforcement() error {
	if c.result != nil {
		return fmt.Errorf("expected no failure, got: %s", c.result.Output)
	}
	return nil
}

func InitializeCoverageEnforcementScenario(sc *godog.ScenarioContext, c *sharedContext) {
	sc.Step(`^a coverage report showing "([^"]*)" at (\d+) percent$`, c.aCoverageReportShowing)
	sc.Step(`^an empty coverage report$`, c.anEmptyCoverageReport)
	sc.Step(`^the target requires (\d+) percent coverage of "([^"]*)"$`, c.theTargetRequiresCoverage)
	sc.Step(`^the coverage report is analyzed$`, c.theCoverageReportIsAnalyzed)
	sc.Step(`^the target passes coverage enforcement$`, c.theTargetPassesCoverageEnforcement)
}
