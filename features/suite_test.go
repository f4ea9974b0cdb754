package features

import (
	"context"
	"testing"

	"github.com/cucumber/godog"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			// One shared context instance per scenario
			shared := newSharedContext()

			InitializeCoverageEnforcementScenario(sc, shared)
			InitializePipelineStepsScenario(sc, shared)

			sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
				shared.cleanup()
				return ctx, err
			})
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"."},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
