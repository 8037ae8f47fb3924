package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var calibrateRuleID string

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Recompute and store the consensus false-positive rate for one or all registered rules",
	RunE:  runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVar(&calibrateRuleID, "rule-id", "", "rule ID to calibrate (default: every registered rule)")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.shutdown(ctx)

	if a.calibrationEngine == nil {
		return fmt.Errorf("oracle calibrate: reputation.base_url not configured, calibration pipeline disabled")
	}

	ruleIDs, err := calibrateTargets(a, calibrateRuleID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	var firstErr error
	for _, ruleID := range ruleIDs {
		result, err := a.calibrationEngine.AggregateFPsByRule(ctx, ruleID)
		if err != nil {
			a.logger.Warn("calibration failed for rule", "ruleId", ruleID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("oracle calibrate: encoding result for %s: %w", ruleID, err)
		}
	}
	return firstErr
}

// calibrateTargets resolves which rule IDs to calibrate: the one named
// by --rule-id, or every rule in the registry when it's unset.
func calibrateTargets(a *app, ruleID string) ([]string, error) {
	if ruleID != "" {
		return []string{ruleID}, nil
	}
	rules := a.ruleRegistry.Rules()
	if len(rules) == 0 {
		return nil, fmt.Errorf("oracle calibrate: no rules registered")
	}
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids, nil
}
