package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

var analyzeInputPath string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Evaluate a single change event and print the decision as JSON",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInputPath, "input", "i", "", "path to a JSON change event (default: stdin)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.shutdown(ctx)

	raw, err := readInput(analyzeInputPath)
	if err != nil {
		return fmt.Errorf("oracle analyze: reading input: %w", err)
	}

	var input domain.OracleInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("oracle analyze: decoding input: %w", err)
	}

	output, err := a.oracle.Analyze(ctx, input)
	if err != nil {
		return fmt.Errorf("oracle analyze: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("oracle analyze: encoding output: %w", err)
	}

	if output.MachineDecision.Outcome == domain.OutcomeBlock {
		os.Exit(1)
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
