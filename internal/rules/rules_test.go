package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
	"github.com/phasemirror/dissonance-oracle/internal/evaluator"
)

func TestRegisterDefaults_RegistersEightRules(t *testing.T) {
	reg := evaluator.NewRegistry()
	RegisterDefaults(reg)
	assert.Equal(t, 8, reg.Len())
}

func TestCheckDriftWithinWarningBand_FlagsExcessiveDrift(t *testing.T) {
	input := domain.OracleInput{
		Mode:  domain.ModePullRequest,
		State: &domain.State{DriftMagnitude: 0.25},
	}
	violations, err := checkDriftWithinWarningBand(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "MD-002", violations[0].RuleID)
}

func TestCheckPermissionEscalation_FlagsWriteAllBit(t *testing.T) {
	input := domain.OracleInput{
		Mode:  domain.ModePullRequest,
		State: &domain.State{PermissionBits: 1 << 15},
	}
	violations, err := checkPermissionEscalation(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, domain.SeverityCritical, violations[0].Severity)
}

func TestCheckWitnessScorePresent_OnlyAppliesToMergeGroup(t *testing.T) {
	prInput := domain.OracleInput{Mode: domain.ModePullRequest}
	violations, err := checkWitnessScorePresent(context.Background(), prInput)
	require.NoError(t, err)
	assert.Empty(t, violations)

	mergeInput := domain.OracleInput{Mode: domain.ModeMergeGroup}
	violations, err = checkWitnessScorePresent(context.Background(), mergeInput)
	require.NoError(t, err)
	require.Len(t, violations, 1)

	score := 1.0
	mergeInput.State = &domain.State{ContractionWitnessScore: &score}
	violations, err = checkWitnessScorePresent(context.Background(), mergeInput)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckRepositoryAllowlisted_RequiresRepositoryName(t *testing.T) {
	violations, err := checkRepositoryAllowlisted(context.Background(), domain.OracleInput{})
	require.NoError(t, err)
	require.Len(t, violations, 1)

	violations, err = checkRepositoryAllowlisted(context.Background(), domain.OracleInput{
		Context: domain.OracleInputContext{RepositoryName: "phasemirror/dissonance-oracle"},
	})
	require.NoError(t, err)
	assert.Empty(t, violations)
}
