package domain

// Mode is the kind of change event the Oracle is asked to evaluate.
type Mode string

const (
	ModePullRequest Mode = "pull_request"
	ModeMergeGroup  Mode = "merge_group"
	ModeDrift       Mode = "drift"
	ModeCalibration Mode = "calibration"
)

// OracleInputContext carries the change-event metadata rules consult.
type OracleInputContext struct {
	RepositoryName string `json:"repositoryName,omitempty"`
	PRNumber       int    `json:"prNumber,omitempty"`
	CommitSHA      string `json:"commitSha,omitempty"`
	Branch         string `json:"branch,omitempty"`
	Author         string `json:"author,omitempty"`
	OrgID          string `json:"orgId,omitempty"`
}

// OracleInput is the external request shape for Analyze.
type OracleInput struct {
	Mode         Mode                `json:"mode" validate:"required,oneof=pull_request merge_group drift calibration"`
	Strict       bool                `json:"strict,omitempty"`
	DryRun       bool                `json:"dryRun,omitempty"`
	BaselineFile string              `json:"baselineFile,omitempty"`
	Context      OracleInputContext  `json:"context" validate:"required"`
	State        *State              `json:"state,omitempty" validate:"omitempty"`
}

// OracleReport is the human-oriented summary counts alongside the
// machine-readable decision.
type OracleReport struct {
	RulesChecked    int `json:"rulesChecked"`
	ViolationsFound int `json:"violationsFound"`
	CriticalIssues  int `json:"criticalIssues"`
}

// OracleOutput is the external response shape from Analyze. Machine
// consumers MUST rely on MachineDecision and Violations; Summary is a
// human-readable multi-line report only.
type OracleOutput struct {
	MachineDecision MachineDecision `json:"machineDecision"`
	Violations      []Violation     `json:"violations"`
	Summary         string          `json:"summary"`
	Report          OracleReport    `json:"report"`
	Degraded        bool            `json:"degraded,omitempty"`
}
