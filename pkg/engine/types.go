package engine

import (
	"fmt"
)

// Engine stages. Every provider call an engine makes is tagged with one;
// ModelStages may route each stage to a different backend model.
const (
	StagePlanning     = "planning"
	StageInitial      = "initial"
	StageVerification = "verification"
	StageCorrection   = "correction"
	StageSynthesis    = "synthesis"
	StageSummary      = "summary"
)

// Engine mode identifiers, reported on results.
const (
	ModeDeepThink  = "deep-think"
	ModeUltraThink = "ultra-think"
)

// TriState is a three-valued truth: true, false, or unknown. The
// arithmetic side-check reports unknown when no candidate statement
// could be extracted from the solution text.
type TriState int

const (
	// TriUnknown means the check did not apply.
	TriUnknown TriState = iota

	// TriTrue means the extracted statement evaluated as valid.
	TriTrue

	// TriFalse means the extracted statement evaluated as invalid.
	TriFalse
)

// String implements fmt.Stringer.
func (t TriState) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the tri-state as true, false or null so verification
// logs read naturally.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case TriTrue:
		return []byte("true"), nil
	case TriFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes true, false or null.
func (t *TriState) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*t = TriTrue
	case "false":
		*t = TriFalse
	case "null":
		*t = TriUnknown
	default:
		return fmt.Errorf("invalid tri-state value %q", string(data))
	}
	return nil
}

// DeepThinkResult is the complete record of a DeepThink run.
type DeepThinkResult struct {
	// Mode is always "deep-think".
	Mode string `json:"mode"`

	// Plan is the planning-stage output when planning was enabled.
	Plan string `json:"plan,omitempty"`

	// Iterations counts solving iterations, the initial call included.
	Iterations int `json:"iterations"`

	// SuccessfulVerifications is how many verifications passed.
	SuccessfulVerifications int `json:"successful_verifications"`

	// VerificationLogs holds every verification record in order.
	VerificationLogs []VerificationRecord `json:"verification_logs"`

	// FinalSolution is the last candidate solution text.
	FinalSolution string `json:"final_solution"`

	// Summary is the user-facing summary of the final solution.
	Summary string `json:"summary"`
}

// AgentResult pairs an UltraThink agent with its DeepThink outcome.
type AgentResult struct {
	// AgentID identifies the agent within the run.
	AgentID string `json:"agent_id"`

	// Result is the agent's complete DeepThink record.
	Result *DeepThinkResult `json:"result"`
}

// UltraThinkResult is the complete record of an UltraThink run.
type UltraThinkResult struct {
	// Mode is always "ultra-think".
	Mode string `json:"mode"`

	// Plan is the planning-stage output.
	Plan string `json:"plan"`

	// NumAgents is the number of agents actually run. It follows the
	// parsed configuration list, which may be shorter than requested.
	NumAgents int `json:"num_agents"`

	// AgentResults holds per-agent outcomes in configuration order,
	// regardless of completion order.
	AgentResults []AgentResult `json:"agent_results"`

	// Synthesis is the merged solution across agents.
	Synthesis string `json:"synthesis"`

	// Summary is the user-facing summary of the synthesis.
	Summary string `json:"summary"`
}

// AgentConfigError reports that the agent-config generator did not return
// a parseable JSON array while strict mode was on. The raw model output is
// attached for operator diagnosis.
type AgentConfigError struct {
	// Output is the raw planner output that failed to parse
	Output string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *AgentConfigError) Error() string {
	return fmt.Sprintf("agent config generation produced unparseable output: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *AgentConfigError) Unwrap() error {
	return e.Cause
}
