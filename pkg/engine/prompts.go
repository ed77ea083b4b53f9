package engine

import "fmt"

// Prompt templates for the reasoning stages. They are concise,
// math/proof oriented, and model-agnostic; stage routing decides which
// model sees which prompt.

const (
	// deepThinkInitialPrompt opens a solving run.
	deepThinkInitialPrompt = "You are a careful mathematician. Read the problem, reason step-by-step, and produce a fully" +
		" rigorous solution with explicit lemmas. Keep derivations auditable."

	// deepThinkVerifyPrompt drives the judge call.
	deepThinkVerifyPrompt = "You are a strict proof checker. Check the solution for correctness, hidden assumptions," +
		" and gaps. If incorrect, identify the first concrete error and explain why."

	// deepThinkCorrectPrompt drives a correction iteration.
	deepThinkCorrectPrompt = "Fix the solution strictly based on the verification feedback. Provide corrected steps only."

	// ultraThinkPlanPrompt produces the high-level plan.
	ultraThinkPlanPrompt = "Produce a minimal plan for solving the problem, enumerating distinct approaches" +
		" (algebraic, geometric, combinatorial, number-theoretic) with 1-2 bullets each."

	// synthesizeResultsPrompt merges agent solutions.
	synthesizeResultsPrompt = "Synthesize multiple candidate solutions. Prefer the most rigorous argument." +
		" Resolve conflicts and produce a single coherent proof."
)

// agentConfigPrompt asks the planner for n agent specifications as a JSON
// array the engine can parse. The field names match AgentConfig.
func agentConfigPrompt(n int) string {
	return fmt.Sprintf(
		"Given the plan, produce exactly %d diverse agent configurations that enforce diversity of approach."+
			" Output ONLY a JSON array of objects with fields"+
			` {"agentId": string, "approach": string, "specificPrompt": string}.`+
			" No extra text.", n)
}

// buildSummaryPrompt produces the user-facing summary request from the
// problem and the solution (or synthesis) text.
func buildSummaryPrompt(problem, solution string) string {
	return "Write a concise final answer for the user, summarizing the key steps and final result.\n\n" +
		fmt.Sprintf("Problem:\n%s\n\nSynthesized Solution:\n%s\n", problem, solution)
}
