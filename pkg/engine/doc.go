// Package engine implements the reasoning loops at the heart of Minerva.
//
// # Overview
//
// Two engines drive multi-call reasoning over a single provider:
//
//   - DeepThink: a single-agent propose → verify → correct loop that
//     iterates until a quorum of passing verifications is reached, the
//     iteration budget runs out, or consecutive failures exhaust the
//     error budget. A final call summarizes the solution for the user.
//   - UltraThink: a multi-agent variant that plans, derives N diverse
//     agent configurations, fans out one DeepThink per agent under a
//     bounded-concurrency scheduler, synthesizes the agent solutions
//     into one, and summarizes.
//
// The Verifier judges candidate solutions with a dedicated model call,
// preferring structured output on providers that support the Responses
// API. An optional arithmetic side-check runs concurrently with the
// judge call and can veto a passing verdict.
//
// # Usage
//
//	eng, err := engine.NewDeepThink(engine.DeepThinkOptions{
//	    Provider:              provider,
//	    Model:                 "gpt-5",
//	    Problem:               "Prove that sqrt(2) is irrational.",
//	    MaxIterations:         20,
//	    RequiredVerifications: 2,
//	    Meter:                 requestMeter,
//	    Cache:                 requestCache,
//	})
//	if err != nil {
//	    return err
//	}
//	result, err := eng.Run(ctx)
//
// # Call discipline
//
// Every provider call is tagged with a stage (planning, initial,
// verification, correction, synthesis, summary); ModelStages can route
// individual stages to different backend models, e.g. a cheaper
// verifier. Calls pass through the shared rate limiter under the
// "provider:model" key when one is injected, record their usage to the
// request's token meter, and honor context cancellation.
//
// A DeepThink run makes at most MaxIterations+1 solving calls plus one
// summary; verification calls are additional and bounded by the same
// iteration count.
//
// # Failure semantics
//
// Engines never retry and never catch provider errors: the first failed
// call aborts the run and propagates the error verbatim (retry policy
// lives in the provider adapters). An unparseable verifier reply is
// data, not an error: it becomes a failing VerificationRecord and the
// loop continues. In UltraThink, the first agent failure cancels the
// remaining agents and aborts the run.
package engine
