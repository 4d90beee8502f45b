// Package script evaluates the small JavaScript expressions used in data
// mappings and filters.
//
// Expressions see a single global, value, bound to their input. Variables
// and functions they declare are local to one evaluation. They run on
// pooled goja runtimes with require, process and timers removed, and every
// run is interrupted once the configured timeout or the caller's context
// expires. Compiled programs are cached by source text, so a syntax error
// in a distinct expression is reported once, at Compile.
//
// Example Usage:
//
//	eval := script.New(script.DefaultConfig())
//	out, err := eval.EvaluateString(ctx, "value * 1000", "42")
//	keep, err := eval.EvaluateBool(ctx, "value.total > 0", doc)
package script
