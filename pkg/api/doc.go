// Package api defines the public model of the unwind saga engine: step and
// saga definitions, run records and statuses, the failure taxonomy, the
// pre-check sentinels, the RunContext handed to every step, and the
// Observer used for logging and metrics.
//
// Most applications import the root package github.com/okarhu/unwind, which
// re-exports the types defined here and adds engine constructors and the
// fluent SagaBuilder.
package api
