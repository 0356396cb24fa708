// Package service contains the business logic of the prediction league.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services accept plain identifiers and integers, never HTTP types, so the
// same calls back the HTTP API, the predictctl maintenance CLI and the
// background locker.
//
// ATOMIC UNITS:
// Every public write runs inside exactly one repository.Store.RunInTx call.
// Inside the callback only the tx is used; the sub-steps of an operation (for
// example group insert, creator membership, leaderboard entry) are explicit
// calls on that tx, so either all of them commit or none do. Helpers that
// several services share, such as recalculating a group's leaderboard, take
// the tx as a parameter instead of opening their own transaction.
//
// AUTHORIZATION:
// Services receive an already-authenticated user ID. Whether a caller may
// complete fixtures is decided by the HTTP layer; services only enforce
// domain preconditions (membership, ownership, fixture state).
package service

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// clock returns the current time. Services hold one so tests can pin "now".
type clock func() time.Time

func groupAttr(id string) attribute.KeyValue {
	return attribute.String("group_id", id)
}

func userAttr(id string) attribute.KeyValue {
	return attribute.String("user_id", id)
}

func fixtureAttr(id int64) attribute.KeyValue {
	return attribute.Int64("fixture_id", id)
}
