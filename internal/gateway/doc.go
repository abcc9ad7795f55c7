// Package gateway decides whether untrusted SQL may reach the database, runs
// the statements it lets through on a pooled connection, shapes the rows for
// display and grades the result columns against an expected set.
//
// The validator is a lexical filter: a read-only prefix allowlist plus a
// denylist of destructive keywords. It does not parse SQL. Keywords hidden in
// comments, statement stacking without semicolons, or writes reachable from
// read syntax (data-modifying CTEs, volatile functions) can get past it. It is
// the second line of defense. The first is the database credential, which must
// only have read privileges; the postgres driver additionally opens every
// session with default_transaction_read_only and runs each statement in a
// read-only transaction.
package gateway
