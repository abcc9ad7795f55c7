package postgres

// Catalog queries used to describe the sandbox schema, plus the per-statement
// session setting applied inside each read-only transaction.
const (
	// queryListTables lists ordinary and partitioned tables the current role
	// may read.
	queryListTables = `
		SELECT c.relname
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind IN ('r', 'p')
		  AND has_table_privilege(c.oid, 'SELECT')
		ORDER BY c.relname`

	queryGetColumns = `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			COALESCE(i.indisprimary, false)
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_catalog.pg_index i
			ON i.indrelid = a.attrelid
			AND i.indisprimary
			AND a.attnum = ANY(i.indkey)
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	querySetStatementTimeout = `SELECT set_config('statement_timeout', $1, true)`
)
