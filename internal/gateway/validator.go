package gateway

import "strings"

// Reasons reported by Validate.
const (
	ReasonEmpty              = "empty query"
	ReasonNotRead            = "must be a read query"
	ReasonMultipleStatements = "multiple statements forbidden"
	ReasonDestructive        = "destructive operation forbidden"
)

// denylist holds keywords that may not appear as a token anywhere in a statement.
var denylist = map[string]bool{
	"DROP":     true,
	"DELETE":   true,
	"INSERT":   true,
	"UPDATE":   true,
	"CREATE":   true,
	"ALTER":    true,
	"TRUNCATE": true,
	"GRANT":    true,
	"REVOKE":   true,
}

var readPrefixes = []string{"SELECT", "WITH"}

// Verdict is the outcome of validating one submitted query.
type Verdict struct {
	Allowed bool
	Reason  string
	// Statement is the text to execute: original casing, outer whitespace
	// trimmed, at most one trailing terminator removed. Empty when denied.
	Statement string
}

// Validate applies the read-only policy to raw. It never touches the network.
func Validate(raw string) Verdict {
	stmt := strings.TrimSpace(raw)
	if stmt == "" {
		return deny(ReasonEmpty)
	}

	if !hasReadPrefix(strings.ToUpper(stmt)) {
		return deny(ReasonNotRead)
	}

	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	upper := strings.ToUpper(stmt)

	if strings.Contains(upper, ";") {
		return deny(ReasonMultipleStatements)
	}

	if containsDenied(upper) {
		return deny(ReasonDestructive)
	}

	return Verdict{Allowed: true, Statement: stmt}
}

func deny(reason string) Verdict {
	return Verdict{Reason: reason}
}

// hasReadPrefix reports whether upper starts with SELECT or WITH as a whole
// word, ignoring opening parentheses.
func hasReadPrefix(upper string) bool {
	s := strings.TrimLeft(upper, "( \t\r\n")
	for _, kw := range readPrefixes {
		if !strings.HasPrefix(s, kw) {
			continue
		}
		if len(s) == len(kw) || !isIdentByte(s[len(kw)]) {
			return true
		}
	}
	return false
}

// containsDenied scans upper for identifier-like tokens and reports whether
// any of them is a denylisted keyword. Identifiers that merely contain a
// keyword (UPDATED_AT, DROPOFF) are separate tokens and do not match.
func containsDenied(upper string) bool {
	start := -1
	for i := 0; i <= len(upper); i++ {
		if i < len(upper) && isIdentByte(upper[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if denylist[upper[start:i]] {
				return true
			}
			start = -1
		}
	}
	return false
}

// isIdentByte reports whether b can be part of an unquoted SQL identifier.
// Non-ASCII bytes count so multi-byte letters never split a token.
func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') || b >= 0x80
}
