package safety

// blockedKeywords are statement-top-level keywords that indicate a
// write, DDL, or administrative operation (spec.md §4.7, rule 2).
var blockedKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {},
	"TRUNCATE": {}, "CREATE": {}, "GRANT": {}, "REVOKE": {}, "ATTACH": {},
	"PRAGMA": {}, "COPY": {}, "VACUUM": {}, "CALL": {}, "EXEC": {}, "MERGE": {},
}

// systemCatalogs are table/schema names that must never appear in
// generated SQL (spec.md §4.7, rule 3).
var systemCatalogs = []string{
	"sqlite_master",
	"sqlite_sequence",
	"pg_catalog",
	"information_schema",
}

func isBlockedKeyword(tok string) bool {
	_, ok := blockedKeywords[tok]
	return ok
}
