// Package migrations embeds the schema for every supported dialect.
//
// Files follow the goose layout so cmd/migrate can apply them, while the
// storage backends read the same statements at start-up. Every statement
// is CREATE ... IF NOT EXISTS, so applying them again is a no-op.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// FS holds one directory per dialect: postgres, sqlite, clickhouse
//
//go:embed postgres/*.sql sqlite/*.sql clickhouse/*.sql
var FS embed.FS

// Statements returns the schema statements of a dialect in file order
func Statements(dialect string) ([]string, error) {
	files, err := fs.Glob(FS, dialect+"/*.sql")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	sort.Strings(files)

	var stmts []string
	for _, name := range files {
		content, err := FS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		stmts = append(stmts, split(string(content))...)
	}
	return stmts, nil
}

// split breaks a migration file into statements, dropping comment lines
func split(content string) []string {
	var (
		stmts   []string
		current strings.Builder
	)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			stmts = append(stmts, stmt)
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}
