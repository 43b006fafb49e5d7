package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

var errUnterminatedString = errors.New("unterminated string literal")

// sqlFiles returns the .sql files under dir in lexical order with their contents.
func sqlFiles(fsys fs.FS, dir string) ([]string, map[string]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	contents := make(map[string]string, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		contents[name] = string(data)
	}
	return names, contents, nil
}

// applyEach runs every statement of every file under dir through exec. Used
// for drivers that reject multi-statement Exec.
func applyEach(ctx context.Context, fsys fs.FS, dir string, exec func(ctx context.Context, stmt string) error) error {
	files, contents, err := sqlFiles(fsys, dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		stmts, err := splitStatements(contents[file])
		if err != nil {
			return fmt.Errorf("parse migration %s: %w", file, err)
		}
		for _, stmt := range stmts {
			if err := exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}
	return nil
}

// splitStatements splits SQL on top-level semicolons. Single-quoted strings
// (with '' escapes) are kept intact and -- comments are dropped.
func splitStatements(input string) ([]string, error) {
	var (
		stmts    []string
		cur      strings.Builder
		inString bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case inString:
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(input) && input[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
				} else {
					inString = false
				}
			}
		case ch == '\'':
			inString = true
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	if inString {
		return nil, errUnterminatedString
	}
	flush()
	return stmts, nil
}
