package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Limetric/schemaferry/internal/orchestrate"
)

// loadScripts reads each hook SQL file and splits it into statements.
func loadScripts(cfg *MigrationConfig, files []string, phase string) ([]orchestrate.Script, error) {
	var scripts []orchestrate.Script
	for _, f := range files {
		data, err := os.ReadFile(cfg.resolvePath(f))
		if err != nil {
			return nil, fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}
		stmts := splitScript(string(data))
		if len(stmts) == 0 {
			continue
		}
		scripts = append(scripts, orchestrate.Script{Name: f, Statements: stmts})
	}
	return scripts, nil
}

var plsqlBlockStart = regexp.MustCompile(`(?is)^(DECLARE|BEGIN|CREATE\s+(OR\s+REPLACE\s+)?(PROCEDURE|FUNCTION|TRIGGER|PACKAGE|TYPE))\b`)

// splitScript splits a hook file into statements. A line holding only "/"
// ends a PL/SQL block, SQL*Plus style: statements before the block are
// split on semicolons and the block is kept whole. Text without a closing
// "/" is split on semicolons only.
func splitScript(sql string) []string {
	var stmts []string
	var current strings.Builder
	flush := func(slashTerminated bool) {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		if chunk == "" {
			return
		}
		parts := splitStatements(chunk)
		if !slashTerminated {
			stmts = append(stmts, parts...)
			return
		}
		offset := 0
		for _, part := range parts {
			at := offset + strings.Index(chunk[offset:], part)
			if plsqlBlockStart.MatchString(part) {
				stmts = append(stmts, chunk[at:])
				return
			}
			stmts = append(stmts, part)
			offset = at + len(part)
		}
	}
	for _, line := range strings.SplitAfter(sql, "\n") {
		if strings.TrimSpace(line) == "/" {
			flush(true)
			continue
		}
		current.WriteString(line)
	}
	flush(false)
	return stmts
}

// splitStatements splits SQL text on semicolons, ignoring empty entries
// and semicolons inside quotes/comments/dollar-quoted blocks.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	inLineComment := false
	blockCommentDepth := 0
	dollarTag := ""

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		if inLineComment {
			current.WriteByte(c)
			if c == '\n' {
				inLineComment = false
			}
			continue
		}

		// nested /* */
		if blockCommentDepth > 0 {
			current.WriteByte(c)
			if c == '/' && i+1 < len(sql) && sql[i+1] == '*' {
				current.WriteByte(sql[i+1])
				i++
				blockCommentDepth++
				continue
			}
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				current.WriteByte(sql[i+1])
				i++
				blockCommentDepth--
			}
			continue
		}

		if inSingleQuote {
			current.WriteByte(c)
			if c == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					current.WriteByte(sql[i+1])
					i++
				} else {
					inSingleQuote = false
				}
			}
			continue
		}

		if inDoubleQuote {
			current.WriteByte(c)
			if c == '"' {
				if i+1 < len(sql) && sql[i+1] == '"' {
					current.WriteByte(sql[i+1])
					i++
				} else {
					inDoubleQuote = false
				}
			}
			continue
		}

		if dollarTag != "" {
			if strings.HasPrefix(sql[i:], dollarTag) {
				current.WriteString(dollarTag)
				i += len(dollarTag) - 1
				dollarTag = ""
				continue
			}
			current.WriteByte(c)
			continue
		}

		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			current.WriteByte(c)
			current.WriteByte(sql[i+1])
			i++
			inLineComment = true
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			current.WriteByte(c)
			current.WriteByte(sql[i+1])
			i++
			blockCommentDepth = 1
		case c == '\'':
			current.WriteByte(c)
			inSingleQuote = true
		case c == '"':
			current.WriteByte(c)
			inDoubleQuote = true
		case c == '$':
			if tag, ok := parseDollarTag(sql, i); ok {
				current.WriteString(tag)
				i += len(tag) - 1
				dollarTag = tag
				continue
			}
			current.WriteByte(c)
		case c == ';':
			if s := strings.TrimSpace(current.String()); s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// parseDollarTag returns the $tag$ opening at sql[i].
func parseDollarTag(sql string, i int) (string, bool) {
	if i >= len(sql) || sql[i] != '$' {
		return "", false
	}
	if i+1 < len(sql) && sql[i+1] == '$' {
		return "$$", true
	}
	j := i + 1
	if j >= len(sql) || !isDollarTagStart(sql[j]) {
		return "", false
	}
	for j < len(sql) && isDollarTagChar(sql[j]) {
		j++
	}
	if j < len(sql) && sql[j] == '$' {
		return sql[i : j+1], true
	}
	return "", false
}

func isDollarTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDollarTagChar(c byte) bool {
	return isDollarTagStart(c) || (c >= '0' && c <= '9')
}
