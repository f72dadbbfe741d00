package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLintMarkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_queries.go", "package q\n\nconst QOne = `--sql 11111111-2222-3333-4444-555555555555\nselect 1;\n`\n\nconst Label = \"not sql at all\"\n")
	writeFile(t, dir, "b_queries.go", "package q\n\nconst QBare = `select * from contributions`\n\nconst QCopy = `--sql 11111111-2222-3333-4444-555555555555\ndelete from contributions;\n`\n")
	writeFile(t, dir, "ignored_test.go", "package q\n\nconst QTest = `select 2`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint() error = %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("violations = %+v, want 2", violations)
	}
	byName := map[string]string{}
	for _, v := range violations {
		byName[v.name] = v.message
	}
	if !strings.Contains(byName["QBare"], "missing") {
		t.Fatalf("QBare violation = %q", byName["QBare"])
	}
	if !strings.Contains(byName["QCopy"], "QOne") {
		t.Fatalf("QCopy violation = %q", byName["QCopy"])
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("\n  --sql abc \nselect 1"); got != "--sql abc" {
		t.Fatalf("firstLine() = %q", got)
	}
}

func TestLintIgnoresPlainStrings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "http.go", "package q\n\nconst Methods = \"GET, POST, PUT, DELETE\"\n\nconst Action = \"delete\"\n")
	violations, err := lint([]string{dir})
	if err != nil || len(violations) != 0 {
		t.Fatalf("lint() = %+v, %v; want no violations", violations, err)
	}
}

func TestRepositoryStatementsAreMarked(t *testing.T) {
	violations, err := lint([]string{filepath.Join("..", "..", "sqlinline")})
	if err != nil {
		t.Fatalf("lint() error = %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
	}
}
