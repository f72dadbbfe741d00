package infra

import (
	"strings"
	"testing"
)

func TestSplitStatementsKeepsFunctionBodies(t *testing.T) {
	stmts := splitStatements(schemaSQL)
	var fn string
	for _, s := range stmts {
		if strings.HasPrefix(s, "create or replace function") {
			fn = s
		}
	}
	if fn == "" {
		t.Fatal("function statement not found")
	}
	if !strings.Contains(fn, "pg_notify('contributions_changed', old.partition);") || !strings.HasSuffix(fn, "$$;") {
		t.Fatalf("function statement split inside body:\n%s", fn)
	}
	for _, s := range stmts {
		if !strings.HasSuffix(s, ";") {
			t.Fatalf("statement without terminator: %q", s)
		}
	}
}

func TestSplitStatementsCount(t *testing.T) {
	got := splitStatements("create table a (x int);\n\ncreate index b on a (x);\nselect 1")
	if len(got) != 3 || got[2] != "select 1" {
		t.Fatalf("splitStatements() = %q", got)
	}
}
