package migrate

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- leading comment
create table a (id text primary key);

create index a_idx on a (id);
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], "create table a") {
		t.Fatalf("first statement: %q", stmts[0])
	}
	if strings.Contains(stmts[0], "leading comment") {
		t.Fatal("comment leaked into statement")
	}
}

func TestSplitStatementsDollarQuoted(t *testing.T) {
	input := `
create function f() returns trigger as $$
begin
  -- not a comment terminator; stays inside the body
  update a set id = id;
  return new;
end;
$$ language plpgsql;

create table b (id text);
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], "language plpgsql") {
		t.Fatalf("function body split apart: %q", stmts[0])
	}
	if !strings.Contains(stmts[0], "update a set id") {
		t.Fatalf("inner statement lost: %q", stmts[0])
	}
}

func TestEmbeddedMigrationsPairUp(t *testing.T) {
	ups := migrationNames(".up.sql")
	if len(ups) == 0 {
		t.Fatal("no embedded up migrations")
	}
	downs := migrationNames(".down.sql")
	if len(ups) != len(downs) {
		t.Fatalf("%d up vs %d down migrations", len(ups), len(downs))
	}
	for i, up := range ups {
		want := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if downs[i] != want {
			t.Fatalf("migration %s has no matching %s", up, want)
		}
	}
	// Each up file must parse into at least one statement.
	for _, up := range ups {
		data, err := migrationFS.ReadFile("sql/" + up)
		if err != nil {
			t.Fatalf("read %s: %v", up, err)
		}
		if len(splitStatements(string(data))) == 0 {
			t.Fatalf("%s yields no statements", up)
		}
	}
}
