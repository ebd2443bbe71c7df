package sqltext

import "testing"

func TestCount(t *testing.T) {
	cases := []struct {
		sql  string
		want int
	}{
		{"SELECT * FROM input", 1},
		{"SELECT * FROM input;", 1},
		{"SELECT 1;;  ", 1},
		{"SELECT 1; SELECT 2", 2},
		{"SELECT ';' AS semi FROM input", 1},
		{`SELECT "a;b" FROM input`, 1},
		{"SELECT `a;b` FROM input", 1},
		{"SELECT [a;b] FROM input", 1},
		{"SELECT 'it''s; fine' FROM input", 1},
		{`SELECT "say ""hi;""" FROM input`, 1},
		{"-- SELECT * FROM input", 0},
		{"/* nothing */", 0},
		{"SELECT 1; -- trailing note", 1},
		{"/* a */ SELECT 1 /* b */ ;", 1},
		{"SELECT 1 -- note; SELECT 2\n", 1},
		{"SELECT 1 /* unterminated ; SELECT 2", 1},
		{"   ", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := Count(tc.sql); got != tc.want {
			t.Fatalf("Count(%q) = %d, want %d", tc.sql, got, tc.want)
		}
	}
}

func TestCountUsesSQLiteLexicalRules(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		want int
	}{
		{name: "backslash closes string", sql: `SELECT 'a\'; SELECT 2`, want: 2},
		{name: "backslash before drop", sql: `SELECT * FROM input WHERE foo = 'a\'; DROP TABLE input`, want: 2},
		{name: "non-ascii identifier", sql: "SELECT ü FROM input; SELECT 42 AS second", want: 2},
		{name: "hash is not a comment", sql: "SELECT 1 #; SELECT 2", want: 2},
		{name: "double slash is not a comment", sql: "SELECT 1 //; SELECT 2", want: 2},
		{name: "mysql special comment", sql: "SELECT 1 /*! x */; SELECT 2", want: 2},
		{name: "stray byte", sql: "SELECT 1 \x01; SELECT 2", want: 2},
		{name: "unterminated string", sql: "SELECT 'abc; SELECT 2", want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Count(tc.sql); got != tc.want {
				t.Fatalf("Count(%q) = %d, want %d", tc.sql, got, tc.want)
			}
		})
	}
}
