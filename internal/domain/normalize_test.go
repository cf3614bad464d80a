package domain

import "testing"

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Ann@Test.com":       "ann@test.com",
		"  BOB@EXAMPLE.ORG ": "bob@example.org",
		"":                   "",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Fatalf("NormalizeEmail(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNormalizeHumanName(t *testing.T) {
	t.Parallel()

	if got := NormalizeHumanName("  Ann   Lee "); got != "Ann Lee" {
		t.Fatalf("got %q", got)
	}
}

func TestParseUserID(t *testing.T) {
	t.Parallel()

	if id, ok := ParseUserID("42"); !ok || id != 42 {
		t.Fatalf("ParseUserID(42)=%d,%v", id, ok)
	}
	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		if _, ok := ParseUserID(bad); ok {
			t.Fatalf("ParseUserID(%q) ok=true, want false", bad)
		}
	}
	if UserID(7).String() != "7" {
		t.Fatalf("String()=%q", UserID(7).String())
	}
}
