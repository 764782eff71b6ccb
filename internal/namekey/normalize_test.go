package namekey

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Doe, Jane", "jane doe"},
		{"Jane Doe", "jane doe"},
		{"  JANE   doe ", "jane doe"},
		{"doe,jane", "jane doe"},
		{"Smith, John Paul", "john paul smith"},
		{"José Núñez", "jose nunez"},
		{"Núñez, José", "jose nunez"},
		{"a, b, c", "b c a"},
		{"Doe,", "doe"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Doe, Jane", "a, b, c", ",,,", "  x ,  y  ", "O'Brien, Seán", "Mary-Kate Olsen",
		"single", "", ", leading", "trailing ,", "ÅSA, Öberg",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("Doe, Jane", "Jane Doe") {
		t.Error("expected comma order to be ignored")
	}
	if Equal("", "") {
		t.Error("blank names must never match")
	}
	if Equal("Jane Doe", "John Doe") {
		t.Error("different people matched")
	}
}
