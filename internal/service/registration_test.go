package service

import "testing"

func TestValidName(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		"":      false,
		"A":     false,
		"  B  ": false,
		"Jo":    true,
		"Ñu":    true,
		"María": true,
	} {
		if got := ValidName(in); got != want {
			t.Fatalf("ValidName(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidDNI(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		"12345678":   true,
		" 12345678 ": true,
		"1234567":    false,
		"123456789":  false,
		"1234567a":   false,
		"1234 5678":  false,
		"١٢٣٤٥٦٧٨":   false,
	} {
		if got := ValidDNI(in); got != want {
			t.Fatalf("ValidDNI(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseStudentCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		code string
		ok   bool
	}{
		{"no tengo", "", true},
		{"No", "", true},
		{"NINGUNO", "", true},
		{"sin código", "", true},
		{"n/a", "", true},
		{"la verdad no tengo código", "", true},
		{"", "", false},
		{"a", "", false},
		{"ab", "", false},
		{"abc", "abc", true},
		{" U20201234 ", "U20201234", true},
	}

	for _, tc := range cases {
		code, ok := ParseStudentCode(tc.in)
		if code != tc.code || ok != tc.ok {
			t.Fatalf("ParseStudentCode(%q) = (%q, %v), want (%q, %v)", tc.in, code, ok, tc.code, tc.ok)
		}
	}
}
