package roomcode

import "testing"

func TestGenerate(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate()
		if !IsValid(code) {
			t.Fatalf("Generate() = %q, expected a valid room code", code)
		}
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		code  string
		valid bool
	}{
		{"abc-def-ghi", true},
		{"zzz-zzz-zzz", true},
		{"", false},
		{"abc-def-gh", false},
		{"abc-def-ghij", false},
		{"abcdef-ghij", false},
		{"abc_def_ghi", false},
		{"ABC-DEF-GHI", false},
		{"ab1-def-ghi", false},
		{"abç-def-ghi", false},
		{"-bc-def-ghi", false},
		{"abc-def-gh ", false},
	}

	for _, c := range cases {
		if got := IsValid(c.code); got != c.valid {
			t.Errorf("IsValid(%q) = %v, expected %v", c.code, got, c.valid)
		}
	}
}
