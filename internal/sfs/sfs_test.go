package sfs

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1977:1160", "1977:1160"},
		{"SFS 1977:1160", "1977:1160"},
		{"  SFS 2000:764 ", "2000:764"},
		{"SFS1994:1512", "1994:1512"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	for _, valid := range []string{"1977:1160", "SFS 2000:764", "2023:1"} {
		if !Valid(valid) {
			t.Errorf("expected %q to be valid", valid)
		}
	}
	for _, invalid := range []string{"", "1977", "77:1160", "1977:1160:2", "lag 1977"} {
		if Valid(invalid) {
			t.Errorf("expected %q to be invalid", invalid)
		}
	}
}

func TestCompare(t *testing.T) {
	ordered := []string{"1977:1160", "1994:1512", "2000:763", "2000:764", "2023:1"}
	for i := 0; i < len(ordered)-1; i++ {
		if Compare(ordered[i], ordered[i+1]) >= 0 {
			t.Errorf("expected %q < %q", ordered[i], ordered[i+1])
		}
	}
	if Compare("SFS 2000:764", "2000:764") != 0 {
		t.Errorf("expected prefix-normalized numbers to compare equal")
	}
	if Compare("not-a-number", "2000:764") <= 0 {
		t.Errorf("expected malformed numbers to sort last")
	}
}

func TestCompareSections(t *testing.T) {
	ordered := []string{"1", "2", "9", "27", "27 a", "27 b", "28"}
	for i := 0; i < len(ordered)-1; i++ {
		if CompareSections(ordered[i], ordered[i+1]) >= 0 {
			t.Errorf("expected section %q < %q", ordered[i], ordered[i+1])
		}
	}
	if CompareSections("27 a §", "27 a") != 0 {
		t.Errorf("expected the paragraph sign to be ignored")
	}
	if CompareSections("2", "10") >= 0 {
		t.Errorf("expected numeric ordering, not lexical")
	}
}
