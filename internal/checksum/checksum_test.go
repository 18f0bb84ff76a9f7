package checksum

import "testing"

func TestSumIsStable(t *testing.T) {
	a := Sum([]byte("folio"))
	b := Sum([]byte("folio"))
	if a != b || len(a) != 64 {
		t.Fatalf("Sum = %q and %q", a, b)
	}
}

func TestMatches(t *testing.T) {
	sum := Sum([]byte("x"))
	cases := []struct {
		pre  string
		want bool
	}{
		{"", true},
		{"*", true},
		{sum, true},
		{`"` + sum + `"`, true},
		{`W/"` + sum + `"`, true},
		{"other", false},
	}
	for _, c := range cases {
		if got := Matches(c.pre, sum); got != c.want {
			t.Errorf("Matches(%q) = %v, want %v", c.pre, got, c.want)
		}
	}
}
