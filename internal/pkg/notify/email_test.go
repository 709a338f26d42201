package notify

import "testing"

func TestFormatEUR(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0,00 €"},
		{35, "35,00 €"},
		{249.9, "249,90 €"},
		{1299.99, "1.299,99 €"},
		{1234567.5, "1.234.567,50 €"},
		{-49.95, "-49,95 €"},
	}
	for _, c := range cases {
		if got := FormatEUR(c.in); got != c.want {
			t.Errorf("FormatEUR(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
