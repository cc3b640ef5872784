package tts

import "testing"

func TestEstimateDurationMs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		bytes, want int
	}{
		{0, 0},
		{24, 8},
		{2400, 800},
		{9000, 3000},
	}
	for _, c := range cases {
		if got := EstimateDurationMs(c.bytes); got != c.want {
			t.Errorf("EstimateDurationMs(%d) = %d, want %d", c.bytes, got, c.want)
		}
	}
}
