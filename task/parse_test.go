package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		start int64
		end   int64
	}{
		{"short form", "s=10 e=250", 10, 250},
		{"upper case", "START=10 END=250", 10, 250},
		{"extra whitespace", "start=10   end=250", 10, 250},
		{"embedded in text", "please cut this: s=100 e=900 thanks!", 100, 900},
		{"first match wins", "s=1 e=2 s=3 e=4", 1, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := ParseWindow(tc.body)
			require.NoError(t, err)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}

func TestParseWindow_NoMatch(t *testing.T) {
	for _, body := range []string{"hello world", "", "s=abc e=def", "s=1e=2"} {
		_, _, err := ParseWindow(body)
		assert.ErrorIs(t, err, ErrNoPattern, "body: %q", body)
	}
}

func TestFixStartEnd_OrderIndependent(t *testing.T) {
	cases := [][2]int64{{10, 250}, {250, 10}, {0, 0}, {-5, 100}, {7, 7}}
	for _, c := range cases {
		s1, e1 := FixStartEnd(c[0], c[1])
		s2, e2 := FixStartEnd(c[1], c[0])
		assert.Equal(t, s1, s2)
		assert.Equal(t, e1, e2)
		assert.LessOrEqual(t, s1, e1)
		assert.GreaterOrEqual(t, s1, int64(0))
	}
}

func TestFixStartEnd_Swaps(t *testing.T) {
	start, end := FixStartEnd(450, 350)
	assert.Equal(t, int64(350), start)
	assert.Equal(t, int64(450), end)
}
