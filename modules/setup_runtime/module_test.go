package setup_runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesVersion(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		output string
		want   string
		got    string
		ok     bool
	}{
		{output: "Python 3.10.12\n", want: "3.10", got: "3.10.12", ok: true},
		{output: "Python 3.10\n", want: "3.10", got: "3.10", ok: true},
		{output: "Python 3.11.4\n", want: "3.10", got: "3.11.4", ok: false},
		{output: "Python 3.1.5\n", want: "3.10", got: "3.1.5", ok: false},
		{output: "Python 3.100.1\n", want: "3.10", got: "3.100.1", ok: false},
		{output: "Python 3.10.12\n", want: "3.10.12", got: "3.10.12", ok: true},
		{output: "command not found", want: "3.10", got: "", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.output+"/"+tc.want, func(t *testing.T) {
			t.Parallel()
			got, ok := matchesVersion(tc.output, tc.want)
			assert.Equal(t, tc.got, got)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"python3.10", "python3", "python"}, candidates("3.10"))
}
