package versioncmd

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionOutput(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		Args     []string
		Embedded bool
	}{
		"plain":    {},
		"embedded": {Args: []string{"--embedded"}, Embedded: true},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cmd := NewCmd()
			stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
			cmd.SetOut(stdout)
			cmd.SetErr(stderr)
			cmd.SetArgs(tc.Args)

			require.NoError(t, cmd.Execute())
			assert.Empty(t, stderr.String())
			assert.Contains(t, stdout.String(), "streamstress ")
			assert.Contains(t, stdout.String(), runtime.Version())
			if tc.Embedded {
				assert.Contains(t, stdout.String(), "mod ")
			} else {
				assert.NotContains(t, stdout.String(), "mod ")
			}
		})
	}
}
