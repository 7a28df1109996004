package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitExtraArgs(t *testing.T) {
	t.Run("splits a plain argument string", func(t *testing.T) {
		args, err := splitExtraArgs("-preset veryfast -crf 23")
		require.NoError(t, err)
		assert.Equal(t, []string{"-preset", "veryfast", "-crf", "23"}, args)
	})

	t.Run("respects quoting", func(t *testing.T) {
		args, err := splitExtraArgs(`-metadata title="my clip"`)
		require.NoError(t, err)
		assert.Equal(t, []string{"-metadata", "title=my clip"}, args)
	})

	t.Run("empty input yields no args", func(t *testing.T) {
		args, err := splitExtraArgs("   ")
		require.NoError(t, err)
		assert.Nil(t, args)
	})

	t.Run("rejects shell metacharacters", func(t *testing.T) {
		cases := []string{
			"-vf scale=640:480; rm -rf /",
			"-i $(whoami)",
			"-preset `hostname`",
			"-o out.mp4 && curl evil",
			"-o out.mp4 | tee",
			"-i < /etc/passwd",
		}
		for _, raw := range cases {
			_, err := splitExtraArgs(raw)
			assert.Error(t, err, "input %q should be rejected", raw)
		}
	})

	t.Run("rejects unbalanced quotes", func(t *testing.T) {
		_, err := splitExtraArgs(`-metadata title="unclosed`)
		assert.Error(t, err)
	})
}
