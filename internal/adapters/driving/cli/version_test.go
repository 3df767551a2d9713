package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	original := version
	version = v
	t.Cleanup(func() {
		version = original
		resetFlags(rootCmd)
	})
}

func TestVersionCmd_PrintsVersionAndPlatform(t *testing.T) {
	withVersion(t, "1.2.3")

	out, err := executeRoot(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "lexharvest 1.2.3")
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCmd_Short(t *testing.T) {
	withVersion(t, "1.2.3")

	out, err := executeRoot(t, "version", "--short")
	require.NoError(t, err)

	assert.Equal(t, "1.2.3\n", out)
}

func TestSetVersion_IgnoresEmpty(t *testing.T) {
	withVersion(t, "dev")

	SetVersion("")
	assert.Equal(t, "dev", version)

	SetVersion("2.0.0")
	assert.Equal(t, "2.0.0", version)
}
