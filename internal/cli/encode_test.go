package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hypetrace/internal/wire"
)

const cycleYAML = `
- [~, [!def [1, !share {}]]]
- [!ref 1, {name: cycle, self: !shared 0, at: !ts [1, 2500]}]
- [!ref 1]
`

func TestEncode_ThenDecode(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "cycle.yaml", []byte(cycleYAML))
	traceFile := filepath.Join(dir, "cycle.trace")

	_, errOut, code := execute(t, "encode", src, "-o", traceFile)
	require.Equal(t, ExitSuccess, code, errOut)

	out, errOut, code := execute(t, traceFile)
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Equal(t, "[\n    {\"name\": \"cycle\", \"self\": ..., \"at\": 1000002.500}\n]\n", out)
}

func TestEncode_Stdout(t *testing.T) {
	src := writeFile(t, t.TempDir(), "cycle.yaml", []byte(cycleYAML))

	out, errOut, code := execute(t, "encode", src)
	require.Equal(t, ExitSuccess, code, errOut)

	records, err := wire.ReadAll([]byte(out))
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestEncode_Errors(t *testing.T) {
	dir := t.TempDir()

	_, errOut, code := execute(t, "encode", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "failed to read input")

	bad := writeFile(t, dir, "bad.yaml", []byte("- [1, 2, 3]\n"))
	_, errOut, code = execute(t, "encode", bad)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "invalid trace")

	_, errOut, code = execute(t, "encode")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "accepts 1 arg")
}

func TestEncode_OutputFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "empty.yaml", []byte("[]\n"))
	traceFile := filepath.Join(dir, "empty.trace")

	_, _, code := execute(t, "encode", "--output", traceFile, src)
	require.Equal(t, ExitSuccess, code)

	data, err := os.ReadFile(traceFile)
	require.NoError(t, err)
	records, err := wire.ReadAll(data)
	require.NoError(t, err)
	assert.Empty(t, records)
}
