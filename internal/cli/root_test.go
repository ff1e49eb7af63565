package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI and returns stdout, stderr and the exit code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "decode-trace", cmd.Name())
	assert.Contains(t, cmd.Long, "cycle marker")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"encode", "runs", "show", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	outputFlag := cmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)

	helpFlag := cmd.Flags().Lookup("help")
	require.NotNil(t, helpFlag)
	assert.Equal(t, "?", helpFlag.Shorthand)
}

func TestExecute_Version(t *testing.T) {
	out, _, code := execute(t, "--version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "0.1.0")
	assert.Contains(t, out, "cbor-mutation-trace/1")
}

func TestExecute_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"question mark", []string{"-?"}},
		{"long help", []string{"--help"}},
		{"help wins over input", []string{"in.trace", "-?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, code := execute(t, tt.args...)
			assert.Equal(t, ExitSuccess, code)
			assert.Contains(t, out, "decode-trace INPUT [-o OUTPUT]")
		})
	}
}

func TestExecute_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"two inputs", []string{"a.trace", "b.trace"}, "input file specified multiple times"},
		{"two inputs after dashes", []string{"--", "a.trace", "b.trace"}, "input file specified multiple times"},
		{"two outputs", []string{"-o", "x", "--output=y", "in.trace"}, "output file specified multiple times"},
		{"two attached outputs", []string{"-ox", "-oy", "in.trace"}, "output file specified multiple times"},
		{"missing output argument", []string{"in.trace", "-o"}, "flag needs an argument"},
		{"unknown flag", []string{"--colour", "in.trace"}, "unknown flag"},
		{"bad format", []string{"--format", "xml", "in.trace"}, `invalid format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, code := execute(t, tt.args...)
			assert.Equal(t, ExitCommandError, code)
			assert.Contains(t, errOut, "Error [E_COMMAND]")
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
}
