package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/nested_emit.yaml")
	require.NoError(t, err)

	assert.Equal(t, "nested_emit", s.Name)
	assert.NotEmpty(t, s.Description)
	assert.True(t, s.hasRecords())
	require.NotNil(t, s.Expect.Elements)
	assert.Equal(t, 1, *s.Expect.Elements)
	assert.Len(t, s.Assertions, 3)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestScenario_Trace(t *testing.T) {
	s := &Scenario{TraceHex: "81 83\n\t01 02 03"}
	data, err := s.Trace()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x83, 0x01, 0x02, 0x03}, data)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown field",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\nexpectations: {}\n",
			want: "field expectations not found",
		},
		{
			name: "missing name",
			doc:  "description: y\ntrace_hex: '80'\n",
			want: "name is required",
		},
		{
			name: "missing description",
			doc:  "name: x\ntrace_hex: '80'\n",
			want: "description is required",
		},
		{
			name: "no trace",
			doc:  "name: x\ndescription: y\n",
			want: "one of records or trace_hex is required",
		},
		{
			name: "both traces",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\nrecords: []\n",
			want: "mutually exclusive",
		},
		{
			name: "bad hex",
			doc:  "name: x\ndescription: y\ntrace_hex: 'zz'\n",
			want: "trace_hex",
		},
		{
			name: "bad byte encoding",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\noptions: {bytes: base58}\n",
			want: "options.bytes",
		},
		{
			name: "negative threshold",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\noptions: {collect_threshold: -1}\n",
			want: "collect_threshold",
		},
		{
			name: "unknown error code",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\nexpect: {error: OOPS}\n",
			want: `unknown error code "OOPS"`,
		},
		{
			name: "negative elements",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\nexpect: {elements: -1}\n",
			want: "expect.elements",
		},
		{
			name: "assertion without type",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\nassertions: [{count: 1}]\n",
			want: "assertions[0]: type is required",
		},
		{
			name: "unknown assertion",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\nassertions: [{type: trace_order}]\n",
			want: `unknown assertion type "trace_order"`,
		},
		{
			name: "output_contains without text",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\nassertions: [{type: output_contains}]\n",
			want: "text is required",
		},
		{
			name: "unknown stats field",
			doc:  "name: x\ndescription: y\ntrace_hex: '80'\nassertions: [{type: stats, field: bogus}]\n",
			want: `unknown stats field "bogus"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "cycle.golden"),
		GoldenPath(filepath.Join("scenarios", "cycle.yaml")))
}

func TestUpdateAndCompareGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden", "x.golden")

	_, err := CompareGolden(path, "[]\n")
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, UpdateGolden(path, "[]\n"))

	match, err := CompareGolden(path, "[]\n")
	require.NoError(t, err)
	assert.True(t, match)

	match, err = CompareGolden(path, "[")
	require.NoError(t, err)
	assert.False(t, match)
}
