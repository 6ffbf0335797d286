package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecs(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		Input    string
		Expected []Spec
		WantErr  bool
	}{
		"single component": {
			Input:    "pipeline",
			Expected: []Spec{{Name: "pipeline"}},
		},
		"component with branch ref": {
			Input:    "triggers:release-v0.24",
			Expected: []Spec{{Name: "triggers", Ref: "release-v0.24"}},
		},
		"component with pr ref": {
			Input:    "chains:pr/123",
			Expected: []Spec{{Name: "chains", Ref: "pr/123"}},
		},
		"multiple components mixed": {
			Input: "pipeline,results:main,console-plugin",
			Expected: []Spec{
				{Name: "pipeline"},
				{Name: "results", Ref: "main"},
				{Name: "console-plugin"},
			},
		},
		"surrounding whitespace": {
			Input:    " pipeline , triggers ",
			Expected: []Spec{{Name: "pipeline"}, {Name: "triggers"}},
		},
		"unknown component": {
			Input:   "dashboard",
			WantErr: true,
		},
		"empty input": {
			Input:   "",
			WantErr: true,
		},
		"only separators": {
			Input:   ",,",
			WantErr: true,
		},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			specs, err := ParseSpecs(tc.Input)
			if tc.WantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, specs)
		})
	}
}

func TestParseSpecsUnknownNameListsKnown(t *testing.T) {
	t.Parallel()

	_, err := ParseSpecs("dashboard")
	require.Error(t, err)
	for _, known := range KnownComponents {
		assert.Contains(t, err.Error(), known)
	}
}

func TestDefaultSpecs(t *testing.T) {
	t.Parallel()

	specs := DefaultSpecs()
	require.Len(t, specs, len(KnownComponents))
	for i, spec := range specs {
		assert.Equal(t, KnownComponents[i], spec.Name)
		assert.Empty(t, spec.Ref)
	}
}

func TestResolveGitRef(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		Input    string
		Expected string
	}{
		"pull request shorthand": {Input: "pr/123", Expected: "refs/pull/123/head"},
		"branch passthrough":     {Input: "release-v0.24", Expected: "release-v0.24"},
		"tag passthrough":        {Input: "v0.50.0", Expected: "v0.50.0"},
		"sha passthrough":        {Input: "deadbeef", Expected: "deadbeef"},
		"empty passthrough":      {Input: "", Expected: ""},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.Expected, ResolveGitRef(tc.Input))
		})
	}
}

func TestValidateDate(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		Input   string
		WantErr bool
	}{
		"valid":              {Input: "2024-03-31"},
		"valid single digit": {Input: "2024-01-01"},
		"month out of range": {Input: "2024-13-01", WantErr: true},
		"day out of range":   {Input: "2024-01-32", WantErr: true},
		"wrong separator":    {Input: "2024/01/01", WantErr: true},
		"not a date":         {Input: "yesterday", WantErr: true},
		"empty":              {Input: "", WantErr: true},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := ValidateDate(tc.Input)
			if tc.WantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestApplyAsOfDate(t *testing.T) {
	t.Parallel()

	specs := []Spec{
		{Name: "pipeline"},
		{Name: "triggers", Ref: "release-v0.24"},
	}
	ApplyAsOfDate(specs, "2024-03-31")

	assert.Equal(t, "2024-03-31", specs[0].AsOfDate)
	assert.Empty(t, specs[1].AsOfDate, "explicit ref wins over the date")
}
