package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  ScanLevel
	}{
		{"low", LevelLow},
		{"medium", LevelMedium},
		{"high", LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "LOW", "Medium", " high", "high ", "extreme", "critical"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseLevel(input)
			require.Error(t, err)

			var se *ScanError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, KindInvalidLevel, se.Kind)
			assert.Equal(t, input, se.Level)
			assert.Len(t, se.ValidLevels, 3)
			for _, name := range []string{"low", "medium", "high"} {
				assert.NotEmpty(t, se.ValidLevels[name], "missing description for %s", name)
			}
		})
	}
}

func TestDescribeAllIsStaticCopy(t *testing.T) {
	a := DescribeAll()
	require.Len(t, a, 3)
	a[LevelLow] = LevelInfo{}
	info := a[LevelHigh]
	info.Tests[0] = "mutated"

	b := DescribeAll()
	assert.NotEmpty(t, b[LevelLow].Description)
	assert.NotEqual(t, "mutated", b[LevelHigh].Tests[0])
}

func TestScanOptionsListing(t *testing.T) {
	opts := ScanOptionsListing()
	require.Len(t, opts.ScanLevels, 3)
	for _, name := range []string{"low", "medium", "high"} {
		info, ok := opts.ScanLevels[name]
		require.True(t, ok, "missing level %s", name)
		assert.NotEmpty(t, info.Tests)
		assert.NotEmpty(t, info.EstimatedTime)
		assert.NotEmpty(t, info.UseCase)
		assert.NotEmpty(t, info.Description)
	}
	assert.Equal(t, ScanRecommendation, opts.Recommendation)
}

func TestLevelsOrdered(t *testing.T) {
	assert.Equal(t, []ScanLevel{LevelLow, LevelMedium, LevelHigh}, Levels())
	assert.False(t, ScanLevel(0).Valid())
	assert.Equal(t, "unknown", ScanLevel(0).String())
	assert.Equal(t, LevelMedium, DefaultLevel)
}

func TestScanErrorIsMatchesKind(t *testing.T) {
	err := error(&ScanError{Kind: KindRemoteTimeout, Port: 3000, Level: "high"})
	assert.True(t, errors.Is(err, &ScanError{Kind: KindRemoteTimeout}))
	assert.False(t, errors.Is(err, &ScanError{Kind: KindRemoteError}))
	assert.Contains(t, err.Error(), "port=3000")
	assert.Contains(t, err.Error(), "level=high")
}
