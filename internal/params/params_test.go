package params

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Generation
		want Generation
	}{
		{
			name: "defaults untouched",
			in:   Default(),
			want: Default(),
		},
		{
			name: "below range",
			in:   Generation{Width: 1, Height: -5, Steps: 0, CFGScale: 0, BatchSize: 0, Seed: -9},
			want: Generation{Width: 64, Height: 64, Steps: 1, CFGScale: 1, BatchSize: 1, Seed: -1},
		},
		{
			name: "above range",
			in:   Generation{Width: 5000, Height: 3001, Steps: 999, CFGScale: 99, BatchSize: 8, Seed: 12},
			want: Generation{Width: 2048, Height: 2048, Steps: 150, CFGScale: 30, BatchSize: 4, Seed: 12},
		},
		{
			name: "dimensions rounded to multiple of 8",
			in:   Generation{Width: 513, Height: 771, Steps: 20, CFGScale: 7, BatchSize: 2},
			want: Generation{Width: 512, Height: 768, Steps: 20, CFGScale: 7, BatchSize: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clamp())
		})
	}
}

func TestClamp_NaNCFGFallsBackToDefault(t *testing.T) {
	g := Default()
	g.CFGScale = math.NaN()
	assert.Equal(t, Default().CFGScale, g.Clamp().CFGScale)
}

func TestValidate_RejectsBlankPrompt(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\t\n"} {
		g := Default()
		g.Prompt = prompt

		err := g.Validate()
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "prompt %q", prompt)
		assert.Equal(t, "prompt", verr.Field)
	}

	g := Default()
	g.Prompt = "a lighthouse at dusk"
	assert.NoError(t, g.Validate())
}

func TestApply_MergesOnlySetFields(t *testing.T) {
	g := Default()
	g.Prompt = "cat"

	got := g.Apply(Patch{Steps: Ptr(42), Sampler: Ptr("DPM++ 2M")})

	assert.Equal(t, "cat", got.Prompt)
	assert.Equal(t, 42, got.Steps)
	assert.Equal(t, "DPM++ 2M", got.Sampler)
	assert.Equal(t, g.Width, got.Width)
	assert.Equal(t, 20, g.Steps, "receiver must not change")
}

func TestAsPatch_RoundTrips(t *testing.T) {
	src := Generation{
		Prompt:         "castle",
		NegativePrompt: "blurry",
		Width:          768,
		Height:         512,
		Steps:          30,
		CFGScale:       6.5,
		Sampler:        "DDIM",
		Seed:           1234,
		BatchSize:      3,
		Model:          "v1-5",
	}

	got := Default().Apply(src.AsPatch())
	assert.Equal(t, src, got)
	assert.False(t, src.AsPatch().Empty())
	assert.True(t, Patch{}.Empty())
}

func TestNewSeed_InRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		seed := NewSeed()
		if seed < 0 || seed >= math.MaxInt32 {
			t.Fatalf("NewSeed() = %d, want [0, %d)", seed, math.MaxInt32)
		}
	}
}

func TestSummary(t *testing.T) {
	g := Default()
	assert.Contains(t, g.Summary(), "seed random")
	g.Seed = 7
	assert.Contains(t, g.Summary(), "seed 7")
	assert.Contains(t, g.Summary(), "512x512")
}
