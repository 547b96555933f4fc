// Package params holds the working set of generation parameters.
package params

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Ranges accepted by the backend.
const (
	MinSteps     = 1
	MaxSteps     = 150
	MinCFGScale  = 1.0
	MaxCFGScale  = 30.0
	MinBatchSize = 1
	MaxBatchSize = 4
	MinDimension = 64
	MaxDimension = 2048

	// RandomSeed asks the backend to pick a seed.
	RandomSeed int64 = -1

	maxSeed = math.MaxInt32 // exclusive upper bound, 2^31-1
)

// Generation is the parameter set sent with a txt2img request.
type Generation struct {
	Prompt         string  `json:"prompt" yaml:"prompt"`
	NegativePrompt string  `json:"negativePrompt" yaml:"negative_prompt"`
	Width          int     `json:"width" yaml:"width"`
	Height         int     `json:"height" yaml:"height"`
	Steps          int     `json:"steps" yaml:"steps"`
	CFGScale       float64 `json:"cfgScale" yaml:"cfg_scale"`
	Sampler        string  `json:"sampler" yaml:"sampler"`
	Seed           int64   `json:"seed" yaml:"seed"`
	BatchSize      int     `json:"batchSize" yaml:"batch_size"`
	Model          string  `json:"model,omitempty" yaml:"model,omitempty"`
}

// Default returns the parameters a fresh workspace starts with.
func Default() Generation {
	return Generation{
		Width:     512,
		Height:    512,
		Steps:     20,
		CFGScale:  7,
		Sampler:   "Euler a",
		Seed:      RandomSeed,
		BatchSize: 1,
	}
}

// Clamp forces every numeric field into the backend's accepted range.
// Dimensions are rounded down to a multiple of 8.
func (g Generation) Clamp() Generation {
	g.Width = clampDimension(g.Width)
	g.Height = clampDimension(g.Height)
	g.Steps = clampInt(g.Steps, MinSteps, MaxSteps)
	g.BatchSize = clampInt(g.BatchSize, MinBatchSize, MaxBatchSize)
	if math.IsNaN(g.CFGScale) {
		g.CFGScale = Default().CFGScale
	}
	g.CFGScale = math.Min(math.Max(g.CFGScale, MinCFGScale), MaxCFGScale)
	if g.Seed < RandomSeed {
		g.Seed = RandomSeed
	}
	return g
}

// Validate reports problems the caller must fix before submitting.
func (g Generation) Validate() error {
	if strings.TrimSpace(g.Prompt) == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	return nil
}

// Pixels returns the total pixel count of one batch.
func (g Generation) Pixels() int64 {
	return int64(g.Width) * int64(g.Height) * int64(g.BatchSize)
}

// Summary is a one-line description used by the gallery and CLI.
func (g Generation) Summary() string {
	seed := "random"
	if g.Seed >= 0 {
		seed = fmt.Sprintf("%d", g.Seed)
	}
	return fmt.Sprintf("%dx%d · %d steps · cfg %.1f · %s · seed %s",
		g.Width, g.Height, g.Steps, g.CFGScale, g.Sampler, seed)
}

// NewSeed returns a uniformly random seed in [0, 2^31-1).
func NewSeed() int64 {
	return rand.Int64N(maxSeed)
}

// ValidationError is a caller-correctable input problem. It never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func clampDimension(v int) int {
	v = clampInt(v, MinDimension, MaxDimension)
	return v - v%8
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
