package params

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Prompt         *string
	NegativePrompt *string
	Width          *int
	Height         *int
	Steps          *int
	CFGScale       *float64
	Sampler        *string
	Seed           *int64
	BatchSize      *int
	Model          *string
}

// Apply shallow-merges p into g. It performs no validation.
func (g Generation) Apply(p Patch) Generation {
	if p.Prompt != nil {
		g.Prompt = *p.Prompt
	}
	if p.NegativePrompt != nil {
		g.NegativePrompt = *p.NegativePrompt
	}
	if p.Width != nil {
		g.Width = *p.Width
	}
	if p.Height != nil {
		g.Height = *p.Height
	}
	if p.Steps != nil {
		g.Steps = *p.Steps
	}
	if p.CFGScale != nil {
		g.CFGScale = *p.CFGScale
	}
	if p.Sampler != nil {
		g.Sampler = *p.Sampler
	}
	if p.Seed != nil {
		g.Seed = *p.Seed
	}
	if p.BatchSize != nil {
		g.BatchSize = *p.BatchSize
	}
	if p.Model != nil {
		g.Model = *p.Model
	}
	return g
}

// AsPatch returns a patch that sets every field of g.
func (g Generation) AsPatch() Patch {
	return Patch{
		Prompt:         &g.Prompt,
		NegativePrompt: &g.NegativePrompt,
		Width:          &g.Width,
		Height:         &g.Height,
		Steps:          &g.Steps,
		CFGScale:       &g.CFGScale,
		Sampler:        &g.Sampler,
		Seed:           &g.Seed,
		BatchSize:      &g.BatchSize,
		Model:          &g.Model,
	}
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}
