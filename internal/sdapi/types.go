package sdapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ModelInfo mirrors an entry of /sdapi/v1/sd-models.
type ModelInfo struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
	Hash      string `json:"hash,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// SamplerInfo mirrors an entry of /sdapi/v1/samplers. Options is loosely typed
// because backends disagree on its shape.
type SamplerInfo struct {
	Name    string         `json:"name"`
	Aliases []string       `json:"aliases"`
	Options map[string]any `json:"options"`
}

// Progress is one poll of /sdapi/v1/progress.
type Progress struct {
	Fraction   float64
	ETASeconds float64
	Job        JobState
	Preview    []byte
}

// JobState reports where the backend is inside the running job.
type JobState struct {
	Interrupted bool   `json:"interrupted"`
	Skipped     bool   `json:"skipped"`
	Job         string `json:"job"`
	JobNo       int    `json:"job_no"`
	JobCount    int    `json:"job_count"`
	Step        int    `json:"sampling_step"`
	Steps       int    `json:"sampling_steps"`
}

// Clone returns a deep copy so callers can hold it past the next poll.
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	dup := *p
	if p.Preview != nil {
		dup.Preview = append([]byte(nil), p.Preview...)
	}
	return &dup
}

// Percent returns Fraction scaled to 0..100.
func (p *Progress) Percent() float64 {
	if p == nil {
		return 0
	}
	return p.Fraction * 100
}

// GenerationResult is a decoded txt2img response.
type GenerationResult struct {
	Images [][]byte
	// Info is the backend's JSON-in-a-string description of the run.
	Info       string
	Parameters map[string]any
}

type optionsPayload struct {
	ModelCheckpoint string `json:"sd_model_checkpoint"`
}

type progressPayload struct {
	Progress     float64  `json:"progress"`
	EtaRelative  float64  `json:"eta_relative"`
	State        JobState `json:"state"`
	CurrentImage *string  `json:"current_image"`
}

type txt2imgRequest struct {
	Prompt           string         `json:"prompt"`
	NegativePrompt   string         `json:"negative_prompt"`
	Width            int            `json:"width"`
	Height           int            `json:"height"`
	Steps            int            `json:"steps"`
	CFGScale         float64        `json:"cfg_scale"`
	SamplerName      string         `json:"sampler_name"`
	Seed             int64          `json:"seed"`
	BatchSize        int            `json:"batch_size"`
	NIter            int            `json:"n_iter"`
	OverrideSettings map[string]any `json:"override_settings,omitempty"`
}

type txt2imgResponse struct {
	Images     []string       `json:"images"`
	Parameters map[string]any `json:"parameters"`
	Info       string         `json:"info"`
}

func (p progressPayload) snapshot() (*Progress, error) {
	out := &Progress{
		Fraction:   clampFraction(p.Progress),
		ETASeconds: p.EtaRelative,
		Job:        p.State,
	}
	if p.CurrentImage != nil && *p.CurrentImage != "" {
		img, err := DecodeImage(*p.CurrentImage)
		if err != nil {
			return nil, fmt.Errorf("decode preview: %w", err)
		}
		out.Preview = img
	}
	return out, nil
}

// DecodeImage decodes a base64 image, tolerating a data URL prefix.
func DecodeImage(encoded string) ([]byte, error) {
	payload := strings.TrimSpace(encoded)
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx >= 0 {
			payload = payload[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ParseInfo decodes the info string into a generic map. Malformed input
// yields nil rather than an error.
func ParseInfo(info string) map[string]any {
	trimmed := strings.TrimSpace(info)
	if trimmed == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil
	}
	return out
}

func clampFraction(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
