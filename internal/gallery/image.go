package gallery

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/sdapi"
)

// Image is one completed generation output. It is never mutated after creation.
type Image struct {
	ID        string            `json:"id"`
	Data      []byte            `json:"data"`
	Params    params.Generation `json:"params"`
	CreatedAt time.Time         `json:"createdAt"`
	Result    *ResultInfo       `json:"result,omitempty"`
}

// ResultInfo is what the backend reported about the run that produced an image.
type ResultInfo struct {
	Seed     int64          `json:"seed"`
	Model    string         `json:"model,omitempty"`
	Sampler  string         `json:"sampler,omitempty"`
	Steps    int            `json:"steps,omitempty"`
	CFGScale float64        `json:"cfgScale,omitempty"`
	Width    int            `json:"width,omitempty"`
	Height   int            `json:"height,omitempty"`
	Raw      map[string]any `json:"raw,omitempty"`
}

// NewImages builds a batch from one backend response, keeping the response
// order. Every image gets its own copy of p.
func NewImages(data [][]byte, p params.Generation, info string, now time.Time) []Image {
	raw := sdapi.ParseInfo(info)
	out := make([]Image, 0, len(data))
	for i, d := range data {
		out = append(out, Image{
			ID:        uuid.NewString(),
			Data:      append([]byte(nil), d...),
			Params:    p,
			CreatedAt: now,
			Result:    parseResultInfo(raw, i, p.Seed),
		})
	}
	return out
}

// Size returns the byte length of the image data.
func (img Image) Size() int {
	return len(img.Data)
}

// Seed returns the seed the backend actually used, falling back to the
// requested one.
func (img Image) Seed() int64 {
	if img.Result != nil {
		return img.Result.Seed
	}
	return img.Params.Seed
}

func (img Image) clone() Image {
	dup := img
	dup.Data = append([]byte(nil), img.Data...)
	if img.Result != nil {
		r := *img.Result
		r.Raw = maps.Clone(img.Result.Raw)
		dup.Result = &r
	}
	return dup
}

// parseResultInfo reads the known keys out of a decoded info map. A nil map
// means the info was absent or malformed. The seed falls back from
// all_seeds[index] to seed to the requested one. Each result owns its map.
func parseResultInfo(raw map[string]any, index int, requested int64) *ResultInfo {
	if raw == nil {
		return nil
	}
	info := &ResultInfo{Raw: maps.Clone(raw), Seed: requested}
	if seed, ok := numberAt(raw["all_seeds"], index); ok {
		info.Seed = int64(seed)
	} else if seed, ok := number(raw["seed"]); ok {
		info.Seed = int64(seed)
	}
	info.Model = firstString(raw, "sd_model_name", "sd_model_checkpoint", "model")
	info.Sampler = firstString(raw, "sampler_name", "sampler")
	if v, ok := number(raw["steps"]); ok {
		info.Steps = int(v)
	}
	if v, ok := number(raw["cfg_scale"]); ok {
		info.CFGScale = v
	}
	if v, ok := number(raw["width"]); ok {
		info.Width = int(v)
	}
	if v, ok := number(raw["height"]); ok {
		info.Height = int(v)
	}
	return info
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func numberAt(v any, index int) (float64, bool) {
	list, ok := v.([]any)
	if !ok || index < 0 || index >= len(list) {
		return 0, false
	}
	return number(list[index])
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
