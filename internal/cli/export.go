package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/five82/sdpanel/internal/gallery"
	"github.com/five82/sdpanel/internal/params"
)

// sidecar is the YAML written next to each exported image.
type sidecar struct {
	ID        string            `yaml:"id"`
	CreatedAt time.Time         `yaml:"created_at"`
	Seed      int64             `yaml:"seed"`
	Model     string            `yaml:"model,omitempty"`
	Params    params.Generation `yaml:"params"`
}

func newSidecar(img gallery.Image) sidecar {
	sc := sidecar{
		ID:        img.ID,
		CreatedAt: img.CreatedAt.UTC(),
		Seed:      img.Seed(),
		Model:     img.Params.Model,
		Params:    img.Params,
	}
	if r := img.Result; r != nil && r.Model != "" {
		sc.Model = r.Model
	}
	return sc
}

// exportImage writes <id>.png and <id>.yaml into dir and returns the image path.
func exportImage(dir string, img gallery.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	imagePath := filepath.Join(dir, img.ID+".png")
	if err := os.WriteFile(imagePath, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", img.ID, err)
	}
	meta, err := yaml.Marshal(newSidecar(img))
	if err != nil {
		return "", fmt.Errorf("encode sidecar %s: %w", img.ID, err)
	}
	if err := os.WriteFile(filepath.Join(dir, img.ID+".yaml"), meta, 0o644); err != nil {
		return "", fmt.Errorf("write sidecar %s: %w", img.ID, err)
	}
	return imagePath, nil
}

// readSidecar loads an exported sidecar back.
func readSidecar(path string) (sidecar, error) {
	var sc sidecar
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("decode sidecar: %w", err)
	}
	return sc, nil
}
