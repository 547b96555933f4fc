// Package persist stores the durable part of the panel's state between runs.
//
// Two backends exist. SQLiteStore keeps settings and images in separate
// tables so a save only writes images that are new. FileStore writes the whole
// document as one zstd-compressed JSON file. Both return an empty Document
// when nothing has been saved yet.
//
// Connection status and generation progress are live state and have no place
// in a Document.
package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/five82/sdpanel/internal/gallery"
	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/sdapi"
)

// Kinds accepted by Open.
const (
	KindSQLite = "sqlite"
	KindFile   = "file"
)

// File names inside the data directory.
const (
	SQLiteFile = "sdpanel.db"
	StateFile  = "state.json.zst"
)

// Document is the durable subset of panel state.
type Document struct {
	Backend      sdapi.BackendConfig `json:"backend"`
	Params       params.Generation   `json:"params"`
	Images       []gallery.Image     `json:"images"`
	CurrentModel string              `json:"currentModel,omitempty"`
}

// Store loads and saves Documents.
type Store interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
	Close() error
}

// Open creates the data directory if needed and returns the store for kind.
func Open(kind, dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindSQLite:
		return OpenSQLite(filepath.Join(dir, SQLiteFile))
	case KindFile:
		return NewFileStore(filepath.Join(dir, StateFile))
	default:
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}
}

func emptyDocument() Document {
	return Document{Params: params.Default()}
}
