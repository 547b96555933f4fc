package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/five82/sdpanel/internal/gallery"
)

const (
	keyBackend      = "backend"
	keyParams       = "params"
	keyCurrentModel = "current_model"
)

// SQLiteStore persists a Document across a settings table and an images table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		data BLOB NOT NULL,
		params TEXT NOT NULL,
		result TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_images_position ON images(position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DB exposes the handle so other tables can share the file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the document. An empty database yields default parameters and
// no images.
func (s *SQLiteStore) Load(ctx context.Context) (Document, error) {
	doc := emptyDocument()

	settings, err := s.settings(ctx)
	if err != nil {
		return Document{}, err
	}
	if raw, ok := settings[keyBackend]; ok {
		if err := json.Unmarshal([]byte(raw), &doc.Backend); err != nil {
			return Document{}, fmt.Errorf("decode backend: %w", err)
		}
	}
	if raw, ok := settings[keyParams]; ok {
		if err := json.Unmarshal([]byte(raw), &doc.Params); err != nil {
			return Document{}, fmt.Errorf("decode params: %w", err)
		}
	}
	doc.CurrentModel = settings[keyCurrentModel]

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, params, result, created_at FROM images ORDER BY position`)
	if err != nil {
		return Document{}, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			img        gallery.Image
			paramsJSON string
			resultJSON sql.NullString
			created    int64
		)
		if err := rows.Scan(&img.ID, &img.Data, &paramsJSON, &resultJSON, &created); err != nil {
			return Document{}, fmt.Errorf("scan image: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &img.Params); err != nil {
			return Document{}, fmt.Errorf("decode params of %s: %w", img.ID, err)
		}
		if resultJSON.Valid && resultJSON.String != "" {
			img.Result = &gallery.ResultInfo{}
			if err := json.Unmarshal([]byte(resultJSON.String), img.Result); err != nil {
				return Document{}, fmt.Errorf("decode result of %s: %w", img.ID, err)
			}
		}
		img.CreatedAt = time.Unix(0, created).UTC()
		doc.Images = append(doc.Images, img)
	}
	return doc, rows.Err()
}

// Save writes doc in one transaction. Images are immutable, so only ids not
// already stored are inserted; the rest are reordered or deleted.
func (s *SQLiteStore) Save(ctx context.Context, doc Document) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	backendJSON, err := json.Marshal(doc.Backend)
	if err != nil {
		return fmt.Errorf("encode backend: %w", err)
	}
	paramsJSON, err := json.Marshal(doc.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	for key, value := range map[string]string{
		keyBackend:      string(backendJSON),
		keyParams:       string(paramsJSON),
		keyCurrentModel: doc.CurrentModel,
	} {
		if _, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO settings (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)`, key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	existing, err := storedIDs(ctx, tx)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(doc.Images))
	for pos, img := range doc.Images {
		keep[img.ID] = struct{}{}
		if _, ok := existing[img.ID]; ok {
			if _, err = tx.ExecContext(ctx, `UPDATE images SET position = ? WHERE id = ?`, pos, img.ID); err != nil {
				return fmt.Errorf("reorder %s: %w", img.ID, err)
			}
			continue
		}
		if err = insertImage(ctx, tx, pos, img); err != nil {
			return err
		}
	}
	for id := range existing {
		if _, ok := keep[id]; ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func storedIDs(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM images`)
	if err != nil {
		return nil, fmt.Errorf("query image ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func insertImage(ctx context.Context, tx *sql.Tx, pos int, img gallery.Image) error {
	if img.ID == "" {
		return errors.New("image without id")
	}
	paramsJSON, err := json.Marshal(img.Params)
	if err != nil {
		return fmt.Errorf("encode params of %s: %w", img.ID, err)
	}
	var result sql.NullString
	if img.Result != nil {
		raw, err := json.Marshal(img.Result)
		if err != nil {
			return fmt.Errorf("encode result of %s: %w", img.ID, err)
		}
		result = sql.NullString{String: string(raw), Valid: true}
	}
	data := img.Data
	if data == nil {
		data = []byte{}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO images (id, position, data, params, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		img.ID, pos, data, string(paramsJSON), result, img.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert %s: %w", img.ID, err)
	}
	return nil
}
