// Package store implements the model store (C4): a SQLite-backed,
// per-user-isolated table of enrolled face embeddings, encrypted at
// rest with AES-256-GCM under a per-installation key.
package store

import (
	"crypto/cipher"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/visage-project/visage/internal/inference"
)

// FaceModel is a persisted enrollment.
type FaceModel struct {
	ModelID      string
	User         string
	Label        string
	CreatedAt    time.Time
	Embedding    inference.Embedding
	QualityScore float64
	PoseLabel    string
}

// Store owns the long-lived database handle. It is the daemon's only
// route to the embedded store; the engine's blocking worker calls
// through it rather than holding its own connection, per the
// single-owner resource model.
type Store struct {
	db   *sql.DB
	aead cipher.AEAD
}

// Open creates the database and per-installation key file if absent,
// runs schema migrations, and returns a ready Store.
func Open(dbPath, keyPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}

	rawKey, err := loadOrCreateKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	cipherKey, err := deriveCipherKey(rawKey)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(cipherKey)
	if err != nil {
		return nil, fmt.Errorf("build AEAD: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}

	s := &Store{db: db, aead: aead}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS models (
		model_id TEXT PRIMARY KEY,
		user TEXT NOT NULL,
		label TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		quality_score REAL,
		pose_label TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_models_user ON models(user);

	CREATE TABLE IF NOT EXISTS auth_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user TEXT NOT NULL,
		success INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auth_log_user ON auth_log(user);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enroll inserts a newly computed enrollment embedding and returns its
// generated model_id.
func (s *Store) Enroll(user, label string, embedding inference.Embedding, qualityScore float64) (string, error) {
	modelID := uuid.NewString()

	plaintext := vectorToBytes(embedding.Vector)
	ciphertext, err := encryptEmbedding(s.aead, plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt embedding: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO models (model_id, user, label, created_at, embedding, quality_score, pose_label)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		modelID, user, label, time.Now().Unix(), ciphertext, qualityScore, "",
	)
	if err != nil {
		return "", fmt.Errorf("insert model: %w", err)
	}
	return modelID, nil
}

// ListModels returns every model belonging to user, most recent first.
func (s *Store) ListModels(user string) ([]FaceModel, error) {
	rows, err := s.db.Query(
		`SELECT model_id, user, label, created_at, embedding, quality_score, pose_label
		 FROM models WHERE user = ? ORDER BY created_at DESC`,
		user,
	)
	if err != nil {
		return nil, fmt.Errorf("query models for %s: %w", user, err)
	}
	defer func() { _ = rows.Close() }()

	var models []FaceModel
	for rows.Next() {
		m, blob, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		plaintext, err := decodeEmbeddingBytes(s.aead, blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for model %s: %w", m.ModelID, err)
		}
		m.Embedding = inference.Embedding{Vector: bytesToVector(plaintext), ModelVersion: inference.ModelVersion}
		models = append(models, m)
	}
	return models, rows.Err()
}

func scanModel(rows *sql.Rows) (FaceModel, []byte, error) {
	var m FaceModel
	var createdAt int64
	var quality sql.NullFloat64
	var pose sql.NullString
	var blob []byte

	if err := rows.Scan(&m.ModelID, &m.User, &m.Label, &createdAt, &blob, &quality, &pose); err != nil {
		return FaceModel{}, nil, fmt.Errorf("scan model row: %w", err)
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	if quality.Valid {
		m.QualityScore = quality.Float64
	}
	if pose.Valid {
		m.PoseLabel = pose.String
	}
	return m, blob, nil
}

// RemoveModel deletes a model row, scoped to user. It returns false
// (not an error) if no row matched — cross-user deletes are no-ops.
func (s *Store) RemoveModel(user, modelID string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM models WHERE user = ? AND model_id = ?`, user, modelID)
	if err != nil {
		return false, fmt.Errorf("delete model %s for %s: %w", modelID, user, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// CountModels reports the total number of enrolled models across all
// users, used by the Status diagnostic.
func (s *Store) CountModels() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM models`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count models: %w", err)
	}
	return count, nil
}

// CountDistinctUsers reports the number of distinct enrolled users, used
// by the Status diagnostic.
func (s *Store) CountDistinctUsers() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT user) FROM models`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// RecordAttempt appends a row to the additive audit log. It is never
// read by any authorization decision.
func (s *Store) RecordAttempt(user string, success bool) {
	_, _ = s.db.Exec(
		`INSERT INTO auth_log (user, success, created_at) VALUES (?, ?, ?)`,
		user, success, time.Now().Unix(),
	)
}
