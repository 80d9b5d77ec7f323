package store

import (
	"path/filepath"
	"testing"

	"github.com/visage-project/visage/internal/inference"
)

func testEmbedding(seed float32) inference.Embedding {
	vec := make([]float32, inference.EmbeddingSize)
	for i := range vec {
		vec[i] = seed + float32(i)
	}
	return inference.L2Normalize(vec, inference.ModelVersion)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "models.db"), filepath.Join(dir, "models.db.key"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnrollListRoundTrip(t *testing.T) {
	s := openTestStore(t)

	emb := testEmbedding(1)
	modelID, err := s.Enroll("alice", "front", emb, 0.9)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if modelID == "" {
		t.Fatal("expected non-empty model id")
	}

	models, err := s.ListModels("alice")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	if models[0].ModelID != modelID {
		t.Fatalf("model id mismatch: got %s want %s", models[0].ModelID, modelID)
	}
	for i, v := range models[0].Embedding.Vector {
		if v != emb.Vector[i] {
			t.Fatalf("embedding round-trip mismatch at %d: got %f want %f", i, v, emb.Vector[i])
		}
	}
}

func TestListModelsEmptyForUnknownUser(t *testing.T) {
	s := openTestStore(t)
	models, err := s.ListModels("nobody")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("expected no models, got %d", len(models))
	}
}

func TestRemoveModelCrossUserIsolation(t *testing.T) {
	s := openTestStore(t)

	modelID, err := s.Enroll("alice", "front", testEmbedding(2), 0.8)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	removed, err := s.RemoveModel("bob", modelID)
	if err != nil {
		t.Fatalf("remove model: %v", err)
	}
	if removed {
		t.Fatal("cross-user removal must not succeed")
	}

	models, err := s.ListModels("alice")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected model to survive cross-user removal attempt, got %d models", len(models))
	}
}

func TestRemoveModelOwnerSucceeds(t *testing.T) {
	s := openTestStore(t)

	modelID, err := s.Enroll("alice", "front", testEmbedding(3), 0.7)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	removed, err := s.RemoveModel("alice", modelID)
	if err != nil {
		t.Fatalf("remove model: %v", err)
	}
	if !removed {
		t.Fatal("expected owner removal to succeed")
	}

	models, err := s.ListModels("alice")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("expected no remaining models, got %d", len(models))
	}
}

func TestRemoveModelUnknownIDReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	removed, err := s.RemoveModel("alice", "does-not-exist")
	if err != nil {
		t.Fatalf("remove model: %v", err)
	}
	if removed {
		t.Fatal("expected false for unknown model id")
	}
}

func TestCountModelsAndUsers(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Enroll("alice", "front", testEmbedding(4), 0.5); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := s.Enroll("alice", "side", testEmbedding(5), 0.6); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := s.Enroll("bob", "front", testEmbedding(6), 0.7); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	count, err := s.CountModels()
	if err != nil {
		t.Fatalf("count models: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 models, got %d", count)
	}

	users, err := s.CountDistinctUsers()
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users != 2 {
		t.Fatalf("expected 2 distinct users, got %d", users)
	}
}

func TestOpenReusesExistingKeyAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "models.db")
	keyPath := filepath.Join(dir, "models.db.key")

	s1, err := Open(dbPath, keyPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	modelID, err := s1.Enroll("alice", "front", testEmbedding(7), 0.5)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(dbPath, keyPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer func() { _ = s2.Close() }()

	models, err := s2.ListModels("alice")
	if err != nil {
		t.Fatalf("list models after restart: %v", err)
	}
	if len(models) != 1 || models[0].ModelID != modelID {
		t.Fatalf("expected surviving model %s after restart, got %+v", modelID, models)
	}
}

func TestLegacyPlaintextEmbeddingIsReadable(t *testing.T) {
	s := openTestStore(t)

	emb := testEmbedding(8)
	plaintext := vectorToBytes(emb.Vector)
	if len(plaintext) != rawEmbeddingSize {
		t.Fatalf("expected legacy blob of %d bytes, got %d", rawEmbeddingSize, len(plaintext))
	}

	_, err := s.db.Exec(
		`INSERT INTO models (model_id, user, label, created_at, embedding, quality_score, pose_label)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"legacy-model", "alice", "legacy", 0, plaintext, 0.5, "",
	)
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	models, err := s.ListModels("alice")
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 legacy model, got %d", len(models))
	}
	for i, v := range models[0].Embedding.Vector {
		if v != emb.Vector[i] {
			t.Fatalf("legacy embedding mismatch at %d: got %f want %f", i, v, emb.Vector[i])
		}
	}
}
