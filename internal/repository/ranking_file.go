// Package repository provides persistence backends for the global ranking.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"quizbot/internal/model"
)

// DefaultRankingFile is the checkpoint file used when none is configured.
const DefaultRankingFile = "quiz_data.json"

// rankingDocument is the on-disk layout:
//
//	{"globalRanking": [["<playerId>", {"username": "...", "points": 3}], ...]}
type rankingDocument struct {
	GlobalRanking []json.RawMessage `json:"globalRanking"`
}

type rankingRecord struct {
	Username string `json:"username"`
	Points   int64  `json:"points"`
}

// FileRanking stores the ranking as a single JSON document.
type FileRanking struct {
	path string
}

// NewFileRanking creates a file-backed ranking repository.
func NewFileRanking(path string) *FileRanking {
	if path == "" {
		path = DefaultRankingFile
	}
	return &FileRanking{path: path}
}

// Path returns the checkpoint location.
func (r *FileRanking) Path() string {
	return r.path
}

// Load reads the checkpoint. A missing file yields an error wrapping
// fs.ErrNotExist; a document that is not valid JSON yields a decode error.
// Individual malformed pairs are skipped with a warning and unknown fields
// are ignored.
func (r *FileRanking) Load(_ context.Context) ([]model.RankEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ranking file: %w", err)
	}

	var doc rankingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ranking file: %w", err)
	}

	entries := make([]model.RankEntry, 0, len(doc.GlobalRanking))
	for i, raw := range doc.GlobalRanking {
		entry, err := decodePair(raw)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Str("path", r.path).Msg("Skipping malformed ranking entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Save replaces the checkpoint atomically: the document is written to a
// temporary file in the same directory and renamed over the old one.
func (r *FileRanking) Save(_ context.Context, entries []model.RankEntry) error {
	doc := rankingDocument{GlobalRanking: make([]json.RawMessage, 0, len(entries))}
	for _, e := range entries {
		pair, err := json.Marshal([]any{
			strconv.FormatInt(e.PlayerID, 10),
			rankingRecord{Username: e.Username, Points: e.Points},
		})
		if err != nil {
			return fmt.Errorf("failed to encode ranking entry: %w", err)
		}
		doc.GlobalRanking = append(doc.GlobalRanking, pair)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ranking: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".ranking-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp ranking file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ranking file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ranking file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace ranking file: %w", err)
	}
	return nil
}

// decodePair parses one [playerId, record] pair. The id may be a JSON
// string or number.
func decodePair(raw json.RawMessage) (model.RankEntry, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil {
		return model.RankEntry{}, fmt.Errorf("entry is not an array: %w", err)
	}
	if len(pair) != 2 {
		return model.RankEntry{}, fmt.Errorf("entry has %d elements, want 2", len(pair))
	}

	id, err := decodePlayerID(pair[0])
	if err != nil {
		return model.RankEntry{}, err
	}

	var rec rankingRecord
	if err := json.Unmarshal(pair[1], &rec); err != nil {
		return model.RankEntry{}, fmt.Errorf("invalid record for player %d: %w", id, err)
	}
	if rec.Points < 0 {
		return model.RankEntry{}, fmt.Errorf("negative points for player %d", id)
	}

	return model.RankEntry{PlayerID: id, Username: rec.Username, Points: rec.Points}, nil
}

func decodePlayerID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid player id %q", s)
		}
		return id, nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, fmt.Errorf("invalid player id %s", raw)
	}
	id, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("invalid player id %s", raw)
	}
	return id, nil
}
