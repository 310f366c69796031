package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/careerrec/internal/model"
	"github.com/xxxsen/careerrec/internal/pkg/dbutil"
)

// PgVectorIndex stores records in the resource_vectors table and ranks by cosine distance.
type PgVectorIndex struct {
	db *sql.DB
}

func NewPgVectorIndex(db *sql.DB) *PgVectorIndex {
	return &PgVectorIndex{db: db}
}

// Upsert writes records in one INSERT ... ON CONFLICT. Postgres rejects a statement that touches
// the same id twice, so duplicate ids in a batch collapse first and the last one wins.
func (p *PgVectorIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	records = dedupeRecords(records)
	now := time.Now().Unix()
	rows := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		roles := rec.Metadata.Roles
		if roles == nil {
			roles = []string{}
		}
		rolesJSON, err := json.Marshal(roles)
		if err != nil {
			return err
		}
		rows = append(rows, map[string]interface{}{
			"id":          rec.ID,
			"embedding":   pgvector.NewVector(rec.Values),
			"title":       rec.Metadata.Title,
			"description": rec.Metadata.Description,
			"url":         rec.Metadata.URL,
			"category":    rec.Metadata.Category,
			"roles":       string(rolesJSON),
			"mtime":       now,
		})
	}
	sqlStr, args, err := builder.BuildInsert("resource_vectors", rows)
	if err != nil {
		return err
	}
	sqlStr = dbutil.OnConflictUpdate(sqlStr, []string{"embedding", "title", "description", "url", "category", "roles", "mtime"}, "id")
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := p.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert resource vectors: %w", err)
	}
	return nil
}

func (p *PgVectorIndex) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]model.QueryResult, error) {
	const query = `
		SELECT id, title, description, url, category, roles, 1 - (embedding <=> $1) AS score
		FROM resource_vectors
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := p.db.QueryContext(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query resource vectors: %w", err)
	}
	defer rows.Close()
	results := make([]model.QueryResult, 0, topK)
	for rows.Next() {
		var item model.QueryResult
		var md model.Metadata
		var roles []byte
		var score float64
		if err := rows.Scan(&item.ID, &md.Title, &md.Description, &md.URL, &md.Category, &roles, &score); err != nil {
			return nil, err
		}
		md.Roles = []string{}
		if len(roles) > 0 {
			if err := json.Unmarshal(roles, &md.Roles); err != nil {
				return nil, err
			}
		}
		item.Score = float32(score)
		if includeMetadata {
			item.Metadata = md
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func createPgVectorIndex(args interface{}, deps Deps) (Index, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("pgvector index requires database config")
	}
	return NewPgVectorIndex(deps.DB), nil
}

func init() {
	Register("pgvector", createPgVectorIndex)
}
