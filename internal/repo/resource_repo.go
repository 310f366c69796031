package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/careerrec/internal/model"
	"github.com/xxxsen/careerrec/internal/pkg/dbutil"
	appErr "github.com/xxxsen/careerrec/internal/pkg/errors"
)

var resourceColumns = []string{"id", "url", "title", "description", "category", "roles", "seq", "ctime", "mtime"}

type ResourceRepo struct {
	db *sql.DB
}

func NewResourceRepo(db *sql.DB) *ResourceRepo {
	return &ResourceRepo{db: db}
}

// UpsertBatch writes resources keeping their slice position as catalog order, starting at seqStart.
func (r *ResourceRepo) UpsertBatch(ctx context.Context, items []model.Resource, seqStart int64) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().Unix()
	rows := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		roles, err := encodeRoles(item.Roles)
		if err != nil {
			return err
		}
		rows = append(rows, map[string]interface{}{
			"id":          item.ID,
			"url":         item.URL,
			"title":       item.Title,
			"description": item.Description,
			"category":    item.Category,
			"roles":       roles,
			"seq":         seqStart + int64(i),
			"ctime":       now,
			"mtime":       now,
		})
	}
	sqlStr, args, err := builder.BuildInsert("resources", rows)
	if err != nil {
		return err
	}
	// ctime keeps the first import time
	updates := []string{"url", "title", "description", "category", "roles", "seq", "mtime"}
	sqlStr = dbutil.OnConflictUpdate(sqlStr, updates, "id")
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ResourceRepo) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("resources", where, resourceColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	item, err := scanResource(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List returns resources in catalog order. limit <= 0 means no limit.
func (r *ResourceRepo) List(ctx context.Context, category string, offset, limit int) ([]model.Resource, error) {
	where := map[string]interface{}{"_orderby": "seq asc, id asc"}
	if category != "" {
		where["category"] = category
	}
	if limit > 0 {
		if offset < 0 {
			offset = 0
		}
		where["_limit"] = []uint{uint(offset), uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("resources", where, resourceColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Resource, 0)
	for rows.Next() {
		item, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *ResourceRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM resources").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResource(row rowScanner) (*model.Resource, error) {
	var item model.Resource
	var roles []byte
	var seq, ctime, mtime int64
	if err := row.Scan(&item.ID, &item.URL, &item.Title, &item.Description, &item.Category, &roles, &seq, &ctime, &mtime); err != nil {
		return nil, err
	}
	item.Roles = make([]string, 0)
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &item.Roles); err != nil {
			return nil, err
		}
	}
	return &item, nil
}

func encodeRoles(roles []string) (string, error) {
	if roles == nil {
		roles = []string{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
