package storage

import (
	"context"
	"errors"
	"fmt"

	"docrag/internal/models"
	"docrag/internal/util"

	"github.com/jackc/pgx/v5"
)

type CollectionRepo struct {
	db *DB
}

func NewCollectionRepo(db *DB) *CollectionRepo {
	return &CollectionRepo{db: db}
}

func (r *CollectionRepo) Create(ctx context.Context, c models.Collection) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO collections (collection_id, name, description)
VALUES ($1, $2, NULLIF($3,''))`,
		c.CollectionID, c.Name, c.Description)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

func (r *CollectionRepo) Get(ctx context.Context, collectionID string) (models.Collection, error) {
	var c models.Collection
	err := r.db.Pool.QueryRow(ctx, `
SELECT collection_id::text, name, COALESCE(description,''), created_at
FROM collections WHERE collection_id=$1`, collectionID).
		Scan(&c.CollectionID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Collection{}, &util.NotFoundError{Kind: "collection", ID: collectionID}
	}
	if err != nil {
		return models.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return c, nil
}

func (r *CollectionRepo) List(ctx context.Context) ([]models.Collection, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT collection_id::text, name, COALESCE(description,''), created_at
FROM collections ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	out := make([]models.Collection, 0)
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.CollectionID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}
