package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatkeeper/internal/dbx"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
)

// PostgresRepository implements image metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const imageColumns = `id, owner, filename, original_name, path, size, mime_type, created_at`

func scanImage(row interface{ Scan(...any) error }) (*models.Image, error) {
	var img models.Image
	err := row.Scan(&img.ID, &img.Owner, &img.Filename, &img.OriginalName, &img.Path, &img.Size, &img.MimeType, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// Create records an uploaded image and returns the stored row.
func (r *PostgresRepository) Create(ctx context.Context, owner string, meta models.ImageMeta) (*models.Image, error) {
	query := `
		INSERT INTO images (owner, filename, original_name, path, size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + imageColumns

	img, err := scanImage(r.db.QueryRowContext(ctx, query,
		owner, meta.Filename, meta.OriginalName, meta.Path, meta.Size, meta.MimeType))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return img, nil
}

// ListRecent returns owner's images ordered by created_at DESC, id DESC.
func (r *PostgresRepository) ListRecent(ctx context.Context, owner string, limit int) ([]*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images
		WHERE owner = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", dbx.Classify(err))
	}
	defer rows.Close()

	result := []*models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, img)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return result, nil
}

// PathFor reads the storage path of an owned image and locks the row until
// the surrounding transaction ends.
func (r *PostgresRepository) PathFor(ctx context.Context, id int64, owner string) (string, bool, error) {
	query := `SELECT path FROM images WHERE id = $1 AND owner = $2 FOR UPDATE`

	var path string
	if err := r.db.QueryRowContext(ctx, query, id, owner).Scan(&path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return path, true, nil
}

// Delete removes an owned image row and reports the affected count.
func (r *PostgresRepository) Delete(ctx context.Context, id int64, owner string) (int64, error) {
	query := `DELETE FROM images WHERE id = $1 AND owner = $2`

	res, err := r.db.ExecContext(ctx, query, id, owner)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
