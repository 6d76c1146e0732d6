package messages

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chatkeeper/internal/dbx"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
)

// PostgresRepository implements message storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a message; id and created_at are assigned by the store.
func (r *PostgresRepository) Create(ctx context.Context, owner, body string) (*models.Message, error) {
	query :=
		`INSERT INTO messages (owner, body)
		 VALUES ($1, $2)
		 RETURNING id, owner, body, created_at
		 `

	m := &models.Message{}
	err := r.db.QueryRowContext(ctx, query, owner, body).Scan(&m.ID, &m.Owner, &m.Body, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return m, nil
}

// ListRecent orders by created_at DESC with id DESC as the tie-break.
func (r *PostgresRepository) ListRecent(ctx context.Context, owner string, limit int) ([]*models.Message, error) {
	query :=
		`SELECT id, owner, body, created_at FROM messages
		 WHERE owner = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", dbx.Classify(err))
	}
	defer rows.Close()

	result := []*models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Owner, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64, owner string) (int64, error) {
	query := `DELETE FROM messages WHERE id = $1 AND owner = $2`

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
