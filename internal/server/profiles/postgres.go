package profiles

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/typerank/internal/dbx"
)

// PostgresRepository keeps profiles in one table keyed by lowercased
// username. SaveAll maps the whole-document overwrite onto a transaction.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) LoadAll(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, score, accuracy, updated_at, region FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	defer rows.Close()

	list := []Profile{}
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.Username, &p.Score, &p.Accuracy, &p.Timestamp, &p.Region); err != nil {
			return nil, fmt.Errorf("error scanning row: %v", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %v", err)
	}

	return list, nil
}

func (r *PostgresRepository) SaveAll(ctx context.Context, list []Profile) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
			return fmt.Errorf("error performing sql request: %v", err)
		}

		for _, p := range list {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO profiles (username, score, accuracy, updated_at, region)
				 VALUES (lower($1), $2, $3, $4, $5)`,
				p.Username, p.Score, p.Accuracy, p.Timestamp, p.Region)
			if err != nil {
				return fmt.Errorf("error performing sql request: %v", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) Upsert(ctx context.Context, p Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (username, score, accuracy, updated_at, region)
		 VALUES (lower($1), $2, $3, $4, $5)
		 ON CONFLICT (username)
		 DO UPDATE SET score = EXCLUDED.score,
		               accuracy = EXCLUDED.accuracy,
		               updated_at = EXCLUDED.updated_at,
		               region = EXCLUDED.region`,
		p.Username, p.Score, p.Accuracy, p.Timestamp, p.Region)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	return nil
}
