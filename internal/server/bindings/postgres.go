package bindings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/cryptox"
	"github.com/dmitrijs2005/typerank/internal/dbx"
)

// PostgresRepository stores each binding as one row, so the forward and
// reverse indices cannot diverge: the digest column carries a unique index
// and every mutation is a single statement or transaction.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, username, credential string) error {
	digest := cryptox.CredentialDigest(credential)

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// A credential moving between usernames would violate the unique
		// digest index; clear any row that currently owns this digest.
		_, err := tx.ExecContext(ctx,
			`DELETE FROM bindings WHERE credential_digest = $1 AND username <> $2`,
			digest, username)
		if err != nil {
			return fmt.Errorf("error performing sql request: %v", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO bindings (username, credential, credential_digest)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (username)
			 DO UPDATE SET credential = EXCLUDED.credential,
			               credential_digest = EXCLUDED.credential_digest`,
			username, credential, digest)
		if err != nil {
			return fmt.Errorf("error performing sql request: %v", err)
		}
		return nil
	})
}

func (r *PostgresRepository) GetCredential(ctx context.Context, username string) (string, error) {
	var credential string
	err := r.db.QueryRowContext(ctx,
		`SELECT credential FROM bindings WHERE username = $1`, username).Scan(&credential)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("error performing sql request: %v", err)
	}

	return credential, nil
}

func (r *PostgresRepository) FindUsernameByDigest(ctx context.Context, digest string) (string, error) {
	var username string
	err := r.db.QueryRowContext(ctx,
		`SELECT username FROM bindings WHERE credential_digest = $1`, digest).Scan(&username)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("error performing sql request: %v", err)
	}

	return username, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bindings WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Binding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, credential, credential_digest FROM bindings ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	defer rows.Close()

	var list []Binding
	for rows.Next() {
		var b Binding
		if err := rows.Scan(&b.Username, &b.Credential, &b.Digest); err != nil {
			return nil, fmt.Errorf("error scanning row: %v", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %v", err)
	}

	return list, nil
}
