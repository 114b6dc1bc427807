package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/typerank/internal/server/bindings"
	"github.com/dmitrijs2005/typerank/internal/server/migrations"
	"github.com/dmitrijs2005/typerank/internal/server/profiles"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
	db       *sql.DB
	bindings bindings.Repository
	profiles profiles.Repository
}

func (m *PostgresRepositoryManager) Bindings() bindings.Repository {
	return m.bindings
}

func (m *PostgresRepositoryManager) Profiles() profiles.Repository {
	return m.profiles
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}

	return nil
}

func NewPostgresRepositoryManager(dsn string) (*PostgresRepositoryManager, error) {

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	b, err := bindings.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("bindings repo creation error: %w", err)
	}

	p, err := profiles.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("profiles repo creation error: %w", err)
	}

	return &PostgresRepositoryManager{
		db:       db,
		bindings: b,
		profiles: p,
	}, nil
}
