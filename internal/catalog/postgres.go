package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the catalog tables read by PostgresProvider.
const Schema = `
CREATE TABLE IF NOT EXISTS pipe_criteria (
	key        TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	is_benefit BOOLEAN NOT NULL,
	position   INT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS pipe_materials (
	name             TEXT PRIMARY KEY,
	network_types    TEXT[] NOT NULL DEFAULT '{}',
	pressure_ratings TEXT[] NOT NULL DEFAULT '{}',
	attributes       JSONB NOT NULL DEFAULT '{}',
	position         INT NOT NULL DEFAULT 0
);`

// PostgresProvider reads the catalog from Postgres.
type PostgresProvider struct {
	pool *pgxpool.Pool
}

func NewPostgresProvider(ctx context.Context, databaseURL string) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresProvider{pool: pool}, nil
}

func (p *PostgresProvider) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresProvider) Criteria(ctx context.Context) ([]Criterion, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT key, label, is_benefit
		FROM pipe_criteria ORDER BY position, key`)
	if err != nil {
		return nil, fmt.Errorf("query criteria: %w", err)
	}
	defer rows.Close()

	var out []Criterion
	for rows.Next() {
		var c Criterion
		if err := rows.Scan(&c.Key, &c.Label, &c.IsBenefit); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresProvider) Materials(ctx context.Context) ([]Material, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT name, network_types, pressure_ratings, attributes
		FROM pipe_materials ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		var m Material
		var attrsJSON []byte
		if err := rows.Scan(&m.Name, &m.NetworkTypes, &m.PressureRatings, &attrsJSON); err != nil {
			return nil, err
		}
		if attrsJSON != nil {
			if err := json.Unmarshal(attrsJSON, &m.Attributes); err != nil {
				return nil, fmt.Errorf("decode attributes for %s: %w", m.Name, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Verify reads the stored catalog and checks it with Validate. Call it once after
// connecting: rows edited by hand must not reach the engine with missing attributes.
func (p *PostgresProvider) Verify(ctx context.Context) error {
	criteria, err := p.Criteria(ctx)
	if err != nil {
		return err
	}
	materials, err := p.Materials(ctx)
	if err != nil {
		return err
	}
	if err := Validate(materials, criteria); err != nil {
		return fmt.Errorf("stored catalog: %w", err)
	}
	return nil
}

// Seed creates the schema and replaces the stored catalog with the given one in a
// single transaction: rows are upserted and rows absent from the input are deleted.
// Catalog order is kept through the position column.
func (p *PostgresProvider) Seed(ctx context.Context, materials []Material, criteria []Criterion) error {
	if err := Validate(materials, criteria); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, Schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		for i, c := range criteria {
			_, err := tx.Exec(ctx, `
				INSERT INTO pipe_criteria (key, label, is_benefit, position)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (key) DO UPDATE
				SET label = EXCLUDED.label, is_benefit = EXCLUDED.is_benefit, position = EXCLUDED.position`,
				c.Key, c.Label, c.IsBenefit, i)
			if err != nil {
				return fmt.Errorf("upsert criterion %s: %w", c.Key, err)
			}
		}
		for i, m := range materials {
			attrsJSON, err := json.Marshal(m.Attributes)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO pipe_materials (name, network_types, pressure_ratings, attributes, position)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (name) DO UPDATE
				SET network_types = EXCLUDED.network_types, pressure_ratings = EXCLUDED.pressure_ratings,
					attributes = EXCLUDED.attributes, position = EXCLUDED.position`,
				m.Name, m.NetworkTypes, m.PressureRatings, attrsJSON, i)
			if err != nil {
				return fmt.Errorf("upsert material %s: %w", m.Name, err)
			}
		}
		return prune(ctx, tx, materials, criteria)
	})
}

func prune(ctx context.Context, tx pgx.Tx, materials []Material, criteria []Criterion) error {
	names := make([]string, len(materials))
	for i, m := range materials {
		names[i] = m.Name
	}
	keys := make([]string, len(criteria))
	for i, c := range criteria {
		keys[i] = c.Key
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pipe_materials WHERE NOT (name = ANY($1))`, names); err != nil {
		return fmt.Errorf("prune materials: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pipe_criteria WHERE NOT (key = ANY($1))`, keys); err != nil {
		return fmt.Errorf("prune criteria: %w", err)
	}
	return nil
}
