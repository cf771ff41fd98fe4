// Package store persists a whole-history-rating base in postgres. A saved
// base reloads with bit-identical numeric state: games replay in creation
// order and every per-day natural rating is restored from float8 columns.
package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whr-ladder/server/whr"
)

//go:embed schema.sql
var schema embed.FS

type DB struct{ *pgxpool.Pool }

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// SaveBase snapshots the whole base: config, the registry in registration
// order (players without games included), the ordered game list, and the
// per-day rating state of every player. Replaces any previous snapshot.
func (db *DB) SaveBase(ctx context.Context, base *whr.Base) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	for _, table := range []string{"whr_ratings", "whr_games", "whr_players", "whr_config"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	cfg := base.Config()
	if _, err := tx.Exec(ctx, `
        INSERT INTO whr_config(id, w2, uncased, debug)
        VALUES (1, $1, $2, $3)
    `, cfg.W2, cfg.Uncased, cfg.Debug); err != nil {
		return err
	}

	for seq, p := range base.Players() {
		if _, err := tx.Exec(ctx, `
            INSERT INTO whr_players(seq, name) VALUES ($1,$2)
        `, seq, p.Name); err != nil {
			return err
		}
	}

	for seq, g := range base.Games() {
		if _, err := tx.Exec(ctx, `
            INSERT INTO whr_games(seq, black, white, winner, day, handicap, extras)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
        `, seq, g.Black.Name, g.White.Name, g.Winner, g.Day, g.Handicap, g.Extras); err != nil {
			return err
		}
	}

	for _, p := range base.Players() {
		for _, d := range p.Days() {
			if _, err := tx.Exec(ctx, `
                INSERT INTO whr_ratings(player, day, r, uncertainty)
                VALUES ($1,$2,$3,$4)
            `, p.Name, d.Day, d.R, d.Uncertainty); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

// LoadBase reconstructs a base from the last snapshot: the registry is
// rebuilt first in its original registration order, games replay through
// CreateGame in their original order (rebuilding identical timelines and
// attachments), then each day's rating and uncertainty are overwritten with
// the stored values.
func (db *DB) LoadBase(ctx context.Context) (*whr.Base, error) {
	var cfg whr.Config
	err := db.QueryRow(ctx, `SELECT w2, uncased, debug FROM whr_config WHERE id = 1`).
		Scan(&cfg.W2, &cfg.Uncased, &cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("store: no saved base: %w", err)
	}
	base := whr.NewBase(cfg)

	prows, err := db.Query(ctx, `SELECT name FROM whr_players ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var name string
		if err := prows.Scan(&name); err != nil {
			return nil, err
		}
		base.PlayerByName(name)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, `
        SELECT black, white, winner, day, handicap, extras
          FROM whr_games ORDER BY seq
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var black, white, winner string
		var day int
		var handicap float64
		var extras map[string]any
		if err := rows.Scan(&black, &white, &winner, &day, &handicap, &extras); err != nil {
			return nil, err
		}
		if _, err := base.CreateGame(black, white, winner, day, handicap, extras); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rrows, err := db.Query(ctx, `SELECT player, day, r, uncertainty FROM whr_ratings`)
	if err != nil {
		return nil, err
	}
	defer rrows.Close()
	for rrows.Next() {
		var name string
		var day int
		var r, uncertainty float64
		if err := rrows.Scan(&name, &day, &r, &uncertainty); err != nil {
			return nil, err
		}
		pd := base.PlayerByName(name).Day(day)
		if pd == nil {
			return nil, fmt.Errorf("store: rating for %q day %d has no matching game day", name, day)
		}
		pd.R = r
		pd.Uncertainty = uncertainty
	}
	return base, rrows.Err()
}
