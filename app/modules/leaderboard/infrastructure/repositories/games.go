package leaderboarddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new leaderboard repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) GetGames(ctx context.Context, db bun.IDB) (map[string]*Game, error) {
	db = r.resolveDB(db)
	var games []*Game
	if err := db.NewSelect().Model(&games).Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboarddb.GetGames: %w", err)
	}
	out := make(map[string]*Game, len(games))
	for _, g := range games {
		out[g.ID] = g
	}
	return out, nil
}

func (r *Impl) FindGame(ctx context.Context, db bun.IDB, ref string) (*Game, error) {
	db = r.resolveDB(db)
	game := new(Game)
	err := db.NewSelect().
		Model(game).
		WhereOr("g.id = ?", ref).
		WhereOr("lower(g.slug) = lower(?)", ref).
		OrderExpr("g.id = ? DESC", ref).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("leaderboarddb.FindGame: %w", err)
	}
	return game, nil
}

func (r *Impl) UpsertGame(ctx context.Context, db bun.IDB, game *Game) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(game).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("slug = EXCLUDED.slug").
		Set("defaulttime = EXCLUDED.defaulttime").
		Set("idefaulttime = EXCLUDED.idefaulttime").
		Set("is_ce = EXCLUDED.is_ce").
		Set("pointsmax = EXCLUDED.pointsmax").
		Set("ipointsmax = EXCLUDED.ipointsmax").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.UpsertGame: %w", err)
	}
	return nil
}

func (r *Impl) UpsertPlayers(ctx context.Context, db bun.IDB, players []Player) error {
	if len(players) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(&players).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.UpsertPlayers: %w", err)
	}
	return nil
}

func (r *Impl) GetPlayerNames(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(playerIDs))
	if len(playerIDs) == 0 {
		return out, nil
	}
	db = r.resolveDB(db)
	var players []Player
	err := db.NewSelect().
		Model(&players).
		Where("p.id IN (?)", bun.In(playerIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.GetPlayerNames: %w", err)
	}
	for _, p := range players {
		out[p.ID] = p.Name
	}
	return out, nil
}
