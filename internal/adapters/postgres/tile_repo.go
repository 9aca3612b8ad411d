package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// TileRepo implements ports.TileIndexRepository and ports.TileIndexWriter
// on a PostGIS table.
type TileRepo struct {
	db *DB
}

// NewTileRepo creates a new TileRepo.
func NewTileRepo(db *DB) *TileRepo {
	return &TileRepo{db: db}
}

// CRS returns the SRID recorded when the index was last replaced.
func (r *TileRepo) CRS(ctx context.Context) (domain.CRS, error) {
	var epsg int
	err := r.db.Pool.QueryRow(ctx, `SELECT epsg FROM tile_index_meta WHERE id`).Scan(&epsg)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CRS{}, fmt.Errorf("tile index has not been loaded: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.CRS{}, err
	}
	return domain.EPSG(epsg), nil
}

// Load returns index rows, optionally limited to those intersecting within.
func (r *TileRepo) Load(ctx context.Context, within *orb.Bound) (*domain.TileIndex, error) {
	crs, err := r.CRS(ctx)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if within == nil {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT tile_name, workunit, ST_AsText(geom)
			FROM tile_index ORDER BY id
		`)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT tile_name, workunit, ST_AsText(geom)
			FROM tile_index
			WHERE ST_Intersects(geom, ST_MakeEnvelope($1, $2, $3, $4, $5))
			ORDER BY id
		`, within.Min[0], within.Min[1], within.Max[0], within.Max[1], crs.EPSG)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := &domain.TileIndex{CRS: crs}
	for rows.Next() {
		var rec domain.TileRecord
		var text string
		if err := rows.Scan(&rec.TileName, &rec.Workunit, &text); err != nil {
			return nil, err
		}
		g, err := wkt.Unmarshal(text)
		if err != nil {
			return nil, fmt.Errorf("tile %s geometry: %w", rec.TileName, err)
		}
		rec.Geometry = g
		index.Records = append(index.Records, rec)
	}
	return index, rows.Err()
}

// ReplaceAll swaps the stored index for a new one in a single transaction.
func (r *TileRepo) ReplaceAll(ctx context.Context, index *domain.TileIndex) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE tile_index RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO tile_index_meta (id, epsg, loaded_at) VALUES (TRUE, $1, now())
		ON CONFLICT (id) DO UPDATE SET epsg = EXCLUDED.epsg, loaded_at = EXCLUDED.loaded_at
	`, index.CRS.EPSG); err != nil {
		return fmt.Errorf("meta: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range index.Records {
		if err := rec.Validate(); err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO tile_index (tile_name, workunit, geom)
			VALUES ($1, $2, ST_GeomFromText($3, $4))
		`, rec.TileName, rec.Workunit, wkt.MarshalString(rec.Geometry), index.CRS.EPSG)
	}
	br := tx.SendBatch(ctx, batch)
	for range index.Records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
