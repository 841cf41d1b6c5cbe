package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SpinRecord is one completed wheel spin with everything needed to replay it.
type SpinRecord struct {
	ID            string          `json:"id"`
	Segments      json.RawMessage `json:"segments"`
	StartRotation float64         `json:"startRotation"`
	Fraction      float64         `json:"fraction"`
	Rotations     int             `json:"rotations"`
	FinalRotation float64         `json:"finalRotation"`
	WinnerID      string          `json:"winnerId"`
	WinnerLabel   string          `json:"winnerLabel"`

	// Set only for seeded spins.
	ServerSeedHash string  `json:"serverSeedHash,omitempty"`
	ClientSeed     string  `json:"clientSeed,omitempty"`
	Nonce          *uint64 `json:"nonce,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// SpinPage is a paginated spin history response.
type SpinPage struct {
	Spins      []SpinRecord `json:"spins"`
	TotalCount int          `json:"totalCount"`
	Page       int          `json:"page"`
	PerPage    int          `json:"perPage"`
	TotalPages int          `json:"totalPages"`
}

const spinColumns = `id, segments_json, start_rotation, fraction, rotations, final_rotation,
	winner_id, winner_label, server_seed_hash, client_seed, nonce, started_at, finished_at`

// InsertSpins stores spins in a single transaction. Records without an ID
// get one.
func (s *Store) InsertSpins(ctx context.Context, spins []SpinRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO spins (`+spinColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range spins {
		sp := &spins[i]
		if sp.ID == "" {
			sp.ID = uuid.NewString()
		}
		var nonce sql.NullInt64
		if sp.Nonce != nil {
			nonce = sql.NullInt64{Int64: int64(*sp.Nonce), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			sp.ID, string(sp.Segments), sp.StartRotation, sp.Fraction, sp.Rotations, sp.FinalRotation,
			sp.WinnerID, sp.WinnerLabel, nullString(sp.ServerSeedHash), nullString(sp.ClientSeed), nonce,
			sp.StartedAt.UTC(), sp.FinishedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("store: insert spin %s: %w", sp.ID, err)
		}
	}
	return tx.Commit()
}

// GetSpin fetches one spin by ID.
func (s *Store) GetSpin(ctx context.Context, id string) (*SpinRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+spinColumns+` FROM spins WHERE id = ?`, id)
	sp, err := scanSpin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: spin %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get spin: %w", err)
	}
	return sp, nil
}

// ListSpins returns spins newest first.
func (s *Store) ListSpins(ctx context.Context, page, perPage int) (*SpinPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	offset := (page - 1) * perPage

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spins`).Scan(&total); err != nil {
		return nil, fmt.Errorf("store: count spins: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+spinColumns+` FROM spins ORDER BY finished_at DESC, id LIMIT ? OFFSET ?`,
		perPage, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list spins: %w", err)
	}
	defer rows.Close()

	spins := []SpinRecord{}
	for rows.Next() {
		sp, err := scanSpin(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan spin: %w", err)
		}
		spins = append(spins, *sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list spins: %w", err)
	}

	totalPages := total / perPage
	if total%perPage > 0 {
		totalPages++
	}
	return &SpinPage{
		Spins:      spins,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// ClearSpins deletes the whole history and reports how many rows went.
func (s *Store) ClearSpins(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM spins`)
	if err != nil {
		return 0, fmt.Errorf("store: clear spins: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSpin(sc scanner) (*SpinRecord, error) {
	var (
		sp    SpinRecord
		segs  string
		hash  sql.NullString
		cseed sql.NullString
		nonce sql.NullInt64
	)
	err := sc.Scan(
		&sp.ID, &segs, &sp.StartRotation, &sp.Fraction, &sp.Rotations, &sp.FinalRotation,
		&sp.WinnerID, &sp.WinnerLabel, &hash, &cseed, &nonce, &sp.StartedAt, &sp.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	sp.Segments = json.RawMessage(segs)
	sp.ServerSeedHash = hash.String
	sp.ClientSeed = cseed.String
	if nonce.Valid {
		n := uint64(nonce.Int64)
		sp.Nonce = &n
	}
	return &sp, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
