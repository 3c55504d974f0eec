// internal/database/lobby.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Store implements the session persistence gateway on postgres. Sessions
// call it best-effort; every method is safe to retry and safe to lose.
type Store struct{}

// NewStore returns the postgres-backed persistence gateway.
func NewStore() *Store { return &Store{} }

// AssignLobby records that a player is in a lobby, creating the lobby row on
// first join.
func (Store) AssignLobby(ctx context.Context, username, lobbyID string) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO lobbies (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			lobbyID,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE users SET ingame=$1 WHERE username=$2`,
			lobbyID, username,
		)
		return err
	})
}

// ClearLobby marks the player as being in no lobby.
func (Store) ClearLobby(ctx context.Context, username string) error {
	_, err := DB.Exec(ctx, `UPDATE users SET ingame=NULL WHERE username=$1`, username)
	return err
}

// DeleteLobby removes the lobby row and releases anyone still associated
// with it.
func (Store) DeleteLobby(ctx context.Context, lobbyID string) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET ingame=NULL WHERE ingame=$1`, lobbyID,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE name=$1`, lobbyID)
		return err
	})
}

// IncrementWins credits one win to each listed username.
func (Store) IncrementWins(ctx context.Context, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE users SET wins = wins + 1 WHERE username = ANY($1)`,
			usernames,
		)
		return err
	})
}
