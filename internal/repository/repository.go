package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool interface for abstracting pgx connection pool
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// Store groups the repositories sharing one pool
type Store struct {
	Channels    ChannelRepository
	Videos      VideoRepository
	Playlists   PlaylistRepository
	Transcripts TranscriptRepository
}

// NewStore creates all repositories on the given pool
func NewStore(pool Pool) *Store {
	return &Store{
		Channels:    NewChannelRepository(pool),
		Videos:      NewVideoRepository(pool),
		Playlists:   NewPlaylistRepository(pool),
		Transcripts: NewTranscriptRepository(pool),
	}
}

// inTx runs fn inside a transaction. The transaction is rolled back when fn
// or the commit fails; the returned error is the one from fn.
func inTx(ctx context.Context, pool Pool, operation string, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return handlePostgreSQLError(err, operation)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return handlePostgreSQLError(err, operation)
	}
	return nil
}

// readSnapshot is the isolation of multi-statement reads
var readSnapshot = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

// inReadTx runs fn inside a read-only REPEATABLE READ transaction, so every
// statement of fn sees the same snapshot.
func inReadTx(ctx context.Context, pool Pool, operation string, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, readSnapshot)
	if err != nil {
		return handlePostgreSQLError(err, operation)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return handlePostgreSQLError(err, operation)
	}
	return nil
}

// jsonbParam turns a nil map into an untyped nil so pgx sends SQL NULL instead of 'null'
func jsonbParam(m map[string]int64) any {
	if m == nil {
		return nil
	}
	return m
}

// limitParam turns a non-positive limit into NULL, which PostgreSQL treats as no limit
func limitParam(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
