package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
)

const transcriptSelect = `SELECT v.id, tr.status, tr.language, tr.plain_text, tr.fetched_at, ` + timestampsAggregate + ` AS chapters
	FROM transcripts tr JOIN videos v ON v.id = tr.video_id
	WHERE tr.video_id = $1`

// transcriptRepository implements TranscriptRepository using PostgreSQL
type transcriptRepository struct {
	pool Pool
}

// NewTranscriptRepository creates a new instance of TranscriptRepository
func NewTranscriptRepository(pool Pool) TranscriptRepository {
	return &transcriptRepository{
		pool: pool,
	}
}

func scanTranscript(row pgx.Row) (*model.Transcript, error) {
	var transcript model.Transcript
	err := row.Scan(
		&transcript.VideoID,
		&transcript.Status,
		&transcript.Language,
		&transcript.PlainText,
		&transcript.FetchedAt,
		&transcript.Chapters,
	)
	if err != nil {
		return nil, err
	}
	return &transcript, nil
}

// Get retrieves the cached transcript of a video
func (r *transcriptRepository) Get(ctx context.Context, videoID string) (*model.Transcript, error) {
	transcript, err := scanTranscript(r.pool.QueryRow(ctx, transcriptSelect, videoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "no cached transcript for video "+videoID)
		}
		return nil, handlePostgreSQLError(err, "failed to get transcript")
	}
	return transcript, nil
}

// lockVideo takes the row lock of the parent video, which serializes chapter
// writes against video upserts of the same ID
func lockVideo(ctx context.Context, tx pgx.Tx, videoID string) error {
	var id string
	err := tx.QueryRow(ctx, "SELECT id FROM videos WHERE id = $1 FOR UPDATE", videoID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.Wrap(err, apperrors.CodeDependency, "video must be stored before its transcript: "+videoID)
		}
		return handlePostgreSQLError(err, "failed to lock video")
	}
	return nil
}

func validateTranscript(transcript *model.Transcript) error {
	if transcript == nil || transcript.VideoID == "" {
		return apperrors.New(apperrors.CodeInvalidArg, "transcript video ID is required")
	}
	if transcript.Status != model.TranscriptAvailable && transcript.Status != model.TranscriptNotFound {
		return apperrors.New(apperrors.CodeInvalidArg, "invalid transcript status: "+string(transcript.Status))
	}
	return nil
}

func upsertTranscript(ctx context.Context, tx pgx.Tx, transcript *model.Transcript) error {
	sql := `INSERT INTO transcripts (video_id, status, language, plain_text, fetched_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (video_id) DO UPDATE SET
			status = EXCLUDED.status,
			language = EXCLUDED.language,
			plain_text = EXCLUDED.plain_text,
			fetched_at = NOW()`
	_, err := tx.Exec(ctx, sql,
		transcript.VideoID,
		string(transcript.Status),
		transcript.Language,
		transcript.PlainText,
	)
	if err != nil {
		return handlePostgreSQLError(err, "failed to save transcript")
	}
	return nil
}

// Save upserts the transcript row and its chapters
func (r *transcriptRepository) Save(ctx context.Context, transcript *model.Transcript) (*model.Transcript, error) {
	if err := validateTranscript(transcript); err != nil {
		return nil, err
	}

	var stored *model.Transcript
	err := inTx(ctx, r.pool, "failed to save transcript", func(tx pgx.Tx) error {
		if err := lockVideo(ctx, tx, transcript.VideoID); err != nil {
			return err
		}
		if err := upsertTranscript(ctx, tx, transcript); err != nil {
			return err
		}

		if transcript.Status == model.TranscriptAvailable && transcript.Chapters != nil {
			if err := replaceTimestamps(ctx, tx, transcript.VideoID, transcript.Chapters, false); err != nil {
				return err
			}
		}

		var err error
		stored, err = scanTranscript(tx.QueryRow(ctx, transcriptSelect, transcript.VideoID))
		if err != nil {
			return handlePostgreSQLError(err, "failed to read back transcript")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Annotate upserts the transcript row and sets the text of the stored chapters
// that match an entry of transcript.Chapters by start and title. The chapter
// sequence itself is left as stored.
func (r *transcriptRepository) Annotate(ctx context.Context, transcript *model.Transcript) (*model.Transcript, error) {
	if err := validateTranscript(transcript); err != nil {
		return nil, err
	}

	starts := make([]float64, 0, len(transcript.Chapters))
	titles := make([]string, 0, len(transcript.Chapters))
	texts := make([]*string, 0, len(transcript.Chapters))
	for _, ch := range transcript.Chapters {
		starts = append(starts, ch.StartSeconds)
		titles = append(titles, ch.Title)
		texts = append(texts, ch.Text)
	}

	var stored *model.Transcript
	err := inTx(ctx, r.pool, "failed to annotate transcript", func(tx pgx.Tx) error {
		if err := lockVideo(ctx, tx, transcript.VideoID); err != nil {
			return err
		}
		if err := upsertTranscript(ctx, tx, transcript); err != nil {
			return err
		}

		if transcript.Status == model.TranscriptAvailable && len(starts) > 0 {
			sql := `UPDATE timestamps s SET text = u.text
				FROM unnest($2::float8[], $3::text[], $4::text[]) AS u(start_seconds, title, text)
				WHERE s.video_id = $1 AND s.start_seconds = u.start_seconds AND s.title = u.title`
			if _, err := tx.Exec(ctx, sql, transcript.VideoID, starts, titles, texts); err != nil {
				return handlePostgreSQLError(err, "failed to annotate video timestamps")
			}
		}

		var err error
		stored, err = scanTranscript(tx.QueryRow(ctx, transcriptSelect, transcript.VideoID))
		if err != nil {
			return handlePostgreSQLError(err, "failed to read back transcript")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}
