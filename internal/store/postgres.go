package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediascribe-backend/internal/domain"
)

// PostgresStore implements Store using a PostgreSQL database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database using the provided connection string.
func NewPostgresStore(ctx context.Context, conn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(conn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const sessionColumns = `id, owner_id, filename, content_type, total_size, total_chunks,
       chunk_sizes, received_chunks, received_bytes, created_at`

func scanSession(row pgx.Row) (*domain.UploadSession, error) {
	var sess domain.UploadSession
	err := row.Scan(
		&sess.ID,
		&sess.Owner,
		&sess.Filename,
		&sess.ContentType,
		&sess.TotalSize,
		&sess.TotalChunks,
		&sess.ChunkSizes,
		&sess.ReceivedChunks,
		&sess.ReceivedBytes,
		&sess.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *domain.UploadSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO upload_sessions (
			id, owner_id, filename, content_type, total_size, total_chunks,
			chunk_sizes, received_chunks, received_bytes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		sess.ID, sess.Owner, sess.Filename, sess.ContentType, sess.TotalSize,
		sess.TotalChunks, sess.ChunkSizes, sess.ReceivedChunks, sess.ReceivedBytes,
		sess.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM upload_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// UpdateSession applies fn inside a transaction holding a row lock, so the
// mutation is exclusive with respect to every other session update.
func (s *PostgresStore) UpdateSession(ctx context.Context, id uuid.UUID, fn func(*domain.UploadSession) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM upload_sessions WHERE id = $1 FOR UPDATE`, id)
	sess, err := scanSession(row)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE upload_sessions
		SET chunk_sizes=$2, received_chunks=$3, received_bytes=$4
		WHERE id=$1
	`, id, sess.ChunkSizes, sess.ReceivedChunks, sess.ReceivedBytes); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	res, err := s.pool.Exec(ctx, `DELETE FROM upload_sessions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) ExpiredSessions(ctx context.Context, olderThan time.Time) ([]domain.UploadSession, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM upload_sessions WHERE created_at < $1`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.UploadSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

const fileColumns = `id, owner_id, filename, content_type, size_bytes, chunk_sizes,
       title, visibility, created_at, deleted_at`

func scanFile(row pgx.Row) (*domain.FileRecord, error) {
	var f domain.FileRecord
	var visibility string
	err := row.Scan(
		&f.ID,
		&f.Owner,
		&f.Filename,
		&f.ContentType,
		&f.Size,
		&f.ChunkSizes,
		&f.Title,
		&visibility,
		&f.CreatedAt,
		&f.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Visibility = domain.Visibility(visibility)
	return &f, nil
}

func (s *PostgresStore) CreateFile(ctx context.Context, f *domain.FileRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (
			id, owner_id, filename, content_type, size_bytes, chunk_sizes,
			title, visibility, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		f.ID, f.Owner, f.Filename, f.ContentType, f.Size, f.ChunkSizes,
		f.Title, string(f.Visibility), f.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetFile(ctx context.Context, id uuid.UUID) (*domain.FileRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	return scanFile(row)
}

func (s *PostgresStore) UpdateFile(ctx context.Context, id uuid.UUID, fn func(*domain.FileRecord) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1 FOR UPDATE`, id)
	f, err := scanFile(row)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE files SET title=$2, visibility=$3, deleted_at=$4 WHERE id=$1
	`, id, f.Title, string(f.Visibility), f.DeletedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListFiles(ctx context.Context) ([]domain.FileRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+fileColumns+` FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []domain.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func (s *PostgresStore) SaveTranscription(ctx context.Context, t *domain.Transcription) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO transcriptions (file_id, text, language, segments, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (file_id) DO UPDATE SET
			text = EXCLUDED.text,
			language = EXCLUDED.language,
			segments = EXCLUDED.segments,
			created_at = EXCLUDED.created_at
	`, t.FileID, t.Text, t.Language, segments, t.CreatedAt)
	return err
}

func (s *PostgresStore) GetTranscription(ctx context.Context, fileID uuid.UUID) (*domain.Transcription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT file_id, text, language, segments, created_at
		FROM transcriptions WHERE file_id = $1
	`, fileID)

	var t domain.Transcription
	var segments []byte
	err := row.Scan(&t.FileID, &t.Text, &t.Language, &segments, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTranscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &t.Segments); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (s *PostgresStore) DeleteTranscription(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM transcriptions WHERE file_id=$1`, fileID)
	return err
}

func (s *PostgresStore) SaveSummary(ctx context.Context, sum *domain.Summary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO summaries (file_id, title, text, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (file_id) DO UPDATE SET
			title = EXCLUDED.title,
			text = EXCLUDED.text,
			created_at = EXCLUDED.created_at
	`, sum.FileID, sum.Title, sum.Text, sum.CreatedAt)
	return err
}

func (s *PostgresStore) GetSummary(ctx context.Context, fileID uuid.UUID) (*domain.Summary, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT file_id, title, text, created_at FROM summaries WHERE file_id = $1
	`, fileID)

	var sum domain.Summary
	err := row.Scan(&sum.FileID, &sum.Title, &sum.Text, &sum.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *PostgresStore) DeleteSummary(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM summaries WHERE file_id=$1`, fileID)
	return err
}

const jobColumns = `id, file_id, kind, state, result, error, created_at, updated_at`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	var kind, state string
	err := row.Scan(&j.ID, &j.FileID, &kind, &state, &j.Result, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Kind = domain.JobKind(kind)
	j.State = domain.JobState(state)
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, j *domain.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, file_id, kind, state, result, error, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, j.ID, j.FileID, string(j.Kind), string(j.State), j.Result, j.Error, j.CreatedAt, j.UpdatedAt)
	return err
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, jobID string, fn func(*domain.Job) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	j, err := scanJob(row)
	if err != nil {
		return err
	}
	if err := fn(j); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE jobs SET state=$2, result=$3, error=$4, updated_at=$5 WHERE id=$1
	`, jobID, string(j.State), j.Result, j.Error, j.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteJobsForFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE file_id=$1`, fileID)
	return err
}

func (s *PostgresStore) ToggleBookmark(ctx context.Context, owner, fileID uuid.UUID) (bool, error) {
	res, err := s.pool.Exec(ctx, `
		DELETE FROM bookmarks WHERE owner_id=$1 AND file_id=$2
	`, owner, fileID)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() > 0 {
		return false, nil
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO bookmarks (owner_id, file_id) VALUES ($1,$2)
		ON CONFLICT (owner_id, file_id) DO NOTHING
	`, owner, fileID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) ListBookmarks(ctx context.Context, owner uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT file_id FROM bookmarks WHERE owner_id=$1`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) DeleteBookmarksForFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM bookmarks WHERE file_id=$1`, fileID)
	return err
}
