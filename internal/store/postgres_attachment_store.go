package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/lib/pq"
)

const attachmentSchemaSQL = `
CREATE TABLE IF NOT EXISTS attachments (
	id BIGINT PRIMARY KEY,
	attached_file TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	metadata JSONB,
	updated_at TIMESTAMPTZ NOT NULL
);
`

type PostgresAttachmentStore struct {
	db *sql.DB
}

func NewPostgresAttachmentStore(ctx context.Context, dsn string) (*PostgresAttachmentStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresAttachmentStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresAttachmentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, attachmentSchemaSQL); err != nil {
		return fmt.Errorf("ensure attachments schema: %w", err)
	}
	return nil
}

func (s *PostgresAttachmentStore) Close() error {
	return s.db.Close()
}

func (s *PostgresAttachmentStore) Upsert(ctx context.Context, att domain.Attachment) error {
	metadataJSON, err := marshalMetadata(att.Metadata)
	if err != nil {
		return err
	}

	updatedAt := att.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO attachments (id, attached_file, mime_type, title, metadata, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET attached_file = EXCLUDED.attached_file,
		     mime_type = EXCLUDED.mime_type,
		     title = EXCLUDED.title,
		     metadata = EXCLUDED.metadata,
		     updated_at = EXCLUDED.updated_at`,
		att.ID,
		att.AttachedFile,
		att.MimeType,
		att.Title,
		metadataJSON,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert attachment %d: %w", att.ID, err)
	}

	return nil
}

func (s *PostgresAttachmentStore) Get(ctx context.Context, id int64) (domain.Attachment, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, attached_file, mime_type, title, metadata, updated_at
		 FROM attachments
		 WHERE id = $1`,
		id,
	)

	att, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Attachment{}, false, nil
		}
		return domain.Attachment{}, false, fmt.Errorf("query attachment %d: %w", id, err)
	}
	return att, true, nil
}

func (s *PostgresAttachmentStore) List(ctx context.Context, ids []int64) ([]domain.Attachment, error) {
	if len(ids) == 0 {
		return []domain.Attachment{}, nil
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, attached_file, mime_type, title, metadata, updated_at
		 FROM attachments
		 WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]domain.Attachment, len(ids))
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		byID[att.ID] = att
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}

	out := make([]domain.Attachment, 0, len(byID))
	for _, id := range ids {
		if att, ok := byID[id]; ok {
			out = append(out, att)
		}
	}
	return out, nil
}

func (s *PostgresAttachmentStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attachment %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attachment %d: %w", id, err)
	}
	if affected == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (domain.Attachment, error) {
	var (
		att          domain.Attachment
		metadataJSON []byte
	)
	if err := row.Scan(
		&att.ID,
		&att.AttachedFile,
		&att.MimeType,
		&att.Title,
		&metadataJSON,
		&att.UpdatedAt,
	); err != nil {
		return domain.Attachment{}, err
	}

	if len(metadataJSON) > 0 {
		var meta domain.ImageMetadata
		if err := json.Unmarshal(metadataJSON, &meta); err != nil {
			return domain.Attachment{}, fmt.Errorf("unmarshal attachment %d metadata: %w", att.ID, err)
		}
		att.Metadata = &meta
	}
	return att, nil
}

// marshalMetadata returns the JSONB parameter for meta, or an untyped nil
// so the column is written as NULL.
func marshalMetadata(meta *domain.ImageMetadata) (any, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal attachment metadata: %w", err)
	}
	return string(data), nil
}
