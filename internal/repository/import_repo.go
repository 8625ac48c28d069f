package repository

import (
	"context"
	"database/sql"

	"github.com/shopledger/payoutrecon/internal/domain"
)

type ImportRepo struct {
	db *sql.DB
}

func NewImportRepo(db *sql.DB) *ImportRepo {
	return &ImportRepo{db: db}
}

// ExistsByHash checks whether a file with the given hash has already been
// ingested (idempotency check).
func (r *ImportRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM import_batches WHERE file_hash = ?", hash,
	).Scan(&count)
	return count > 0, err
}

func (r *ImportRepo) Insert(ctx context.Context, b *domain.ImportBatch) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO import_batches
		(id, kind, format, file_hash, record_count, skipped_count, ingested_at)
		VALUES (?,?,?,?,?,?,?)`,
		b.ID, b.Kind, b.Format, b.FileHash, b.RecordCount, b.SkippedCount, formatTime(b.IngestedAt),
	)
	return err
}
