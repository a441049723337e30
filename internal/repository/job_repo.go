package repository

import (
	"context"
	"time"

	"github.com/timmy/jobalerts/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var jobIdentityColumns = []clause.Column{{Name: "title"}, {Name: "location"}, {Name: "url"}}

// JobRepository persists scraped postings keyed by (title, location, url).
type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// InsertBatch inserts every job whose identity triple is not stored yet.
// Existing triples are skipped without touching first_seen_at.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - raws: normalized jobs; every entry must have a title and URL.
//
// Returns:
//   - []domain.Job: only the rows created by this call, with IDs assigned.
//   - error: *domain.ValidationError for malformed input, *domain.StorageError
//     if a write fails (rows inserted before the failure remain).
func (r *JobRepository) InsertBatch(ctx context.Context, raws []domain.RawJob) ([]domain.Job, error) {
	for _, raw := range raws {
		if err := raw.Validate(); err != nil {
			return nil, err
		}
	}

	seenAt := r.now()
	inserted := make([]domain.Job, 0, len(raws))
	for _, raw := range raws {
		job := raw.ToJob(seenAt)
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: jobIdentityColumns, DoNothing: true}).
			Create(&job)
		if res.Error != nil {
			return nil, storageErr("insert job", res.Error)
		}
		if res.RowsAffected == 1 && job.ID != 0 {
			inserted = append(inserted, job)
		}
	}
	return inserted, nil
}

// ListAll returns stored jobs newest first; limit <= 0 returns every row.
func (r *JobRepository) ListAll(ctx context.Context, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	q := r.db.WithContext(ctx).Order("first_seen_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, storageErr("list jobs", err)
	}
	return jobs, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id uint) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, storageErr("get job", err)
	}
	return &job, nil
}

// Count returns the number of stored jobs.
func (r *JobRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Job{}).Count(&n).Error; err != nil {
		return 0, storageErr("count jobs", err)
	}
	return n, nil
}

// CountLocations returns the number of distinct job locations seen.
func (r *JobRepository) CountLocations(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Job{}).Distinct("location").Count(&n).Error; err != nil {
		return 0, storageErr("count locations", err)
	}
	return n, nil
}

// Reset deletes every job together with the ledger rows pointing at them.
// Returns the number of jobs removed.
func (r *JobRepository) Reset(ctx context.Context) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Delivery{}).Error; err != nil {
			return err
		}
		res := tx.Where("1 = 1").Delete(&domain.Job{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, storageErr("reset jobs", err)
	}
	return removed, nil
}
