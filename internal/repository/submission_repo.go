package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/bmc-canvas-api/internal/models"
)

// NewSubmissionRepository constructs the relational submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(submission).Error
}

func (r *submissionRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("overall_score DESC").
		Order("submitted_at ASC").
		Order("id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) DeleteByID(ctx context.Context, sessionID, id string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND id = ?", sessionID, id).
		Delete(&models.Submission{})
	return result.RowsAffected, result.Error
}

func (r *submissionRepository) DeleteBySubmittedAt(ctx context.Context, sessionID string, at int64) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Submission
		err := tx.Where("session_id = ? AND submitted_at = ?", sessionID, at).
			Order("created_at ASC").
			Order("id ASC").
			First(&target).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		result := tx.Where("id = ?", target.ID).Delete(&models.Submission{})
		removed = result.RowsAffected
		return result.Error
	})
	return removed, err
}

func (r *submissionRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.Submission{})
	return result.RowsAffected, result.Error
}

func (r *submissionRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}
