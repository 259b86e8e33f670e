package audit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

type CreateOrderInput struct {
	URL   string
	Email string
}

// CreateOrder records a new audit order. It starts unpaid and pending; the
// payment webhook is what eventually schedules processing.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (uint64, error) {
	a := Audit{
		URL:    in.URL,
		Email:  in.Email,
		Status: StatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(&a).Error; err != nil {
		return 0, err
	}
	return a.ID, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*Audit, error) {
	var a Audit
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// MarkPaid flips the paid flag. Idempotent: a second webhook delivery for the
// same order is a no-op on an already-paid row.
func (s *Service) MarkPaid(ctx context.Context, id uint64) error {
	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&Audit{}).
		Where("id = ?", id).
		Updates(map[string]any{"paid": true, "paid_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
