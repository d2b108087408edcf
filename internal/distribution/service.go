package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingStore = errors.New("store is required")
	noOpLogger      = zap.NewNop()
)

// Store persists one record as one row.
type Store interface {
	Append(ctx context.Context, record Record) error
}

type ServiceConfig struct {
	Store      Store
	Clock      func() time.Time
	Normalizer *Normalizer
	Logger     *zap.Logger
}

// Service validates candidate records and appends them to the configured store.
type Service struct {
	store      Store
	clock      func() time.Time
	normalizer *Normalizer
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = defaultNormalizer
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:      cfg.Store,
		clock:      clock,
		normalizer: normalizer,
		logger:     logger,
	}, nil
}

// Append validates request, fills defaults and writes exactly one row.
// The returned Record holds the values as persisted.
func (s *Service) Append(ctx context.Context, request AppendRequest) (Record, error) {
	record, err := s.buildRecord(request)
	if err != nil {
		return Record{}, err
	}

	if err := s.store.Append(ctx, record); err != nil {
		if errors.Is(err, ErrConfiguration) {
			s.logError(opAppend, "store_misconfigured", err)
			return Record{}, newServiceError(opAppend, "store_misconfigured", err)
		}
		s.logError(opAppend, "storage_failed", err, zap.String(FieldMealPeriod, record.MealPeriod.String()))
		return Record{}, newServiceError(opAppend, "storage_failed", fmt.Errorf("%w: %w", ErrStorage, err))
	}

	s.logger.Info("distribution record appended",
		zap.String(FieldTimestamp, record.Timestamp),
		zap.String(FieldMealPeriod, record.MealPeriod.String()),
		zap.Int(FieldPatientCount, record.PatientCount),
		zap.Int(FieldPersonCount, record.PersonCount))
	return record, nil
}

func (s *Service) buildRecord(request AppendRequest) (Record, error) {
	var fieldErrors []FieldError
	count := func(field string, value *int) int {
		if value == nil {
			fieldErrors = append(fieldErrors, FieldError{Field: field, Message: "field required", Type: "value_error.missing"})
			return 0
		}
		if *value < 0 {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   field,
				Message: "ensure this value is greater than or equal to 0",
				Type:    "value_error.number.not_ge",
			})
			return 0
		}
		return *value
	}

	record := Record{
		Timestamp:                   request.Timestamp,
		PatientCount:                count(FieldPatientCount, request.PatientCount),
		DistributionDurationMinutes: count(FieldDistributionDurationMinutes, request.DistributionDurationMinutes),
		PersonCount:                 count(FieldPersonCount, request.PersonCount),
		FreeNotes:                   request.FreeNotes,
		SourceMessage:               request.SourceMessage,
	}

	mealPeriod, err := s.normalizer.Normalize(request.MealPeriod)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			fieldErrors = append(fieldErrors, validationErr.Fields...)
		} else {
			return Record{}, err
		}
	}
	record.MealPeriod = mealPeriod

	if len(fieldErrors) > 0 {
		return Record{}, NewValidationError(fieldErrors...)
	}

	if record.Timestamp == "" {
		record.Timestamp = s.clock().Format(TimestampLayout)
	}
	return record, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("distribution service error", attrs...)
}
