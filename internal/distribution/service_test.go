package distribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingStore struct {
	records []Record
	err     error
}

func (s *recordingStore) Append(_ context.Context, record Record) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func intPtr(value int) *int {
	return &value
}

func newTestService(t *testing.T, store Store, clock func() time.Time) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Store: store, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	if err == nil {
		t.Fatalf("expected error for missing store")
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "distribution.service.new.missing_store" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAppendPassesExplicitValuesThrough(t *testing.T) {
	store := &recordingStore{}
	service := newTestService(t, store, nil)

	record, err := service.Append(context.Background(), AppendRequest{
		Timestamp:                   "2024-01-01 08:00:00",
		PatientCount:                intPtr(5),
		DistributionDurationMinutes: intPtr(15),
		MealPeriod:                  "pdj",
		PersonCount:                 intPtr(3),
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	want := Record{
		Timestamp:                   "2024-01-01 08:00:00",
		PatientCount:                5,
		DistributionDurationMinutes: 15,
		MealPeriod:                  MealPeriodBreakfast,
		PersonCount:                 3,
	}
	if record != want {
		t.Fatalf("unexpected record: %+v", record)
	}
	if len(store.records) != 1 || store.records[0] != want {
		t.Fatalf("expected exactly one stored row %+v, got %+v", want, store.records)
	}
}

func TestAppendDefaultsTimestampFromClock(t *testing.T) {
	store := &recordingStore{}
	fixed := time.Date(2025, 3, 9, 19, 45, 7, 0, time.Local)
	service := newTestService(t, store, func() time.Time { return fixed })

	record, err := service.Append(context.Background(), AppendRequest{
		PatientCount:                intPtr(1),
		DistributionDurationMinutes: intPtr(0),
		MealPeriod:                  "Souper",
		PersonCount:                 intPtr(0),
		FreeNotes:                   "rien à signaler",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if record.Timestamp != "2025-03-09 19:45:07" {
		t.Fatalf("unexpected default timestamp %q", record.Timestamp)
	}
	if record.MealPeriod != MealPeriodEvening {
		t.Fatalf("unexpected meal period %q", record.MealPeriod)
	}
	if record.FreeNotes != "rien à signaler" || record.SourceMessage != "" {
		t.Fatalf("unexpected optional fields: %+v", record)
	}
}

func TestAppendDefaultTimestampTracksWallClock(t *testing.T) {
	store := &recordingStore{}
	service := newTestService(t, store, nil)

	before := time.Now().Add(-time.Second)
	record, err := service.Append(context.Background(), AppendRequest{
		PatientCount:                intPtr(2),
		DistributionDurationMinutes: intPtr(10),
		MealPeriod:                  "lunch",
		PersonCount:                 intPtr(2),
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	parsed, err := time.ParseInLocation(TimestampLayout, record.Timestamp, time.Local)
	if err != nil {
		t.Fatalf("timestamp %q not parseable: %v", record.Timestamp, err)
	}
	if parsed.Before(before.Truncate(time.Second)) || parsed.After(time.Now().Add(5*time.Second)) {
		t.Fatalf("timestamp %s not within a few seconds of request time", parsed)
	}
}

func TestAppendRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name       string
		request    AppendRequest
		wantFields []string
	}{
		{
			name: "negative patient count",
			request: AppendRequest{
				PatientCount: intPtr(-1), DistributionDurationMinutes: intPtr(1), MealPeriod: "midi", PersonCount: intPtr(1),
			},
			wantFields: []string{FieldPatientCount},
		},
		{
			name: "negative duration",
			request: AppendRequest{
				PatientCount: intPtr(1), DistributionDurationMinutes: intPtr(-5), MealPeriod: "midi", PersonCount: intPtr(1),
			},
			wantFields: []string{FieldDistributionDurationMinutes},
		},
		{
			name: "negative person count",
			request: AppendRequest{
				PatientCount: intPtr(1), DistributionDurationMinutes: intPtr(1), MealPeriod: "midi", PersonCount: intPtr(-2),
			},
			wantFields: []string{FieldPersonCount},
		},
		{
			name: "unknown meal period",
			request: AppendRequest{
				PatientCount: intPtr(1), DistributionDurationMinutes: intPtr(1), MealPeriod: "goûter", PersonCount: intPtr(1),
			},
			wantFields: []string{FieldMealPeriod},
		},
		{
			name:       "everything missing",
			request:    AppendRequest{},
			wantFields: []string{FieldPatientCount, FieldDistributionDurationMinutes, FieldMealPeriod, FieldPersonCount},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStore{}
			service := newTestService(t, store, nil)

			_, err := service.Append(context.Background(), tt.request)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if len(validationErr.Fields) != len(tt.wantFields) {
				t.Fatalf("unexpected field errors: %+v", validationErr.Fields)
			}
			for index, field := range tt.wantFields {
				if validationErr.Fields[index].Field != field {
					t.Fatalf("field error %d = %q, want %q", index, validationErr.Fields[index].Field, field)
				}
			}
			if len(store.records) != 0 {
				t.Fatalf("store must not be touched on validation failure")
			}
		})
	}
}

func TestAppendWrapsStorageFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store := &recordingStore{err: errors.New("disk full")}
	service, err := NewService(ServiceConfig{Store: store, Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	_, err = service.Append(context.Background(), AppendRequest{
		PatientCount: intPtr(1), DistributionDurationMinutes: intPtr(1), MealPeriod: "soir", PersonCount: intPtr(1),
	})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "distribution.append.storage_failed" {
		t.Fatalf("unexpected service error: %v", err)
	}
	if got := err.Error(); got != "distribution.append.storage_failed: distribution: storage error: disk full" {
		t.Fatalf("unexpected error text %q", got)
	}
	entries := logs.FilterMessage("distribution service error").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected one error log entry, got %d", len(entries))
	}
}

func TestAppendKeepsConfigurationFailures(t *testing.T) {
	store := &recordingStore{err: errors.Join(ErrConfiguration, errors.New("sheets.spreadsheet_id is required"))}
	service := newTestService(t, store, nil)

	_, err := service.Append(context.Background(), AppendRequest{
		PatientCount: intPtr(1), DistributionDurationMinutes: intPtr(1), MealPeriod: "soir", PersonCount: intPtr(1),
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if errors.Is(err, ErrStorage) {
		t.Fatalf("configuration failures must not be reported as storage errors")
	}
}

func TestNewValidationErrorOrdersByColumn(t *testing.T) {
	err := NewValidationError(
		FieldError{Field: FieldPersonCount, Type: "value_error.number.not_ge"},
		FieldError{Field: FieldMealPeriod, Type: "value_error.meal_period"},
		FieldError{Field: FieldPatientCount, Type: "value_error.missing"},
	)
	want := []string{FieldPatientCount, FieldMealPeriod, FieldPersonCount}
	if len(err.Fields) != len(want) {
		t.Fatalf("unexpected fields: %+v", err.Fields)
	}
	for index, field := range want {
		if err.Fields[index].Field != field {
			t.Fatalf("field %d = %s, want %s", index, err.Fields[index].Field, field)
		}
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error to unwrap to ErrValidation")
	}
}

func TestRecordValuesFollowColumnOrder(t *testing.T) {
	record := Record{
		Timestamp:                   "2024-01-01 08:00:00",
		PatientCount:                5,
		DistributionDurationMinutes: 15,
		MealPeriod:                  MealPeriodBreakfast,
		PersonCount:                 3,
		FreeNotes:                   "notes",
		SourceMessage:               "msg",
	}
	values := record.Values()
	if len(values) != len(Columns) {
		t.Fatalf("expected %d values, got %d", len(Columns), len(values))
	}
	want := []any{"2024-01-01 08:00:00", 5, 15, "breakfast", 3, "notes", "msg"}
	for index := range want {
		if values[index] != want[index] {
			t.Fatalf("value %d (%s) = %v, want %v", index, Columns[index], values[index], want[index])
		}
	}
}
