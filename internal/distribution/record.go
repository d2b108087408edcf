package distribution

// TimestampLayout is the persisted timestamp format (YYYY-MM-DD HH:MM:SS).
const TimestampLayout = "2006-01-02 15:04:05"

// Column names, in persisted order.
const (
	FieldTimestamp                   = "timestamp"
	FieldPatientCount                = "patient_count"
	FieldDistributionDurationMinutes = "distribution_duration_minutes"
	FieldMealPeriod                  = "meal_period"
	FieldPersonCount                 = "person_count"
	FieldFreeNotes                   = "free_notes"
	FieldSourceMessage               = "source_message"
)

// Columns lists the header of every store, in the order rows are written.
var Columns = []string{
	FieldTimestamp,
	FieldPatientCount,
	FieldDistributionDurationMinutes,
	FieldMealPeriod,
	FieldPersonCount,
	FieldFreeNotes,
	FieldSourceMessage,
}

// Record is one persisted meal-distribution event.
type Record struct {
	Timestamp                   string     `json:"timestamp"`
	PatientCount                int        `json:"patient_count"`
	DistributionDurationMinutes int        `json:"distribution_duration_minutes"`
	MealPeriod                  MealPeriod `json:"meal_period"`
	PersonCount                 int        `json:"person_count"`
	FreeNotes                   string     `json:"free_notes"`
	SourceMessage               string     `json:"source_message"`
}

// Values returns the record's cells in Columns order.
func (r Record) Values() []any {
	return []any{
		r.Timestamp,
		r.PatientCount,
		r.DistributionDurationMinutes,
		r.MealPeriod.String(),
		r.PersonCount,
		r.FreeNotes,
		r.SourceMessage,
	}
}

// AppendRequest is the caller-supplied candidate record. Nil counts are treated as missing.
type AppendRequest struct {
	Timestamp                   string
	PatientCount                *int
	DistributionDurationMinutes *int
	MealPeriod                  string
	PersonCount                 *int
	FreeNotes                   string
	SourceMessage               string
}
