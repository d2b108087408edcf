package ledger

// Row is one persisted distribution record. RowID is a UUIDv7, so ordering by it
// follows creation order.
type Row struct {
	RowID                       string `gorm:"column:row_id;primaryKey;size:36;not null"`
	Timestamp                   string `gorm:"column:timestamp;size:32;not null"`
	PatientCount                int    `gorm:"column:patient_count;not null"`
	DistributionDurationMinutes int    `gorm:"column:distribution_duration_minutes;not null"`
	MealPeriod                  string `gorm:"column:meal_period;size:16;not null"`
	PersonCount                 int    `gorm:"column:person_count;not null"`
	FreeNotes                   string `gorm:"column:free_notes;type:text;not null;default:''"`
	SourceMessage               string `gorm:"column:source_message;type:text;not null;default:''"`
	AppendedAtSeconds           int64  `gorm:"column:appended_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Row) TableName() string {
	return "distribution_rows"
}

