package student

import (
	"time"

	"github.com/uptrace/bun"
)

// Student is the persisted roster record. Email and phone number are
// natural keys enforced by unique constraints; id is assigned by the
// database and never supplied by callers on the import path.
type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID          int       `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name" validate:"required"`
	Age         int       `bun:"age,notnull" json:"age" validate:"required,gt=0"`
	ClassLabel  string    `bun:"class_label" json:"class_label"`
	Email       string    `bun:"email,unique,notnull" json:"email" validate:"required,email"`
	PhoneNumber string    `bun:"phone_number,unique,notnull" json:"phone_number" validate:"required"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Candidate is one row of an uploaded roster before it has been merged
// into the table. It carries no id: existing rows are matched by email.
type Candidate struct {
	Name        string `json:"name"`
	Age         int    `json:"age"`
	ClassLabel  string `json:"class_label"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// ImportReport summarizes a batch upsert.
type ImportReport struct {
	Upserted int          `json:"upserted"`
	Failures []RowFailure `json:"failures,omitempty"`
}

// RowFailure records a single candidate row that could not be merged,
// typically a phone number already claimed by another record. Row is
// 1-based within the uploaded batch.
type RowFailure struct {
	Row    int    `json:"row"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}
