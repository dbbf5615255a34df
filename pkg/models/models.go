package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Employee represents a person who visits branches
type Employee struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Active    bool      `gorm:"not null;index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Client owns zero or more branches
type Client struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Branches  []Branch  `gorm:"foreignKey:ClientID" json:"branches,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Branch is one client location. Stops and jobs may outlive it.
type Branch struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID  uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	Name      string    `gorm:"not null" json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Branch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Stop is one visit inside a template. Display names are copied in on write
// so the template stays readable after renames or deletions.
type Stop struct {
	BranchID      uuid.UUID `json:"branch_id"`
	EmployeeID    uuid.UUID `json:"employee_id"`
	ClientID      uuid.UUID `json:"client_id"`
	Time          string    `json:"time"`
	EmployeeName  string    `json:"employee_name"`
	ClientName    string    `json:"client_name"`
	BranchName    string    `json:"branch_name"`
	BranchAddress string    `json:"branch_address,omitempty"`
}

// Key returns the identity key of the stop
func (s Stop) Key() StopKey {
	return KeyOf(s.BranchID, s.Time, s.EmployeeID)
}

// Template is the in-memory view of one catalog slot. ID is nil until the
// slot has been written to the store.
type Template struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Slot  int        `json:"slot"`
	Name  string     `json:"name"`
	Stops []Stop     `json:"stops"`
}

// Persisted reports whether the slot has a stored row
func (t Template) Persisted() bool {
	return t.ID != nil
}

// TemplateRecord represents the templates table
type TemplateRecord struct {
	ID        uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	Slot      int                       `gorm:"uniqueIndex;not null"`
	Name      string                    `gorm:"not null"`
	Stops     datatypes.JSONSlice[Stop] `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TemplateRecord) TableName() string { return "templates" }

func (t *TemplateRecord) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Assignment links one calendar date to the template slot materialized onto it
type Assignment struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Date            string     `gorm:"uniqueIndex;not null" json:"date"`
	TemplateSlot    int        `gorm:"not null" json:"template_slot"`
	FirstEmployeeID *uuid.UUID `gorm:"type:uuid" json:"first_employee_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
)

// Job is one dated visit produced by materialization. It carries no
// reference back to the template that produced it.
type Job struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"branch_id"`
	EmployeeID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"employee_id"`
	ScheduledAt time.Time  `gorm:"not null;index" json:"scheduled_at"`
	Status      JobStatus  `gorm:"type:varchar(16);not null;index" json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ReceiptURL  *string    `json:"receipt_url,omitempty"`
	Note        *string    `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
