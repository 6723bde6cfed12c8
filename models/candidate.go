package models

import (
	"time"

	"gorm.io/gorm"
)

// Candidate is the profile built from a resume upload. Contact fields are
// corrected by the user before the interview starts; after that the record
// is immutable.
type Candidate struct {
	ID         string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name       string         `gorm:"size:255;not null" json:"name"`
	Email      string         `gorm:"size:255;not null;index" json:"email"`
	Phone      string         `gorm:"size:50;not null" json:"phone"`
	ResumeText string         `gorm:"type:text" json:"resume_text,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Interviews []Interview `gorm:"foreignKey:CandidateID" json:"interviews,omitempty"`
}
