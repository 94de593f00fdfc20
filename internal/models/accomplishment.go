package models

import "time"

// AccomplishmentCounter is the (target, accomplished) pair for one owner, category and period.
type AccomplishmentCounter struct {
	OwnerID        string     `db:"owner_id" json:"ownerId"`
	Category       Category   `db:"category" json:"category"`
	Period                    // academic_year, semester
	Target         int        `db:"target" json:"target"`
	Accomplished   int        `db:"accomplished" json:"accomplished"`
	LastSubmission *time.Time `db:"last_submission" json:"submitted"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}
