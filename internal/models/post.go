// Package models contains data structures for the engagement domain.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a feed post. Only the fields the engagement jobs read or
// write are modelled here; the rest of the post lives with the feed service.
type Post struct {
	ID           uint       `gorm:"primaryKey" json:"id" bson:"_id"`
	UserID       uint       `gorm:"not null;index" json:"user_id" bson:"userId"`
	Title        string     `gorm:"size:300" json:"title" bson:"title"`
	Content      string     `gorm:"type:text" json:"content" bson:"content"`
	Approved     bool       `gorm:"not null;default:false;index" json:"approved" bson:"approved"`
	ApprovedTime *time.Time `gorm:"index" json:"approved_time,omitempty" bson:"approvedTime,omitempty"`
	HotScore     int        `gorm:"not null;default:0;index" json:"hot_score" bson:"hotScore"`
	// HotScoreDecayedAt is the instant the last decay step was applied.
	HotScoreDecayedAt *time.Time     `json:"-" bson:"hotScoreDecayedAt,omitempty"`
	CreatedAt         time.Time      `json:"created_at" bson:"createdAt"`
	UpdatedAt         time.Time      `json:"updated_at" bson:"updatedAt"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-" bson:"-"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}

// Approve makes the post publicly visible at now and seeds its hot score.
// The decay checkpoint starts at the approval instant so the score follows
// baseline - decay*hours from here on.
func (p *Post) Approve(now time.Time, baseline int) {
	approved := now
	p.Approved = true
	p.ApprovedTime = &approved
	if baseline < 0 {
		baseline = 0
	}
	p.HotScore = baseline
	checkpoint := now
	p.HotScoreDecayedAt = &checkpoint
}
