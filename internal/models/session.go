package models

// DefaultSessionID identifies the session created lazily on first use.
const DefaultSessionID = "default"

// Session groups submissions of one classroom cohort.
type Session struct {
	ID           string `gorm:"primaryKey;size:64" json:"id"`
	Name         string `gorm:"size:255;not null" json:"name"`
	CreatedAt    int64  `gorm:"autoCreateTime:milli" json:"createdAt"`
	DisplayOrder int64  `gorm:"not null;default:0;index" json:"displayOrder"`
	// Active is only persisted by the relational store; other stores keep a separate pointer.
	Active bool `gorm:"not null;default:false" json:"-"`
}
