package models

import (
	"time"
)

// SeenNode records a mesh node the bot has welcomed, together with the raw
// packet that introduced it.
type SeenNode struct {
	NodeID    uint32    `gorm:"primaryKey;column:node_id"`
	Timestamp time.Time `gorm:"column:timestamp;not null;default:CURRENT_TIMESTAMP"`
	RawJSON   string    `gorm:"column:raw_json"`
}

// TableName overrides the default gorm pluralization.
func (SeenNode) TableName() string {
	return "seen_nodes"
}
