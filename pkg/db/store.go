package db

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lisanmuaddib/meshbot-go/pkg/db/models"
)

// SeenNodeStore implements the actions.NodeStore contract on top of gorm.
type SeenNodeStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewSeenNodeStore creates a store over an established database connection.
func NewSeenNodeStore(database *gorm.DB, logger *logrus.Logger) *SeenNodeStore {
	return &SeenNodeStore{db: database, logger: logger}
}

// Exists reports whether the node has been recorded before.
func (s *SeenNodeStore) Exists(nodeNum uint32) (bool, error) {
	var count int64
	err := s.db.Model(&models.SeenNode{}).
		Where("node_id = ?", nodeNum).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query seen node %d: %w", nodeNum, err)
	}
	return count > 0, nil
}

// Insert records a node together with the raw packet that introduced it.
func (s *SeenNodeStore) Insert(nodeNum uint32, raw []byte) error {
	node := models.SeenNode{
		NodeID:  nodeNum,
		RawJSON: string(raw),
	}
	if err := s.db.Create(&node).Error; err != nil {
		return fmt.Errorf("failed to insert seen node %d: %w", nodeNum, err)
	}

	s.logger.WithField("node_id", nodeNum).Debug("Recorded new node")
	return nil
}

// Close releases the underlying database connection.
func (s *SeenNodeStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying connection: %w", err)
	}
	return sqlDB.Close()
}
