package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReconciliationAudit records every successful payment mutation so the
// ledger's audit trail survives full reloads. Rows are append-only.
type ReconciliationAudit struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Action    string         `gorm:"column:action;not null;index" json:"action"`
	ProjectID string         `gorm:"column:project_id;not null;index" json:"project_id"`
	PaymentID string         `gorm:"column:payment_id" json:"payment_id,omitempty"`
	Details   datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (ReconciliationAudit) TableName() string {
	return "ReconciliationAudits"
}

func (a *ReconciliationAudit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
