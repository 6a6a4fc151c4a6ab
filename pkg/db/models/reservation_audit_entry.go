package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
)

// ReservationAuditEntry is an append-only record of one field-level change to
// a material reservation. Entries are written in the same transaction as the
// change they describe and are never updated or deleted.
type ReservationAuditEntry struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ReservationID uuid.UUID             `gorm:"column:reservation_id;type:uuid;not null;index"`
	JobID         uuid.UUID             `gorm:"column:job_id;type:uuid;not null;index"`
	ItemID        uuid.UUID             `gorm:"column:item_id;type:uuid;not null"`
	ChangeType    enums.AuditChangeType `gorm:"column:change_type;not null"`
	Field         string                `gorm:"column:field;not null"`
	OldValue      *string               `gorm:"column:old_value"`
	NewValue      *string               `gorm:"column:new_value"`
	ActorUserID   uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
