package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
)

// StockTransaction records a change to physical stock (receiving, damage,
// cycle-count corrections). The broader stock ledger consuming these rows is
// owned by procurement; this service only appends.
type StockTransaction struct {
	ID          uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	ItemID      uuid.UUID                    `gorm:"column:item_id;type:uuid;not null;index"`
	Delta       int                          `gorm:"column:delta;not null"`
	Reason      enums.StockTransactionReason `gorm:"column:reason;not null"`
	ActorUserID uuid.UUID                    `gorm:"column:actor_user_id;type:uuid;not null"`
	CreatedAt   time.Time                    `gorm:"column:created_at;autoCreateTime"`
}
