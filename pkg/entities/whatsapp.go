package entities

import (
	"time"

	"gorm.io/gorm"
)

// Pairing states persisted on Integration and Instance rows.
const (
	StatusDisconnected = "disconnected"
	StatusWaitingQR    = "waiting_qr"
	StatusConnected    = "connected"
)

// Integration is the legacy single-row-per-provider model. One row per
// organization per provider; the active instance is mirrored into it so
// old code paths resolve consistently.
type Integration struct {
	gorm.Model
	OrganizationID uint       `json:"organization_id" gorm:"uniqueIndex:idx_integration_org_provider;not null"`
	Provider       string     `json:"provider" gorm:"type:varchar(50);uniqueIndex:idx_integration_org_provider;not null"`
	InstanceID     string     `json:"instance_id" gorm:"type:varchar(100)"`
	InstanceToken  string     `json:"instance_token" gorm:"type:varchar(255)"`
	ClientToken    string     `json:"client_token" gorm:"type:varchar(255);index"`
	IsActive       bool       `json:"is_active" gorm:"default:false"`
	PairingStatus  string     `json:"pairing_status" gorm:"type:varchar(20);default:disconnected"`
	DeviceJID      *string    `json:"device_jid" gorm:"type:varchar(255)"`
	ConnectedAt    *time.Time `json:"connected_at"`

	// Relations
	Organization Organization `json:"organization" gorm:"foreignKey:OrganizationID"`
}

func (Integration) TableName() string {
	return "whatsapp_integrations"
}

// Instance is the multi-device model: one device/session slot bound to a
// single organization. At most one active instance per organization;
// tokens are unique and high-entropy. Replaced instances are deactivated,
// never deleted.
type Instance struct {
	gorm.Model
	OrganizationID uint       `json:"organization_id" gorm:"index;not null"`
	InstanceID     string     `json:"instance_id" gorm:"type:varchar(100);uniqueIndex;not null"`
	InstanceToken  string     `json:"instance_token" gorm:"type:varchar(255);uniqueIndex;not null"`
	ClientToken    string     `json:"client_token" gorm:"type:varchar(255);uniqueIndex;not null"`
	IsActive       bool       `json:"is_active" gorm:"default:false"`
	Status         string     `json:"status" gorm:"type:varchar(20);default:disconnected"`
	DeviceJID      *string    `json:"device_jid" gorm:"type:varchar(255)"`
	ConnectedAt    *time.Time `json:"connected_at"`

	// Relations
	Organization Organization `json:"organization" gorm:"foreignKey:OrganizationID"`
}

func (Instance) TableName() string {
	return "whatsapp_instances"
}
