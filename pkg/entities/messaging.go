package entities

import (
	"time"

	"gorm.io/gorm"
)

// Message direction and delivery status values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusFailed    = "failed"
)

// Contact is upserted on every inbound or outbound touch.
type Contact struct {
	gorm.Model
	OrganizationID uint   `json:"organization_id" gorm:"uniqueIndex:idx_contact_org_phone;not null"`
	PhoneE164      string `json:"phone_e164" gorm:"type:varchar(20);uniqueIndex:idx_contact_org_phone;not null"`
	Name           string `json:"name" gorm:"type:varchar(255)"`

	// Relations
	Organization Organization `json:"organization" gorm:"foreignKey:OrganizationID"`
}

func (Contact) TableName() string {
	return "whatsapp_contacts"
}

// Conversation threads messages per (organization, contact). Created
// lazily on the first message in either direction.
type Conversation struct {
	gorm.Model
	OrganizationID uint      `json:"organization_id" gorm:"uniqueIndex:idx_conversation_org_contact;not null"`
	ContactID      uint      `json:"contact_id" gorm:"uniqueIndex:idx_conversation_org_contact;not null"`
	Status         string    `json:"status" gorm:"type:varchar(20);default:open"`
	LastMessageAt  time.Time `json:"last_message_at"`

	// Relations
	Contact Contact `json:"contact" gorm:"foreignKey:ContactID"`
}

func (Conversation) TableName() string {
	return "whatsapp_conversations"
}

// Message is append-only. Status backfill from provider webhooks is
// handled by an external collaborator; nothing else mutates a row after
// insert.
type Message struct {
	gorm.Model
	OrganizationID    uint      `json:"organization_id" gorm:"index;not null"`
	ConversationID    uint      `json:"conversation_id" gorm:"index;not null"`
	Direction         string    `json:"direction" gorm:"type:varchar(10);not null"`
	Type              string    `json:"type" gorm:"type:varchar(20);not null"`
	Body              string    `json:"body" gorm:"type:text"`
	MediaURL          string    `json:"media_url" gorm:"type:varchar(1000)"`
	Status            string    `json:"status" gorm:"type:varchar(20)"`
	ProviderMessageID string    `json:"provider_message_id" gorm:"type:varchar(255);index"`
	Timestamp         time.Time `json:"timestamp"`
	InstanceID        string    `json:"instance_id" gorm:"type:varchar(100)"`

	// Relations
	Conversation Conversation `json:"conversation" gorm:"foreignKey:ConversationID"`
}

func (Message) TableName() string {
	return "whatsapp_messages"
}
