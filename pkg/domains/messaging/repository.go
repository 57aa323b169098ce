package messaging

import (
	"context"
	"time"

	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/utils"
	"gorm.io/gorm"
)

type Repository interface {
	UpsertContact(ctx context.Context, orgID uint, phoneE164, name string) (entities.Contact, error)
	UpsertConversation(ctx context.Context, orgID, contactID uint, at time.Time) (entities.Conversation, error)
	CreateMessage(ctx context.Context, message *entities.Message) error
	FindConversationByPhone(ctx context.Context, orgID uint, phoneE164 string) (entities.Conversation, entities.Contact, error)
	Messages(ctx context.Context, orgID, conversationID uint, page int) ([]entities.Message, int, error)
	DeleteConversation(ctx context.Context, orgID, conversationID uint) error
}

type repository struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

func (r *repository) UpsertContact(ctx context.Context, orgID uint, phoneE164, name string) (entities.Contact, error) {
	var contact entities.Contact
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND phone_e164 = ?", orgID, phoneE164).
		First(&contact).Error
	if err == gorm.ErrRecordNotFound {
		contact = entities.Contact{OrganizationID: orgID, PhoneE164: phoneE164, Name: name}
		err = r.db.WithContext(ctx).Create(&contact).Error
		return contact, err
	}
	if err != nil {
		return contact, err
	}
	if name != "" && name != contact.Name {
		contact.Name = name
		err = r.db.WithContext(ctx).Save(&contact).Error
	}
	return contact, err
}

func (r *repository) UpsertConversation(ctx context.Context, orgID, contactID uint, at time.Time) (entities.Conversation, error) {
	var conversation entities.Conversation
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND contact_id = ?", orgID, contactID).
		First(&conversation).Error
	if err == gorm.ErrRecordNotFound {
		conversation = entities.Conversation{
			OrganizationID: orgID,
			ContactID:      contactID,
			Status:         "open",
			LastMessageAt:  at,
		}
		err = r.db.WithContext(ctx).Create(&conversation).Error
		return conversation, err
	}
	if err != nil {
		return conversation, err
	}
	conversation.LastMessageAt = at
	err = r.db.WithContext(ctx).Save(&conversation).Error
	return conversation, err
}

func (r *repository) CreateMessage(ctx context.Context, message *entities.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) FindConversationByPhone(ctx context.Context, orgID uint, phoneE164 string) (entities.Conversation, entities.Contact, error) {
	var contact entities.Contact
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND phone_e164 = ?", orgID, phoneE164).
		First(&contact).Error
	if err != nil {
		return entities.Conversation{}, entities.Contact{}, err
	}

	var conversation entities.Conversation
	err = r.db.WithContext(ctx).
		Where("organization_id = ? AND contact_id = ?", orgID, contact.ID).
		First(&conversation).Error
	return conversation, contact, err
}

func (r *repository) Messages(ctx context.Context, orgID, conversationID uint, page int) ([]entities.Message, int, error) {
	var messages []entities.Message
	totalPages, err := utils.Pagination(&messages, page, r.db.Order("timestamp asc"), ctx,
		"organization_id = ? AND conversation_id = ?", orgID, conversationID)
	if err != nil {
		return nil, 0, err
	}
	return messages, totalPages, nil
}

func (r *repository) DeleteConversation(ctx context.Context, orgID, conversationID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ? AND conversation_id = ?", orgID, conversationID).
			Delete(&entities.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("organization_id = ? AND id = ?", orgID, conversationID).
			Delete(&entities.Conversation{}).Error
	})
}
