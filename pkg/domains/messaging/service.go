package messaging

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/wagateway/pkg/constant"
	"github.com/wagateway/pkg/domains/backends"
	"github.com/wagateway/pkg/dtos"
	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/gwerr"
	"github.com/wagateway/pkg/phone"
	"github.com/wagateway/pkg/provider"
	"gorm.io/gorm"
)

// Message types accepted by Send.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeAudio    = "audio"
	TypeVideo    = "video"
	TypeDocument = "document"
	TypeContact  = "contact"
	TypePIX      = "pix"
)

type Service interface {
	Send(ctx context.Context, orgID uint, req dtos.SendRequestDTO) (dtos.SendResultDTO, error)
	CheckNumber(ctx context.Context, orgID uint, rawPhone string) (bool, error)
	Messages(ctx context.Context, orgID uint, rawPhone string, page int) (dtos.ConversationMessagesDTO, error)
	DeleteConversation(ctx context.Context, orgID uint, rawPhone string) error
	RecordInbound(ctx context.Context, orgID uint, instanceID string, evt dtos.InboundEventDTO) error
}

type service struct {
	repository Repository
	backends   backends.Resolver
	strict     bool
}

func NewService(r Repository, b backends.Resolver, strictNumbers bool) Service {
	return &service{
		repository: r,
		backends:   b,
		strict:     strictNumbers,
	}
}

// Send dispatches one outbound message and records the attempt. The
// Message row is written whether or not the provider accepted the send,
// so conversation history reflects every attempt; a persistence hiccup is
// logged and swallowed because the send already happened.
func (s *service) Send(ctx context.Context, orgID uint, req dtos.SendRequestDTO) (dtos.SendResultDTO, error) {
	canonical := phone.ToCanonical(req.To)
	providerPhone := phone.ToProviderFormat(canonical)

	p, integration, err := s.backends.For(ctx, orgID)
	if err != nil {
		return dtos.SendResultDTO{}, err
	}

	if s.strict {
		reachable, err := p.CheckOnWhatsApp(ctx, providerPhone)
		if err == nil && !reachable {
			return dtos.SendResultDTO{}, errors.Wrap(gwerr.ErrNumberNotOnWhatsApp, canonical)
		}
		// A failed check is not a failed send; fall through and let the
		// dispatch attempt decide.
	}

	providerMsgID, sendErr := s.dispatch(ctx, p, providerPhone, req)

	status := entities.MessageStatusSent
	if sendErr != nil {
		status = entities.MessageStatusFailed
	}

	now := time.Now()
	message := entities.Message{
		OrganizationID:    orgID,
		Direction:         entities.DirectionOutbound,
		Type:              req.Type,
		Body:              req.Body,
		MediaURL:          req.MediaURL,
		Status:            status,
		ProviderMessageID: providerMsgID,
		Timestamp:         now,
		InstanceID:        integration.InstanceID,
	}
	s.record(ctx, orgID, canonical, "", &message)

	result := dtos.SendResultDTO{
		MessageID:         providerMsgID,
		ProviderMessageID: providerMsgID,
		Status:            status,
		To:                canonical,
		Timestamp:         now.Format(time.RFC3339),
	}
	return result, sendErr
}

func (s *service) dispatch(ctx context.Context, p provider.Provider, providerPhone string, req dtos.SendRequestDTO) (string, error) {
	if req.ReplyTo != "" {
		return p.ReplyMessage(ctx, providerPhone, req.ReplyTo, req.Body)
	}

	switch req.Type {
	case TypeText:
		return p.SendText(ctx, providerPhone, req.Body)
	case TypeImage, TypeAudio, TypeVideo, TypeDocument:
		return p.SendMedia(ctx, providerPhone, req.Type, req.MediaURL, req.Caption, req.FileName)
	case TypeContact:
		card := provider.ContactCard{
			Name:  req.Contact.Name,
			Phone: phone.ToProviderFormat(phone.ToCanonical(req.Contact.Phone)),
		}
		return p.SendContact(ctx, providerPhone, card)
	case TypePIX:
		return p.SendPIX(ctx, providerPhone, provider.PIXButton{
			Key:     req.PIX.Key,
			KeyType: req.PIX.KeyType,
			Name:    req.PIX.Name,
			Amount:  req.PIX.Amount,
		})
	}
	return "", errors.Errorf("unknown message type %q", req.Type)
}

func (s *service) CheckNumber(ctx context.Context, orgID uint, rawPhone string) (bool, error) {
	p, _, err := s.backends.For(ctx, orgID)
	if err != nil {
		return false, err
	}
	return p.CheckOnWhatsApp(ctx, phone.ToProviderFormat(phone.ToCanonical(rawPhone)))
}

func (s *service) Messages(ctx context.Context, orgID uint, rawPhone string, page int) (dtos.ConversationMessagesDTO, error) {
	canonical := phone.ToCanonical(rawPhone)
	conversation, contact, err := s.repository.FindConversationByPhone(ctx, orgID, canonical)
	if err == gorm.ErrRecordNotFound {
		return dtos.ConversationMessagesDTO{}, errors.New(constant.CONVERSATION_NOT_FOUND)
	}
	if err != nil {
		return dtos.ConversationMessagesDTO{}, err
	}

	if page <= 0 {
		page = 1
	}
	messages, totalPages, err := s.repository.Messages(ctx, orgID, conversation.ID, page)
	if err != nil {
		return dtos.ConversationMessagesDTO{}, err
	}

	dto := dtos.ConversationMessagesDTO{
		ConversationID: conversation.ID,
		Contact:        dtos.Contact{Name: contact.Name, Phone: contact.PhoneE164},
		Page:           page,
		TotalPages:     totalPages,
	}
	for _, m := range messages {
		dto.Messages = append(dto.Messages, dtos.MessageDTO{
			ID:                m.ID,
			Direction:         m.Direction,
			Type:              m.Type,
			Body:              m.Body,
			MediaURL:          m.MediaURL,
			Status:            m.Status,
			ProviderMessageID: m.ProviderMessageID,
			Timestamp:         m.Timestamp.Format(time.RFC3339),
		})
	}
	return dto, nil
}

func (s *service) DeleteConversation(ctx context.Context, orgID uint, rawPhone string) error {
	canonical := phone.ToCanonical(rawPhone)
	conversation, _, err := s.repository.FindConversationByPhone(ctx, orgID, canonical)
	if err == gorm.ErrRecordNotFound {
		return errors.New(constant.CONVERSATION_NOT_FOUND)
	}
	if err != nil {
		return err
	}
	return s.repository.DeleteConversation(ctx, orgID, conversation.ID)
}

// RecordInbound appends a provider-pushed message to the conversation.
// Status backfill events are handled by an external collaborator and are
// not recorded here.
func (s *service) RecordInbound(ctx context.Context, orgID uint, instanceID string, evt dtos.InboundEventDTO) error {
	canonical := phone.ToCanonical(evt.From)

	ts := time.Now()
	if evt.Timestamp > 0 {
		ts = time.Unix(evt.Timestamp, 0)
	}

	msgType := evt.Type
	if msgType == "" {
		msgType = TypeText
	}

	message := entities.Message{
		OrganizationID:    orgID,
		Direction:         entities.DirectionInbound,
		Type:              msgType,
		Body:              evt.Body,
		MediaURL:          evt.MediaURL,
		Status:            entities.MessageStatusDelivered,
		ProviderMessageID: evt.MessageID,
		Timestamp:         ts,
		InstanceID:        instanceID,
	}

	contact, err := s.repository.UpsertContact(ctx, orgID, canonical, evt.Name)
	if err != nil {
		return errors.Wrap(err, "upsert contact")
	}
	conversation, err := s.repository.UpsertConversation(ctx, orgID, contact.ID, ts)
	if err != nil {
		return errors.Wrap(err, "upsert conversation")
	}
	message.ConversationID = conversation.ID
	return s.repository.CreateMessage(ctx, &message)
}

// record threads the message into its contact/conversation. Errors are
// logged, never surfaced: recording must not mask or duplicate the send
// outcome.
func (s *service) record(ctx context.Context, orgID uint, canonical, contactName string, message *entities.Message) {
	contact, err := s.repository.UpsertContact(ctx, orgID, canonical, contactName)
	if err != nil {
		log.Printf("[warn] failed to upsert contact %s for organization %d: %v", canonical, orgID, err)
		return
	}
	conversation, err := s.repository.UpsertConversation(ctx, orgID, contact.ID, message.Timestamp)
	if err != nil {
		log.Printf("[warn] failed to upsert conversation for contact %d: %v", contact.ID, err)
		return
	}
	message.ConversationID = conversation.ID
	if err := s.repository.CreateMessage(ctx, message); err != nil {
		log.Printf("[warn] failed to record message for conversation %d: %v", conversation.ID, err)
	}
}
