package actions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/wagateway/pkg/constant"
	"github.com/wagateway/pkg/domains/backends"
	"github.com/wagateway/pkg/domains/instances"
	"github.com/wagateway/pkg/domains/messaging"
	"github.com/wagateway/pkg/domains/session"
	"github.com/wagateway/pkg/dtos"
	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/phone"
	"github.com/wagateway/pkg/utils"
)

// ErrUnknownAction marks a request whose action field matches nothing;
// the route layer answers it with HTTP 400 instead of an envelope.
var ErrUnknownAction = errors.New(constant.UNKNOWN_ACTION)

// Service routes an authenticated action request to the owning domain
// and folds the outcome into the uniform envelope. Validation problems
// come back as plain errors (HTTP 4xx at the route); provider and domain
// failures always land inside the envelope with HTTP 200.
type Service interface {
	Dispatch(ctx context.Context, orgID uint, req dtos.ActionRequest) (dtos.Envelope, error)
}

type service struct {
	sessions  session.Service
	messages  messaging.Service
	instances instances.Service
	backends  backends.Resolver
	webhooks  *session.WebhookConfigurator
	validator *utils.CustomValidator
}

func NewService(
	sessions session.Service,
	messages messaging.Service,
	inst instances.Service,
	b backends.Resolver,
	w *session.WebhookConfigurator,
) Service {
	return &service{
		sessions:  sessions,
		messages:  messages,
		instances: inst,
		backends:  b,
		webhooks:  w,
		validator: utils.NewCustomValidator(),
	}
}

func (s *service) Dispatch(ctx context.Context, orgID uint, req dtos.ActionRequest) (dtos.Envelope, error) {
	pl := req.Payload

	switch req.Action {
	case "internal-start-session":
		dto, err := s.sessions.Connect(ctx, orgID)
		return s.envelope(ctx, orgID, dto, err), nil
	case "internal-get-status":
		dto, err := s.sessions.Status(ctx, orgID)
		return s.envelope(ctx, orgID, dto, err), nil
	case "internal-get-qr":
		dto, err := s.sessions.QR(ctx, orgID)
		return s.envelope(ctx, orgID, dto, err), nil
	case "internal-logout":
		err := s.sessions.Logout(ctx, orgID)
		return s.envelope(ctx, orgID, map[string]string{"state": session.StateDisconnected}, err), nil

	case "send-text":
		return s.send(ctx, orgID, pl, dtos.SendRequestDTO{
			Type: messaging.TypeText,
			Body: cast.ToString(pl["message"]),
		})
	case "send-image":
		return s.send(ctx, orgID, pl, s.mediaRequest(messaging.TypeImage, pl))
	case "send-audio":
		return s.send(ctx, orgID, pl, s.mediaRequest(messaging.TypeAudio, pl))
	case "send-video":
		return s.send(ctx, orgID, pl, s.mediaRequest(messaging.TypeVideo, pl))
	case "send-document":
		return s.send(ctx, orgID, pl, s.mediaRequest(messaging.TypeDocument, pl))
	case "send-contact":
		return s.send(ctx, orgID, pl, dtos.SendRequestDTO{
			Type: messaging.TypeContact,
			Contact: dtos.Contact{
				Name:  cast.ToString(pl["contact_name"]),
				Phone: cast.ToString(pl["contact_phone"]),
			},
		})
	case "send-pix":
		return s.send(ctx, orgID, pl, dtos.SendRequestDTO{
			Type: messaging.TypePIX,
			PIX: dtos.PIX{
				Key:     cast.ToString(pl["pix_key"]),
				KeyType: cast.ToString(pl["pix_key_type"]),
				Name:    cast.ToString(pl["pix_name"]),
				Amount:  cast.ToFloat64(pl["pix_amount"]),
			},
		})
	case "reply-message":
		return s.send(ctx, orgID, pl, dtos.SendRequestDTO{
			Type:    messaging.TypeText,
			Body:    cast.ToString(pl["message"]),
			ReplyTo: cast.ToString(pl["message_id"]),
		})

	case "is-whatsapp":
		raw, err := s.requirePhone(pl)
		if err != nil {
			return dtos.Envelope{}, err
		}
		exists, err := s.messages.CheckNumber(ctx, orgID, raw)
		return s.envelope(ctx, orgID, map[string]interface{}{
			"phone":  phone.ToCanonical(raw),
			"exists": exists,
		}, err), nil

	case "get-messages":
		raw, err := s.requirePhone(pl)
		if err != nil {
			return dtos.Envelope{}, err
		}
		dto, err := s.messages.Messages(ctx, orgID, raw, cast.ToInt(pl["page"]))
		return s.envelope(ctx, orgID, dto, err), nil
	case "delete-conversation":
		raw, err := s.requirePhone(pl)
		if err != nil {
			return dtos.Envelope{}, err
		}
		err = s.messages.DeleteConversation(ctx, orgID, raw)
		return s.envelope(ctx, orgID, map[string]bool{"deleted": err == nil}, err), nil

	case "list-chats", "list-contacts", "read-chat", "read-message", "sync-chats", "sync-messages":
		return s.passthrough(ctx, orgID, req.Action, pl)

	case "instance-create":
		instance, err := s.instances.Create(ctx, orgID)
		return s.envelope(ctx, orgID, instanceDTO(instance, true), err), nil
	case "instance-list":
		list, err := s.instances.List(ctx, orgID)
		out := make([]dtos.InstanceDTO, 0, len(list))
		for _, instance := range list {
			out = append(out, instanceDTO(instance, false))
		}
		return s.envelope(ctx, orgID, out, err), nil
	case "instance-rotate":
		instance, err := s.instances.Rotate(ctx, orgID,
			cast.ToString(pl["instance_id"]), cast.ToString(pl["which"]))
		return s.envelope(ctx, orgID, instanceDTO(instance, true), err), nil
	case "instance-set-active":
		err := s.instances.SetActive(ctx, orgID, cast.ToString(pl["instance_id"]))
		return s.envelope(ctx, orgID, map[string]bool{"active": err == nil}, err), nil

	case "webhook-get":
		p, _, err := s.backends.For(ctx, orgID)
		if err != nil {
			return s.envelope(ctx, orgID, nil, err), nil
		}
		url, err := p.GetWebhook(ctx)
		return s.envelope(ctx, orgID, map[string]string{"url": url}, err), nil
	case "webhook-set", "webhook-update":
		p, integration, err := s.backends.For(ctx, orgID)
		if err != nil {
			return s.envelope(ctx, orgID, nil, err), nil
		}
		url := cast.ToString(pl["url"])
		if url == "" {
			url = s.webhooks.ExpectedURL(orgID, integration.InstanceID)
		}
		events := cast.ToStringSlice(pl["events"])
		if len(events) == 0 {
			events = session.DefaultWebhookEvents
		}
		err = p.SetWebhook(ctx, url, events)
		return s.envelope(ctx, orgID, map[string]string{"url": url}, err), nil
	case "webhook-delete":
		p, _, err := s.backends.For(ctx, orgID)
		if err != nil {
			return s.envelope(ctx, orgID, nil, err), nil
		}
		err = p.DeleteWebhook(ctx)
		return s.envelope(ctx, orgID, map[string]bool{"deleted": err == nil}, err), nil
	}

	return dtos.Envelope{}, errors.Wrap(ErrUnknownAction, req.Action)
}

func (s *service) send(ctx context.Context, orgID uint, pl map[string]interface{}, req dtos.SendRequestDTO) (dtos.Envelope, error) {
	raw, err := s.requirePhone(pl)
	if err != nil {
		return dtos.Envelope{}, err
	}
	req.To = raw

	result, sendErr := s.messages.Send(ctx, orgID, req)
	return s.envelope(ctx, orgID, result, sendErr), nil
}

func (s *service) mediaRequest(kind string, pl map[string]interface{}) dtos.SendRequestDTO {
	return dtos.SendRequestDTO{
		Type:     kind,
		MediaURL: cast.ToString(pl["url"]),
		Caption:  cast.ToString(pl["caption"]),
		FileName: cast.ToString(pl["file_name"]),
	}
}

func (s *service) passthrough(ctx context.Context, orgID uint, action string, pl map[string]interface{}) (dtos.Envelope, error) {
	p, _, err := s.backends.For(ctx, orgID)
	if err != nil {
		return s.envelope(ctx, orgID, nil, err), nil
	}

	var data interface{}
	switch action {
	case "list-chats":
		data, err = p.ListChats(ctx)
	case "list-contacts":
		data, err = p.ListContacts(ctx)
	case "read-chat":
		raw, perr := s.requirePhone(pl)
		if perr != nil {
			return dtos.Envelope{}, perr
		}
		data, err = p.ReadChat(ctx, phone.ToProviderFormat(phone.ToCanonical(raw)))
	case "read-message":
		data, err = p.ReadMessage(ctx, cast.ToString(pl["message_id"]))
	case "sync-chats":
		data, err = p.SyncChats(ctx)
	case "sync-messages":
		raw, perr := s.requirePhone(pl)
		if perr != nil {
			return dtos.Envelope{}, perr
		}
		data, err = p.SyncMessages(ctx, phone.ToProviderFormat(phone.ToCanonical(raw)))
	}
	return s.envelope(ctx, orgID, data, err), nil
}

// requirePhone extracts and validates the phone field; a missing or
// malformed number is a request fault, not a provider failure.
func (s *service) requirePhone(pl map[string]interface{}) (string, error) {
	raw := cast.ToString(pl["phone"])
	if raw == "" {
		return "", errors.New(constant.INVALID_PHONE_NUMBER)
	}
	if err := s.validator.Validator.Var(phone.ToCanonical(raw), "isphone"); err != nil {
		return "", errors.New(constant.INVALID_PHONE_NUMBER)
	}
	return raw, nil
}

// envelope folds a result and error into the uniform response shape.
// Logical failures stay inside the envelope as human-readable text.
func (s *service) envelope(ctx context.Context, orgID uint, data interface{}, err error) dtos.Envelope {
	env := dtos.Envelope{
		Success:  err == nil,
		Provider: s.providerName(ctx, orgID),
		Data:     data,
	}
	if err != nil {
		env.Error = err.Error()
		env.Data = nil
	}
	return env
}

func (s *service) providerName(ctx context.Context, orgID uint) string {
	integration, err := s.instances.Integration(ctx, orgID)
	if err != nil || integration.Provider == "" {
		return constant.ProviderInternal
	}
	return integration.Provider
}

func instanceDTO(instance entities.Instance, withSecrets bool) dtos.InstanceDTO {
	dto := dtos.InstanceDTO{
		InstanceID: instance.InstanceID,
		IsActive:   instance.IsActive,
		Status:     instance.Status,
	}
	if instance.DeviceJID != nil {
		dto.DeviceJID = *instance.DeviceJID
	}
	if withSecrets {
		dto.InstanceToken = instance.InstanceToken
		dto.ClientToken = instance.ClientToken
	}
	return dto
}
