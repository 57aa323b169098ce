package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/wagateway/pkg/dtos"
	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/gwerr"
	"github.com/wagateway/pkg/provider"
	"gorm.io/gorm"
)

type sendCall struct {
	method string
	phone  string
	body   string
}

type fakeProvider struct {
	sendErr   error
	reachable bool
	checkErr  error
	calls     []sendCall
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Connect(ctx context.Context) (provider.StatusInfo, error) {
	return provider.StatusInfo{}, nil
}
func (f *fakeProvider) Status(ctx context.Context) (provider.StatusInfo, error) {
	return provider.StatusInfo{}, nil
}
func (f *fakeProvider) QR(ctx context.Context) (string, error) { return "", nil }
func (f *fakeProvider) Logout(ctx context.Context) error       { return nil }

func (f *fakeProvider) SendText(ctx context.Context, phone, text string) (string, error) {
	f.calls = append(f.calls, sendCall{"SendText", phone, text})
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "prov-msg-1", nil
}

func (f *fakeProvider) SendMedia(ctx context.Context, phone, kind, source, caption, fileName string) (string, error) {
	f.calls = append(f.calls, sendCall{"SendMedia", phone, source})
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "prov-msg-1", nil
}

func (f *fakeProvider) SendContact(ctx context.Context, phone string, card provider.ContactCard) (string, error) {
	f.calls = append(f.calls, sendCall{"SendContact", phone, card.Phone})
	return "prov-msg-1", nil
}

func (f *fakeProvider) SendPIX(ctx context.Context, phone string, pix provider.PIXButton) (string, error) {
	f.calls = append(f.calls, sendCall{"SendPIX", phone, pix.Key})
	return "prov-msg-1", nil
}

func (f *fakeProvider) ReplyMessage(ctx context.Context, phone, quotedID, text string) (string, error) {
	f.calls = append(f.calls, sendCall{"ReplyMessage", phone, quotedID})
	return "prov-msg-1", nil
}

func (f *fakeProvider) CheckOnWhatsApp(ctx context.Context, phone string) (bool, error) {
	return f.reachable, f.checkErr
}

func (f *fakeProvider) ListChats(ctx context.Context) (json.RawMessage, error)    { return nil, nil }
func (f *fakeProvider) ListContacts(ctx context.Context) (json.RawMessage, error) { return nil, nil }
func (f *fakeProvider) ReadChat(ctx context.Context, phone string) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeProvider) ReadMessage(ctx context.Context, messageID string) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeProvider) SyncChats(ctx context.Context) (json.RawMessage, error) { return nil, nil }
func (f *fakeProvider) SyncMessages(ctx context.Context, phone string) (json.RawMessage, error) {
	return nil, nil
}

func (f *fakeProvider) SetWebhook(ctx context.Context, url string, events []string) error { return nil }
func (f *fakeProvider) GetWebhook(ctx context.Context) (string, error)                    { return "", nil }
func (f *fakeProvider) DeleteWebhook(ctx context.Context) error                           { return nil }

type fakeResolver struct {
	p provider.Provider
}

func (f *fakeResolver) For(ctx context.Context, orgID uint) (provider.Provider, entities.Integration, error) {
	return f.p, entities.Integration{InstanceID: "inst-1"}, nil
}

type memoryRepo struct {
	contacts      []entities.Contact
	conversations []entities.Conversation
	messages      []entities.Message
	nextID        uint
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1}
}

func (r *memoryRepo) id() uint {
	id := r.nextID
	r.nextID++
	return id
}

func (r *memoryRepo) UpsertContact(ctx context.Context, orgID uint, phoneE164, name string) (entities.Contact, error) {
	for n, c := range r.contacts {
		if c.OrganizationID == orgID && c.PhoneE164 == phoneE164 {
			if name != "" {
				r.contacts[n].Name = name
			}
			return r.contacts[n], nil
		}
	}
	contact := entities.Contact{OrganizationID: orgID, PhoneE164: phoneE164, Name: name}
	contact.ID = r.id()
	r.contacts = append(r.contacts, contact)
	return contact, nil
}

func (r *memoryRepo) UpsertConversation(ctx context.Context, orgID, contactID uint, at time.Time) (entities.Conversation, error) {
	for n, c := range r.conversations {
		if c.OrganizationID == orgID && c.ContactID == contactID {
			r.conversations[n].LastMessageAt = at
			return r.conversations[n], nil
		}
	}
	conversation := entities.Conversation{OrganizationID: orgID, ContactID: contactID, Status: "open", LastMessageAt: at}
	conversation.ID = r.id()
	r.conversations = append(r.conversations, conversation)
	return conversation, nil
}

func (r *memoryRepo) CreateMessage(ctx context.Context, message *entities.Message) error {
	message.ID = r.id()
	r.messages = append(r.messages, *message)
	return nil
}

func (r *memoryRepo) FindConversationByPhone(ctx context.Context, orgID uint, phoneE164 string) (entities.Conversation, entities.Contact, error) {
	for _, c := range r.contacts {
		if c.OrganizationID == orgID && c.PhoneE164 == phoneE164 {
			for _, conv := range r.conversations {
				if conv.ContactID == c.ID {
					return conv, c, nil
				}
			}
		}
	}
	return entities.Conversation{}, entities.Contact{}, gorm.ErrRecordNotFound
}

func (r *memoryRepo) Messages(ctx context.Context, orgID, conversationID uint, page int) ([]entities.Message, int, error) {
	var out []entities.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, 1, nil
}

func (r *memoryRepo) DeleteConversation(ctx context.Context, orgID, conversationID uint) error {
	var kept []entities.Message
	for _, m := range r.messages {
		if m.ConversationID != conversationID {
			kept = append(kept, m)
		}
	}
	r.messages = kept

	var convs []entities.Conversation
	for _, c := range r.conversations {
		if c.ID != conversationID {
			convs = append(convs, c)
		}
	}
	r.conversations = convs
	return nil
}

func newTestService(p *fakeProvider, strict bool) (Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, &fakeResolver{p: p}, strict), repo
}

func TestSendPersistsSentMessage(t *testing.T) {
	p := &fakeProvider{}
	s, repo := newTestService(p, false)

	result, err := s.Send(context.Background(), 1, dtos.SendRequestDTO{
		To:   "11 98765-4321",
		Type: TypeText,
		Body: "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Status != entities.MessageStatusSent {
		t.Fatalf("status = %q, want %q", result.Status, entities.MessageStatusSent)
	}
	if result.To != "+5511987654321" {
		t.Fatalf("to = %q, want canonical form", result.To)
	}
	if result.ProviderMessageID != "prov-msg-1" {
		t.Fatalf("provider message id = %q", result.ProviderMessageID)
	}

	if len(p.calls) != 1 || p.calls[0].method != "SendText" {
		t.Fatalf("unexpected provider calls: %+v", p.calls)
	}
	if p.calls[0].phone != "551187654321" {
		t.Fatalf("provider phone = %q, want ninth digit dropped", p.calls[0].phone)
	}

	if len(repo.contacts) != 1 || len(repo.conversations) != 1 || len(repo.messages) != 1 {
		t.Fatalf("expected one contact, conversation and message; got %d/%d/%d",
			len(repo.contacts), len(repo.conversations), len(repo.messages))
	}
	if repo.messages[0].Status != entities.MessageStatusSent {
		t.Fatalf("recorded status = %q", repo.messages[0].Status)
	}
	if repo.messages[0].Direction != entities.DirectionOutbound {
		t.Fatalf("recorded direction = %q", repo.messages[0].Direction)
	}
}

func TestSendFailureStillRecorded(t *testing.T) {
	p := &fakeProvider{sendErr: gwerr.ErrProviderUnreachable}
	s, repo := newTestService(p, false)

	result, err := s.Send(context.Background(), 1, dtos.SendRequestDTO{
		To:   "+5511987654321",
		Type: TypeText,
		Body: "hello",
	})
	if !errors.Is(err, gwerr.ErrProviderUnreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
	if result.Status != entities.MessageStatusFailed {
		t.Fatalf("status = %q, want %q", result.Status, entities.MessageStatusFailed)
	}
	if len(repo.messages) != 1 {
		t.Fatalf("failed attempt must still be recorded, got %d messages", len(repo.messages))
	}
	if repo.messages[0].Status != entities.MessageStatusFailed {
		t.Fatalf("recorded status = %q", repo.messages[0].Status)
	}
}

func TestSendStrictRejectsUnknownNumber(t *testing.T) {
	p := &fakeProvider{reachable: false}
	s, repo := newTestService(p, true)

	_, err := s.Send(context.Background(), 1, dtos.SendRequestDTO{
		To:   "+5511987654321",
		Type: TypeText,
		Body: "hello",
	})
	if !errors.Is(err, gwerr.ErrNumberNotOnWhatsApp) {
		t.Fatalf("expected not-on-whatsapp error, got %v", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("no send should be attempted, got %+v", p.calls)
	}
	if len(repo.messages) != 0 {
		t.Fatalf("rejected send must not be recorded")
	}
}

func TestSendStrictCheckErrorFallsThrough(t *testing.T) {
	p := &fakeProvider{checkErr: gwerr.ErrProviderUnreachable}
	s, _ := newTestService(p, true)

	result, err := s.Send(context.Background(), 1, dtos.SendRequestDTO{
		To:   "+5511987654321",
		Type: TypeText,
		Body: "hello",
	})
	if err != nil {
		t.Fatalf("a failed pre-flight must not block the send: %v", err)
	}
	if result.Status != entities.MessageStatusSent {
		t.Fatalf("status = %q", result.Status)
	}
}

func TestSendReplyUsesQuotedMessage(t *testing.T) {
	p := &fakeProvider{}
	s, _ := newTestService(p, false)

	_, err := s.Send(context.Background(), 1, dtos.SendRequestDTO{
		To:      "+5511987654321",
		Type:    TypeText,
		Body:    "re: hello",
		ReplyTo: "quoted-1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(p.calls) != 1 || p.calls[0].method != "ReplyMessage" {
		t.Fatalf("expected ReplyMessage, got %+v", p.calls)
	}
	if p.calls[0].body != "quoted-1" {
		t.Fatalf("quoted id = %q", p.calls[0].body)
	}
}

func TestRecordInbound(t *testing.T) {
	p := &fakeProvider{}
	s, repo := newTestService(p, false)

	err := s.RecordInbound(context.Background(), 1, "inst-1", dtos.InboundEventDTO{
		Event:     "message",
		From:      "5511987654321",
		Name:      "Maria",
		Body:      "oi",
		MessageID: "in-1",
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("RecordInbound: %v", err)
	}

	if len(repo.contacts) != 1 || repo.contacts[0].Name != "Maria" {
		t.Fatalf("contact not recorded with push name: %+v", repo.contacts)
	}
	if repo.contacts[0].PhoneE164 != "+5511987654321" {
		t.Fatalf("contact phone = %q, want canonical", repo.contacts[0].PhoneE164)
	}
	if len(repo.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(repo.messages))
	}
	m := repo.messages[0]
	if m.Direction != entities.DirectionInbound {
		t.Fatalf("direction = %q", m.Direction)
	}
	if m.Status != entities.MessageStatusDelivered {
		t.Fatalf("status = %q", m.Status)
	}
}

func TestMessagesUnknownConversation(t *testing.T) {
	p := &fakeProvider{}
	s, _ := newTestService(p, false)

	_, err := s.Messages(context.Background(), 1, "+5511987654321", 1)
	if err == nil {
		t.Fatalf("expected an error for a conversation that does not exist")
	}
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	p := &fakeProvider{}
	s, repo := newTestService(p, false)

	if _, err := s.Send(context.Background(), 1, dtos.SendRequestDTO{
		To: "+5511987654321", Type: TypeText, Body: "hello",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := s.DeleteConversation(context.Background(), 1, "+5511987654321"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if len(repo.messages) != 0 || len(repo.conversations) != 0 {
		t.Fatalf("conversation not fully deleted: %d messages, %d conversations",
			len(repo.messages), len(repo.conversations))
	}
}
