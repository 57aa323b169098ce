package actions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wagateway/pkg/domains/session"
	"github.com/wagateway/pkg/dtos"
	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/gwerr"
	"github.com/wagateway/pkg/provider"
	"gorm.io/gorm"
)

type fakeSession struct {
	state   string
	qr      string
	lastOp  string
	logouts int
}

func (f *fakeSession) Connect(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error) {
	f.lastOp = "connect"
	return dtos.SessionStateDTO{State: f.state}, nil
}

func (f *fakeSession) Status(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error) {
	f.lastOp = "status"
	return dtos.SessionStateDTO{State: f.state}, nil
}

func (f *fakeSession) QR(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error) {
	f.lastOp = "qr"
	return dtos.SessionStateDTO{State: session.StateWaitingQR, QRPngBase64: f.qr}, nil
}

func (f *fakeSession) Logout(ctx context.Context, orgID uint) error {
	f.logouts++
	return nil
}

type fakeMessaging struct {
	lastSend dtos.SendRequestDTO
	sendErr  error
}

func (f *fakeMessaging) Send(ctx context.Context, orgID uint, req dtos.SendRequestDTO) (dtos.SendResultDTO, error) {
	f.lastSend = req
	if f.sendErr != nil {
		return dtos.SendResultDTO{Status: entities.MessageStatusFailed}, f.sendErr
	}
	return dtos.SendResultDTO{MessageID: "m-1", Status: entities.MessageStatusSent, To: req.To}, nil
}

func (f *fakeMessaging) CheckNumber(ctx context.Context, orgID uint, rawPhone string) (bool, error) {
	return true, nil
}

func (f *fakeMessaging) Messages(ctx context.Context, orgID uint, rawPhone string, page int) (dtos.ConversationMessagesDTO, error) {
	return dtos.ConversationMessagesDTO{Page: page}, nil
}

func (f *fakeMessaging) DeleteConversation(ctx context.Context, orgID uint, rawPhone string) error {
	return nil
}

func (f *fakeMessaging) RecordInbound(ctx context.Context, orgID uint, instanceID string, evt dtos.InboundEventDTO) error {
	return nil
}

type fakeInstances struct {
	created []entities.Instance
	limit   int
}

func (f *fakeInstances) Create(ctx context.Context, orgID uint) (entities.Instance, error) {
	if f.limit > 0 && len(f.created) >= f.limit {
		return entities.Instance{}, gwerr.ErrInstanceLimitReached
	}
	instance := entities.Instance{
		OrganizationID: orgID,
		InstanceID:     "inst-1",
		InstanceToken:  "itok",
		ClientToken:    "ctok",
		IsActive:       len(f.created) == 0,
		Status:         entities.StatusDisconnected,
	}
	f.created = append(f.created, instance)
	return instance, nil
}

func (f *fakeInstances) List(ctx context.Context, orgID uint) ([]entities.Instance, error) {
	return f.created, nil
}

func (f *fakeInstances) Rotate(ctx context.Context, orgID uint, instanceID, which string) (entities.Instance, error) {
	return entities.Instance{InstanceID: instanceID, InstanceToken: "itok2", ClientToken: "ctok2"}, nil
}

func (f *fakeInstances) SetActive(ctx context.Context, orgID uint, instanceID string) error {
	return nil
}

func (f *fakeInstances) Active(ctx context.Context, orgID uint) (entities.Instance, error) {
	if len(f.created) == 0 {
		return entities.Instance{}, gorm.ErrRecordNotFound
	}
	return f.created[0], nil
}

func (f *fakeInstances) Integration(ctx context.Context, orgID uint) (entities.Integration, error) {
	return entities.Integration{Provider: "internal", InstanceID: "inst-1"}, nil
}

func (f *fakeInstances) ResolveToken(ctx context.Context, orgID uint) (string, error) {
	return "ctok", nil
}

func (f *fakeInstances) UpdatePairing(ctx context.Context, orgID uint, status string, deviceJID *string, connectedAt *time.Time) error {
	return nil
}

func (f *fakeInstances) DeviceToken(ctx context.Context, orgID uint) (string, error) {
	return "", nil
}

func (f *fakeInstances) SaveDeviceToken(ctx context.Context, orgID uint, token string) error {
	return nil
}

type fakeProvider struct {
	webhookURL string
	setCalls   []string
}

func (f *fakeProvider) Name() string { return "internal" }
func (f *fakeProvider) Connect(ctx context.Context) (provider.StatusInfo, error) {
	return provider.StatusInfo{}, nil
}
func (f *fakeProvider) Status(ctx context.Context) (provider.StatusInfo, error) {
	return provider.StatusInfo{}, nil
}
func (f *fakeProvider) QR(ctx context.Context) (string, error) { return "", nil }
func (f *fakeProvider) Logout(ctx context.Context) error       { return nil }
func (f *fakeProvider) SendText(ctx context.Context, phone, text string) (string, error) {
	return "", nil
}
func (f *fakeProvider) SendMedia(ctx context.Context, phone, kind, source, caption, fileName string) (string, error) {
	return "", nil
}
func (f *fakeProvider) SendContact(ctx context.Context, phone string, card provider.ContactCard) (string, error) {
	return "", nil
}
func (f *fakeProvider) SendPIX(ctx context.Context, phone string, pix provider.PIXButton) (string, error) {
	return "", nil
}
func (f *fakeProvider) ReplyMessage(ctx context.Context, phone, quotedID, text string) (string, error) {
	return "", nil
}
func (f *fakeProvider) CheckOnWhatsApp(ctx context.Context, phone string) (bool, error) {
	return true, nil
}
func (f *fakeProvider) ListChats(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[{"id":"chat-1"}]`), nil
}
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
func (f *fakeProvider) SetWebhook(ctx context.Context, url string, events []string) error {
	f.setCalls = append(f.setCalls, url)
	return nil
}
func (f *fakeProvider) GetWebhook(ctx context.Context) (string, error) { return f.webhookURL, nil }
func (f *fakeProvider) DeleteWebhook(ctx context.Context) error        { return nil }

type fakeResolver struct {
	p provider.Provider
}

func (f *fakeResolver) For(ctx context.Context, orgID uint) (provider.Provider, entities.Integration, error) {
	return f.p, entities.Integration{Provider: "internal", InstanceID: "inst-1"}, nil
}

type dispatcherFixture struct {
	service   Service
	session   *fakeSession
	messaging *fakeMessaging
	instances *fakeInstances
	provider  *fakeProvider
}

func newFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		session:   &fakeSession{state: session.StateConnected},
		messaging: &fakeMessaging{},
		instances: &fakeInstances{},
		provider:  &fakeProvider{},
	}
	f.service = NewService(
		f.session,
		f.messaging,
		f.instances,
		&fakeResolver{p: f.provider},
		session.NewWebhookConfigurator("https://gw.example.com/api/v1"),
	)
	return f
}

func TestDispatchUnknownAction(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "explode"})
	if err == nil {
		t.Fatalf("expected an error for an unknown action")
	}
}

func TestDispatchSessionActions(t *testing.T) {
	f := newFixture(t)

	env, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "internal-get-status"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !env.Success {
		t.Fatalf("envelope not successful: %+v", env)
	}
	if env.Provider != "internal" {
		t.Fatalf("provider = %q", env.Provider)
	}
	if f.session.lastOp != "status" {
		t.Fatalf("session op = %q", f.session.lastOp)
	}

	if _, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "internal-logout"}); err != nil {
		t.Fatalf("Dispatch logout: %v", err)
	}
	if f.session.logouts != 1 {
		t.Fatalf("logout not routed")
	}
}

func TestDispatchSendText(t *testing.T) {
	f := newFixture(t)

	env, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{
		Action: "send-text",
		Payload: map[string]interface{}{
			"phone":   "+5511987654321",
			"message": "hello",
		},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !env.Success {
		t.Fatalf("envelope not successful: %+v", env)
	}
	if f.messaging.lastSend.Type != "text" || f.messaging.lastSend.Body != "hello" {
		t.Fatalf("send request = %+v", f.messaging.lastSend)
	}
	if f.messaging.lastSend.To != "+5511987654321" {
		t.Fatalf("to = %q", f.messaging.lastSend.To)
	}
}

func TestDispatchSendMissingPhone(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{
		Action:  "send-text",
		Payload: map[string]interface{}{"message": "hello"},
	})
	if err == nil {
		t.Fatalf("expected a validation error without a phone")
	}
}

func TestDispatchSendFailureStaysInEnvelope(t *testing.T) {
	f := newFixture(t)
	f.messaging.sendErr = gwerr.ErrProviderUnreachable

	env, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{
		Action: "send-text",
		Payload: map[string]interface{}{
			"phone":   "+5511987654321",
			"message": "hello",
		},
	})
	if err != nil {
		t.Fatalf("provider failure must not become a request error: %v", err)
	}
	if env.Success {
		t.Fatalf("envelope should report failure")
	}
	if env.Error == "" {
		t.Fatalf("envelope should carry the error text")
	}
}

func TestDispatchSendImageCoercesPayload(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{
		Action: "send-image",
		Payload: map[string]interface{}{
			"phone":   "+5511987654321",
			"url":     "https://cdn.example.com/pic.png",
			"caption": "look",
		},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if f.messaging.lastSend.Type != "image" {
		t.Fatalf("type = %q", f.messaging.lastSend.Type)
	}
	if f.messaging.lastSend.MediaURL != "https://cdn.example.com/pic.png" {
		t.Fatalf("media url = %q", f.messaging.lastSend.MediaURL)
	}
}

func TestDispatchReplyMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{
		Action: "reply-message",
		Payload: map[string]interface{}{
			"phone":      "+5511987654321",
			"message":    "re: hello",
			"message_id": "quoted-1",
		},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if f.messaging.lastSend.ReplyTo != "quoted-1" {
		t.Fatalf("reply-to = %q", f.messaging.lastSend.ReplyTo)
	}
}

func TestDispatchInstanceCreateExposesTokensOnce(t *testing.T) {
	f := newFixture(t)

	env, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "instance-create"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	created, ok := env.Data.(dtos.InstanceDTO)
	if !ok {
		t.Fatalf("data is %T", env.Data)
	}
	if created.InstanceToken == "" || created.ClientToken == "" {
		t.Fatalf("creation response must carry both tokens: %+v", created)
	}

	env, err = f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "instance-list"})
	if err != nil {
		t.Fatalf("Dispatch list: %v", err)
	}
	list, ok := env.Data.([]dtos.InstanceDTO)
	if !ok {
		t.Fatalf("data is %T", env.Data)
	}
	if len(list) != 1 {
		t.Fatalf("expected one instance, got %d", len(list))
	}
	if list[0].InstanceToken != "" || list[0].ClientToken != "" {
		t.Fatalf("listing must not leak tokens: %+v", list[0])
	}
}

func TestDispatchInstanceQuotaError(t *testing.T) {
	f := newFixture(t)
	f.instances.limit = 1

	if _, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "instance-create"}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	env, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "instance-create"})
	if err != nil {
		t.Fatalf("quota breach must stay in the envelope: %v", err)
	}
	if env.Success {
		t.Fatalf("envelope should report the quota failure")
	}
}

func TestDispatchWebhookSetDefaultsToGatewayURL(t *testing.T) {
	f := newFixture(t)

	env, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "webhook-set"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !env.Success {
		t.Fatalf("envelope not successful: %+v", env)
	}
	if len(f.provider.setCalls) != 1 {
		t.Fatalf("expected one SetWebhook call, got %d", len(f.provider.setCalls))
	}
	want := session.NewWebhookConfigurator("https://gw.example.com/api/v1").ExpectedURL(1, "inst-1")
	if f.provider.setCalls[0] != want {
		t.Fatalf("webhook url = %q, want %q", f.provider.setCalls[0], want)
	}
}

func TestDispatchWebhookUpdateAliasesSet(t *testing.T) {
	f := newFixture(t)

	if _, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{
		Action:  "webhook-update",
		Payload: map[string]interface{}{"url": "https://custom.example.com/hook"},
	}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.provider.setCalls) != 1 || f.provider.setCalls[0] != "https://custom.example.com/hook" {
		t.Fatalf("set calls = %+v", f.provider.setCalls)
	}
}

func TestDispatchListChatsPassthrough(t *testing.T) {
	f := newFixture(t)

	env, err := f.service.Dispatch(context.Background(), 1, dtos.ActionRequest{Action: "list-chats"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	raw, ok := env.Data.(json.RawMessage)
	if !ok {
		t.Fatalf("data is %T, want raw provider json", env.Data)
	}
	if string(raw) != `[{"id":"chat-1"}]` {
		t.Fatalf("raw = %s", raw)
	}
}
