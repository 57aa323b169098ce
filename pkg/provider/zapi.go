package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
	"github.com/wagateway/pkg/constant"
	"github.com/wagateway/pkg/gwerr"
)

// ZAPI is the first legacy cloud REST backend. Stateless per call: the
// instance id and its token travel in the URL path, media goes by URL
// reference, and the full capability set (PIX buttons, reply-to) is
// available.
type ZAPI struct {
	base          string
	instanceID    string
	instanceToken string
	timeout       time.Duration
}

func NewZAPI(base, instanceID, instanceToken string, timeout time.Duration) *ZAPI {
	return &ZAPI{base: base, instanceID: instanceID, instanceToken: instanceToken, timeout: timeout}
}

func (p *ZAPI) Name() string { return constant.ProviderZAPI }

func (p *ZAPI) url(path string) string {
	return p.base + "/instances/" + p.instanceID + "/token/" + p.instanceToken + path
}

type zapiResponse struct {
	Connected bool   `json:"connected"`
	Session   bool   `json:"session"`
	Phone     string `json:"phone"`
	Value     string `json:"value"`
	MessageID string `json:"messageId"`
	ZaapID    string `json:"zaapId"`
	Exists    bool   `json:"exists"`
	Error     string `json:"error"`
}

func (p *ZAPI) call(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var df = gout.New().GET(p.url(path))
	switch method {
	case http.MethodPost:
		df = gout.New().POST(p.url(path))
	case http.MethodPut:
		df = gout.New().PUT(p.url(path))
	}

	df = df.WithContext(ctx).SetTimeout(p.timeout)
	if body != nil {
		df = df.SetJSON(body)
	}
	if out != nil {
		df = df.BindJSON(out)
	}

	code := 0
	if err := df.Code(&code).Do(); err != nil {
		return 0, errors.Wrap(gwerr.ErrProviderUnreachable, err.Error())
	}
	return code, nil
}

func (p *ZAPI) do(ctx context.Context, method, path string, body interface{}) (zapiResponse, error) {
	var r zapiResponse
	code, err := p.call(ctx, method, path, body, &r)
	if err != nil {
		return zapiResponse{}, err
	}
	if code >= 400 || r.Error != "" {
		return r, normalizeSessionErr(r.Error)
	}
	return r, nil
}

// Connect is a status refresh: this backend pairs sessions on its own
// side, so there is no separate connect call.
func (p *ZAPI) Connect(ctx context.Context) (StatusInfo, error) {
	return p.Status(ctx)
}

func (p *ZAPI) Status(ctx context.Context) (StatusInfo, error) {
	r, err := p.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{Connected: r.Connected, LoggedIn: r.Session, DeviceJID: r.Phone}, nil
}

func (p *ZAPI) QR(ctx context.Context) (string, error) {
	r, err := p.do(ctx, http.MethodGet, "/qr-code/image", nil)
	if err != nil {
		return "", err
	}
	if r.Value == "" {
		return "", errors.Wrap(gwerr.ErrProviderLogical, "backend returned no qr code")
	}
	return r.Value, nil
}

func (p *ZAPI) Logout(ctx context.Context) error {
	_, err := p.do(ctx, http.MethodGet, "/disconnect", nil)
	return err
}

func (p *ZAPI) sendID(r zapiResponse) string {
	return firstNonEmpty(r.MessageID, r.ZaapID)
}

func (p *ZAPI) SendText(ctx context.Context, phone, text string) (string, error) {
	r, err := p.do(ctx, http.MethodPost, "/send-text", gout.H{"phone": phone, "message": text})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *ZAPI) SendMedia(ctx context.Context, phone, kind, source, caption, fileName string) (string, error) {
	var path string
	body := gout.H{"phone": phone}
	switch kind {
	case MediaImage:
		path, body["image"], body["caption"] = "/send-image", source, caption
	case MediaAudio:
		path, body["audio"] = "/send-audio", source
	case MediaVideo:
		path, body["video"], body["caption"] = "/send-video", source, caption
	default:
		path, body["document"], body["fileName"] = "/send-document", source, fileName
	}
	r, err := p.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *ZAPI) SendContact(ctx context.Context, phone string, card ContactCard) (string, error) {
	r, err := p.do(ctx, http.MethodPost, "/send-contact", gout.H{
		"phone":        phone,
		"contactName":  card.Name,
		"contactPhone": card.Phone,
	})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *ZAPI) SendPIX(ctx context.Context, phone string, pix PIXButton) (string, error) {
	r, err := p.do(ctx, http.MethodPost, "/send-pix-button", gout.H{
		"phone":        phone,
		"pixKey":       pix.Key,
		"type":         pix.KeyType,
		"merchantName": pix.Name,
		"amount":       pix.Amount,
	})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *ZAPI) ReplyMessage(ctx context.Context, phone, quotedID, text string) (string, error) {
	r, err := p.do(ctx, http.MethodPost, "/send-text", gout.H{
		"phone":     phone,
		"message":   text,
		"messageId": quotedID,
	})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *ZAPI) CheckOnWhatsApp(ctx context.Context, phone string) (bool, error) {
	r, err := p.do(ctx, http.MethodGet, "/phone-exists/"+phone, nil)
	if err != nil {
		return false, err
	}
	return r.Exists, nil
}

func (p *ZAPI) passthrough(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	code, err := p.call(ctx, http.MethodGet, path, nil, &raw)
	if err != nil {
		return nil, err
	}
	if code >= 400 {
		return nil, errors.Wrapf(gwerr.ErrProviderLogical, "backend returned status %d", code)
	}
	return raw, nil
}

func (p *ZAPI) ListChats(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, "/chats")
}

func (p *ZAPI) ListContacts(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, "/contacts")
}

func (p *ZAPI) ReadChat(ctx context.Context, phone string) (json.RawMessage, error) {
	return p.passthrough(ctx, "/chat-messages/"+phone)
}

func (p *ZAPI) ReadMessage(ctx context.Context, messageID string) (json.RawMessage, error) {
	return p.passthrough(ctx, "/messages/"+messageID)
}

func (p *ZAPI) SyncChats(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, "/chats?sync=true")
}

func (p *ZAPI) SyncMessages(ctx context.Context, phone string) (json.RawMessage, error) {
	return p.passthrough(ctx, "/chat-messages/"+phone+"?sync=true")
}

func (p *ZAPI) SetWebhook(ctx context.Context, url string, events []string) error {
	// This backend takes a single delivery URL; the event list is implied.
	_, err := p.do(ctx, http.MethodPut, "/update-webhook-received", gout.H{"value": url})
	return err
}

func (p *ZAPI) GetWebhook(ctx context.Context) (string, error) {
	r, err := p.do(ctx, http.MethodGet, "/webhook", nil)
	if err != nil {
		return "", err
	}
	return r.Value, nil
}

func (p *ZAPI) DeleteWebhook(ctx context.Context) error {
	_, err := p.do(ctx, http.MethodPut, "/update-webhook-received", gout.H{"value": ""})
	return err
}
