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

// InternalGateway talks to the self-hosted multi-tenant gateway service.
// Authentication is a per-organization bearer "device token" which is
// provisioned lazily through the admin API on first use and persisted via
// the TokenStore so every later call reuses it. This backend only accepts
// inline media, so remote URLs are downloaded and re-encoded before
// dispatch.
type InternalGateway struct {
	base       string
	adminToken string
	orgID      uint
	tokens     TokenStore
	timeout    time.Duration
	mediaMax   int64
}

func NewInternalGateway(base, adminToken string, orgID uint, tokens TokenStore, timeout time.Duration, mediaMax int64) *InternalGateway {
	return &InternalGateway{
		base:       base,
		adminToken: adminToken,
		orgID:      orgID,
		tokens:     tokens,
		timeout:    timeout,
		mediaMax:   mediaMax,
	}
}

func (p *InternalGateway) Name() string { return constant.ProviderInternal }

// igwResponse is the superset of fields the gateway service returns; the
// QR code in particular has appeared under several names across versions.
type igwResponse struct {
	Connected bool   `json:"connected"`
	LoggedIn  bool   `json:"loggedIn"`
	JID       string `json:"jid"`
	Token     string `json:"token"`
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
	QR        string `json:"qr"`
	QRCode    string `json:"qrcode"`
	URL       string `json:"url"`
	Error     string `json:"error"`
	Data      struct {
		QR     string `json:"qr"`
		QRCode string `json:"qrcode"`
		URL    string `json:"url"`
	} `json:"data"`
	Numbers []struct {
		Query  string `json:"query"`
		Exists bool   `json:"exists"`
	} `json:"numbers"`
}

func (p *InternalGateway) call(ctx context.Context, method, path, bearer string, body, out interface{}) (int, error) {
	var df = gout.New().GET(p.base + path)
	switch method {
	case http.MethodPost:
		df = gout.New().POST(p.base + path)
	case http.MethodDelete:
		df = gout.New().DELETE(p.base + path)
	}

	df = df.WithContext(ctx).
		SetTimeout(p.timeout).
		SetHeader(gout.H{"Authorization": "Bearer " + bearer})
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

// deviceToken returns the persisted device token, provisioning one
// through the admin API when the row has none yet.
func (p *InternalGateway) deviceToken(ctx context.Context) (string, error) {
	token, err := p.tokens.DeviceToken(ctx)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	var r igwResponse
	code, err := p.call(ctx, http.MethodPost, "/admin/instances", p.adminToken,
		gout.H{"organization_id": p.orgID}, &r)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK && code != http.StatusCreated {
		return "", errors.Wrapf(gwerr.ErrProviderLogical, "admin provisioning returned status %d: %s", code, r.Error)
	}
	if r.Token == "" {
		return "", errors.Wrap(gwerr.ErrProviderLogical, "admin provisioning returned no device token")
	}

	if err := p.tokens.SaveDeviceToken(ctx, r.Token); err != nil {
		return "", errors.Wrap(err, "persist device token")
	}
	return r.Token, nil
}

func (p *InternalGateway) session(ctx context.Context, method, path string, body interface{}) (igwResponse, error) {
	token, err := p.deviceToken(ctx)
	if err != nil {
		return igwResponse{}, err
	}
	var r igwResponse
	code, err := p.call(ctx, method, path, token, body, &r)
	if err != nil {
		return igwResponse{}, err
	}
	if code >= 400 || r.Error != "" {
		return r, normalizeSessionErr(r.Error)
	}
	return r, nil
}

func (p *InternalGateway) Connect(ctx context.Context) (StatusInfo, error) {
	r, err := p.session(ctx, http.MethodPost, "/instance/connect", nil)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{Connected: r.Connected, LoggedIn: r.LoggedIn, DeviceJID: r.JID}, nil
}

func (p *InternalGateway) Status(ctx context.Context) (StatusInfo, error) {
	r, err := p.session(ctx, http.MethodGet, "/instance/status", nil)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{Connected: r.Connected, LoggedIn: r.LoggedIn, DeviceJID: r.JID}, nil
}

func (p *InternalGateway) QR(ctx context.Context) (string, error) {
	r, err := p.session(ctx, http.MethodGet, "/instance/qr", nil)
	if err != nil {
		return "", err
	}
	qr := firstNonEmpty(r.QR, r.QRCode, r.Data.QR, r.Data.QRCode)
	if qr == "" {
		return "", errors.Wrap(gwerr.ErrProviderLogical, "backend returned no qr code")
	}
	return qr, nil
}

func (p *InternalGateway) Logout(ctx context.Context) error {
	_, err := p.session(ctx, http.MethodPost, "/instance/logout", nil)
	return err
}

func (p *InternalGateway) sendID(r igwResponse) string {
	return firstNonEmpty(r.ID, r.MessageID)
}

func (p *InternalGateway) SendText(ctx context.Context, phone, text string) (string, error) {
	r, err := p.session(ctx, http.MethodPost, "/send/text", gout.H{"number": phone, "text": text})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *InternalGateway) SendMedia(ctx context.Context, phone, kind, source, caption, fileName string) (string, error) {
	inline, err := InlineMedia(ctx, source, p.mediaMax, p.timeout)
	if err != nil {
		return "", err
	}
	r, err := p.session(ctx, http.MethodPost, "/send/media", gout.H{
		"number":   phone,
		"type":     kind,
		"file":     inline,
		"caption":  caption,
		"fileName": fileName,
	})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *InternalGateway) SendContact(ctx context.Context, phone string, card ContactCard) (string, error) {
	r, err := p.session(ctx, http.MethodPost, "/send/contact", gout.H{
		"number":       phone,
		"contactName":  card.Name,
		"contactPhone": card.Phone,
	})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *InternalGateway) SendPIX(ctx context.Context, phone string, pix PIXButton) (string, error) {
	r, err := p.session(ctx, http.MethodPost, "/send/pix", gout.H{
		"number":  phone,
		"key":     pix.Key,
		"keyType": pix.KeyType,
		"name":    pix.Name,
		"amount":  pix.Amount,
	})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *InternalGateway) ReplyMessage(ctx context.Context, phone, quotedID, text string) (string, error) {
	r, err := p.session(ctx, http.MethodPost, "/send/reply", gout.H{
		"number":   phone,
		"text":     text,
		"quotedId": quotedID,
	})
	if err != nil {
		return "", err
	}
	return p.sendID(r), nil
}

func (p *InternalGateway) CheckOnWhatsApp(ctx context.Context, phone string) (bool, error) {
	r, err := p.session(ctx, http.MethodPost, "/chat/check", gout.H{"numbers": []string{phone}})
	if err != nil {
		return false, err
	}
	for _, n := range r.Numbers {
		if n.Query == phone {
			return n.Exists, nil
		}
	}
	return false, nil
}

func (p *InternalGateway) passthrough(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	token, err := p.deviceToken(ctx)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	code, err := p.call(ctx, method, path, token, body, &raw)
	if err != nil {
		return nil, err
	}
	if code >= 400 {
		return nil, errors.Wrapf(gwerr.ErrProviderLogical, "backend returned status %d", code)
	}
	return raw, nil
}

func (p *InternalGateway) ListChats(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodGet, "/chats", nil)
}

func (p *InternalGateway) ListContacts(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodGet, "/contacts", nil)
}

func (p *InternalGateway) ReadChat(ctx context.Context, phone string) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodPost, "/chat/read", gout.H{"number": phone})
}

func (p *InternalGateway) ReadMessage(ctx context.Context, messageID string) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodGet, "/messages/"+messageID, nil)
}

func (p *InternalGateway) SyncChats(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodPost, "/chats/sync", nil)
}

func (p *InternalGateway) SyncMessages(ctx context.Context, phone string) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodPost, "/messages/sync", gout.H{"number": phone})
}

func (p *InternalGateway) SetWebhook(ctx context.Context, url string, events []string) error {
	_, err := p.session(ctx, http.MethodPost, "/webhook", gout.H{
		"url":     url,
		"events":  events,
		"enabled": true,
	})
	return err
}

func (p *InternalGateway) GetWebhook(ctx context.Context) (string, error) {
	r, err := p.session(ctx, http.MethodGet, "/webhook", nil)
	if err != nil {
		return "", err
	}
	return firstNonEmpty(r.URL, r.Data.URL), nil
}

func (p *InternalGateway) DeleteWebhook(ctx context.Context) error {
	_, err := p.session(ctx, http.MethodDelete, "/webhook", nil)
	return err
}
