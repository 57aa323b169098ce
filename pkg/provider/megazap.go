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

// Megazap is the second legacy cloud REST backend. Stateless per call,
// instance token in a header, media by URL reference. It has no PIX
// button or reply-to capability; those operations fail with
// gwerr.ErrUnsupportedOperation instead of being attempted.
type Megazap struct {
	base          string
	instanceID    string
	instanceToken string
	timeout       time.Duration
}

func NewMegazap(base, instanceID, instanceToken string, timeout time.Duration) *Megazap {
	return &Megazap{base: base, instanceID: instanceID, instanceToken: instanceToken, timeout: timeout}
}

func (p *Megazap) Name() string { return constant.ProviderMegazap }

type megazapResponse struct {
	Status struct {
		Connected bool `json:"connected"`
		LoggedIn  bool `json:"loggedIn"`
	} `json:"status"`
	JID     string `json:"jid"`
	QRCode  string `json:"qrcode"`
	ID      string `json:"id"`
	Exists  bool   `json:"exists"`
	Webhook struct {
		URL string `json:"url"`
	} `json:"webhook"`
	Error string `json:"error"`
}

func (p *Megazap) call(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	url := p.base + "/rest/" + p.instanceID + path
	var df = gout.New().GET(url)
	switch method {
	case http.MethodPost:
		df = gout.New().POST(url)
	case http.MethodDelete:
		df = gout.New().DELETE(url)
	}

	df = df.WithContext(ctx).
		SetTimeout(p.timeout).
		SetHeader(gout.H{"apikey": p.instanceToken})
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

func (p *Megazap) do(ctx context.Context, method, path string, body interface{}) (megazapResponse, error) {
	var r megazapResponse
	code, err := p.call(ctx, method, path, body, &r)
	if err != nil {
		return megazapResponse{}, err
	}
	if code >= 400 || r.Error != "" {
		return r, normalizeSessionErr(r.Error)
	}
	return r, nil
}

func (p *Megazap) Connect(ctx context.Context) (StatusInfo, error) {
	return p.Status(ctx)
}

func (p *Megazap) Status(ctx context.Context) (StatusInfo, error) {
	r, err := p.do(ctx, http.MethodGet, "/instance/status", nil)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{Connected: r.Status.Connected, LoggedIn: r.Status.LoggedIn, DeviceJID: r.JID}, nil
}

func (p *Megazap) QR(ctx context.Context) (string, error) {
	r, err := p.do(ctx, http.MethodGet, "/instance/qrcode", nil)
	if err != nil {
		return "", err
	}
	if r.QRCode == "" {
		return "", errors.Wrap(gwerr.ErrProviderLogical, "backend returned no qr code")
	}
	return r.QRCode, nil
}

func (p *Megazap) Logout(ctx context.Context) error {
	_, err := p.do(ctx, http.MethodPost, "/instance/logout", nil)
	return err
}

func (p *Megazap) SendText(ctx context.Context, phone, text string) (string, error) {
	r, err := p.do(ctx, http.MethodPost, "/messages/text", gout.H{"to": phone, "body": text})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (p *Megazap) SendMedia(ctx context.Context, phone, kind, source, caption, fileName string) (string, error) {
	r, err := p.do(ctx, http.MethodPost, "/messages/media", gout.H{
		"to":       phone,
		"type":     kind,
		"url":      source,
		"caption":  caption,
		"fileName": fileName,
	})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (p *Megazap) SendContact(ctx context.Context, phone string, card ContactCard) (string, error) {
	r, err := p.do(ctx, http.MethodPost, "/messages/contact", gout.H{
		"to":    phone,
		"name":  card.Name,
		"phone": card.Phone,
	})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (p *Megazap) SendPIX(ctx context.Context, phone string, pix PIXButton) (string, error) {
	return "", errors.Wrap(gwerr.ErrUnsupportedOperation, "pix buttons are not available on this provider")
}

func (p *Megazap) ReplyMessage(ctx context.Context, phone, quotedID, text string) (string, error) {
	return "", errors.Wrap(gwerr.ErrUnsupportedOperation, "reply-to is not available on this provider")
}

func (p *Megazap) CheckOnWhatsApp(ctx context.Context, phone string) (bool, error) {
	r, err := p.do(ctx, http.MethodGet, "/contacts/check/"+phone, nil)
	if err != nil {
		return false, err
	}
	return r.Exists, nil
}

func (p *Megazap) passthrough(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	code, err := p.call(ctx, method, path, body, &raw)
	if err != nil {
		return nil, err
	}
	if code >= 400 {
		return nil, errors.Wrapf(gwerr.ErrProviderLogical, "backend returned status %d", code)
	}
	return raw, nil
}

func (p *Megazap) ListChats(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodGet, "/chats", nil)
}

func (p *Megazap) ListContacts(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodGet, "/contacts", nil)
}

func (p *Megazap) ReadChat(ctx context.Context, phone string) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodGet, "/chats/"+phone+"/messages", nil)
}

func (p *Megazap) ReadMessage(ctx context.Context, messageID string) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodGet, "/messages/"+messageID, nil)
}

func (p *Megazap) SyncChats(ctx context.Context) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodPost, "/chats/sync", nil)
}

func (p *Megazap) SyncMessages(ctx context.Context, phone string) (json.RawMessage, error) {
	return p.passthrough(ctx, http.MethodPost, "/chats/"+phone+"/sync", nil)
}

func (p *Megazap) SetWebhook(ctx context.Context, url string, events []string) error {
	_, err := p.do(ctx, http.MethodPost, "/webhook", gout.H{"url": url, "events": events})
	return err
}

func (p *Megazap) GetWebhook(ctx context.Context) (string, error) {
	r, err := p.do(ctx, http.MethodGet, "/webhook", nil)
	if err != nil {
		return "", err
	}
	return r.Webhook.URL, nil
}

func (p *Megazap) DeleteWebhook(ctx context.Context) error {
	_, err := p.do(ctx, http.MethodDelete, "/webhook", nil)
	return err
}
