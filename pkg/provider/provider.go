package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/wagateway/pkg/gwerr"
)

// Media kinds accepted by SendMedia.
const (
	MediaImage    = "image"
	MediaAudio    = "audio"
	MediaVideo    = "video"
	MediaDocument = "document"
)

// StatusInfo carries the raw connection booleans as the backend reports
// them. Mapping to the canonical session states happens in the session
// domain, not here.
type StatusInfo struct {
	Connected bool
	LoggedIn  bool
	DeviceJID string
}

type ContactCard struct {
	Name  string
	Phone string
}

type PIXButton struct {
	Key     string
	KeyType string
	Name    string
	Amount  float64
}

// Provider is the uniform capability interface over the three backends.
// Phone arguments are already in provider format (digits only, Brazilian
// mobiles reduced). Every method carries a request timeout; timeouts and
// transport failures surface as gwerr.ErrProviderUnreachable, logical
// backend failures as gwerr.ErrProviderLogical or one of the session
// sentinels. Raw provider JSON crosses this boundary only as the opaque
// pass-through of the list/read/sync calls.
type Provider interface {
	Name() string

	Connect(ctx context.Context) (StatusInfo, error)
	Status(ctx context.Context) (StatusInfo, error)
	QR(ctx context.Context) (string, error)
	Logout(ctx context.Context) error

	SendText(ctx context.Context, phone, text string) (string, error)
	SendMedia(ctx context.Context, phone, kind, source, caption, fileName string) (string, error)
	SendContact(ctx context.Context, phone string, card ContactCard) (string, error)
	SendPIX(ctx context.Context, phone string, pix PIXButton) (string, error)
	ReplyMessage(ctx context.Context, phone, quotedID, text string) (string, error)
	CheckOnWhatsApp(ctx context.Context, phone string) (bool, error)

	ListChats(ctx context.Context) (json.RawMessage, error)
	ListContacts(ctx context.Context) (json.RawMessage, error)
	ReadChat(ctx context.Context, phone string) (json.RawMessage, error)
	ReadMessage(ctx context.Context, messageID string) (json.RawMessage, error)
	SyncChats(ctx context.Context) (json.RawMessage, error)
	SyncMessages(ctx context.Context, phone string) (json.RawMessage, error)

	SetWebhook(ctx context.Context, url string, events []string) error
	GetWebhook(ctx context.Context) (string, error)
	DeleteWebhook(ctx context.Context) error
}

// TokenStore persists lazily provisioned device tokens so subsequent
// calls reuse them. Implemented by the instance manager.
type TokenStore interface {
	DeviceToken(ctx context.Context) (string, error)
	SaveDeviceToken(ctx context.Context, token string) error
}

// normalizeSessionErr converts the session-state phrases the backends
// embed in error strings into sentinel errors. None of the backends
// expose stable error codes for these conditions, so string matching is
// the compatibility shim here; everything unrecognized is a plain
// logical failure.
func normalizeSessionErr(msg string) error {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "already connected"):
		return gwerr.ErrAlreadyConnected
	case strings.Contains(m, "already logged in"), strings.Contains(m, "already paired"):
		return gwerr.ErrAlreadyLoggedIn
	case strings.Contains(m, "no session"),
		strings.Contains(m, "not initialized"),
		strings.Contains(m, "instance not found"),
		strings.Contains(m, "instance does not exist"):
		return gwerr.ErrNoSession
	}
	return errors.Wrap(gwerr.ErrProviderLogical, msg)
}

// firstNonEmpty picks the first populated QR/webhook field out of the
// backend's differently named variants.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
