package dtos

// ActionRequest is the body of the single action endpoint. Payload is
// deliberately untyped; each action coerces the fields it needs.
type ActionRequest struct {
	Action  string                 `json:"action" binding:"required"`
	Payload map[string]interface{} `json:"payload"`
}

// Envelope is the uniform response shape, HTTP 200 even on logical
// provider failure. HTTP status codes are reserved for gateway faults.
type Envelope struct {
	Success  bool        `json:"success"`
	Provider string      `json:"provider"`
	Status   int         `json:"status,omitempty"`
	Error    string      `json:"error,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// SessionStateDTO reports the canonical connection state of the active
// instance.
type SessionStateDTO struct {
	State       string  `json:"state"`
	DeviceJID   *string `json:"device_jid,omitempty"`
	InstanceID  string  `json:"instance_id,omitempty"`
	QRPngBase64 string  `json:"qr_png_base64,omitempty"`
}

type InstanceDTO struct {
	InstanceID    string `json:"instance_id"`
	InstanceToken string `json:"instance_token,omitempty"`
	ClientToken   string `json:"client_token,omitempty"`
	IsActive      bool   `json:"is_active"`
	Status        string `json:"status"`
	DeviceJID     string `json:"device_jid,omitempty"`
}

// SendRequestDTO is the normalized send command assembled by the action
// dispatcher from the untyped payload.
type SendRequestDTO struct {
	To       string  `json:"to"`
	Type     string  `json:"type"`
	Body     string  `json:"body"`
	MediaURL string  `json:"media_url"`
	Caption  string  `json:"caption"`
	FileName string  `json:"file_name"`
	ReplyTo  string  `json:"reply_to"`
	Contact  Contact `json:"contact"`
	PIX      PIX     `json:"pix"`
}

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type PIX struct {
	Key     string  `json:"key"`
	KeyType string  `json:"key_type"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
}

type SendResultDTO struct {
	MessageID         string `json:"message_id"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Status            string `json:"status"`
	To                string `json:"to"`
	Timestamp         string `json:"timestamp"`
}

type MessageDTO struct {
	ID                uint   `json:"id"`
	Direction         string `json:"direction"`
	Type              string `json:"type"`
	Body              string `json:"body"`
	MediaURL          string `json:"media_url,omitempty"`
	Status            string `json:"status"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Timestamp         string `json:"timestamp"`
}

type ConversationMessagesDTO struct {
	ConversationID uint         `json:"conversation_id"`
	Contact        Contact      `json:"contact"`
	Page           int          `json:"page"`
	TotalPages     int          `json:"total_pages"`
	Messages       []MessageDTO `json:"messages"`
}

// InboundEventDTO is the payload pushed by providers to the inbound
// webhook endpoint.
type InboundEventDTO struct {
	Event     string `json:"event"`
	From      string `json:"from"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Body      string `json:"body"`
	MediaURL  string `json:"media_url"`
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}
