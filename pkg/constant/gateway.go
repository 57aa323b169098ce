package constant

const (
	INVALID_REQUEST      = "Invalid request payload"
	SOMETHING_WENT_WRONG = "something went wrong"
	UNAUTHORIZED_ACCESS  = "unauthorized access"
	UNKNOWN_ACTION       = "unknown action"

	SESSION_STARTED    = "Session start requested"
	SESSION_LOGGED_OUT = "Session logged out"
	QR_CODE_GENERATED  = "QR code generated successfully"
	MESSAGE_SENT       = "Message sent successfully"
	WEBHOOK_UPDATED    = "Webhook updated successfully"

	INVALID_PHONE_NUMBER     = "Invalid phone number format"
	PAGE_NUMBER_OUT_OF_RANGE = "page number out of range"
	INSTANCE_NOT_FOUND       = "Instance not found"
	CONVERSATION_NOT_FOUND   = "Conversation not found"
)

const (
	// ProviderInternal is the self-hosted multi-tenant gateway backend.
	ProviderInternal = "internal"
	// ProviderZAPI is the legacy cloud REST backend with the full
	// capability set (tokens embedded in the URL path).
	ProviderZAPI = "zapi"
	// ProviderMegazap is the legacy cloud REST backend without PIX and
	// reply support (token passed in a header).
	ProviderMegazap = "megazap"
)

// SentinelInternalToken marks Integration rows whose client token column
// holds no caller-facing secret and must be skipped during resolution.
const SentinelInternalToken = "internal"
