package types

// ChatRequest is the web chat request body.
type ChatRequest struct {
	AgentID string `json:"agentId"`
	Message string `json:"message"`
}

// ChatResponse is the web chat reply.
type ChatResponse struct {
	Reply      string `json:"reply"`
	AgentID    string `json:"agentId,omitempty"`
	Model      string `json:"model,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	TxExecuted int    `json:"txExecuted,omitempty"`
}

// TelegramUpdate is the subset of the Telegram Bot API update payload the
// webhook consumes.
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message"`
}

type TelegramMessage struct {
	MessageID int64         `json:"message_id"`
	From      *TelegramUser `json:"from"`
	Chat      TelegramChat  `json:"chat"`
	Text      string        `json:"text"`
}

type TelegramUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type TelegramChat struct {
	ID int64 `json:"id"`
}

// TelegramWebhookReply answers a webhook delivery in place, using the Bot
// API's method-in-response form. Telegram sends the text back to the chat.
type TelegramWebhookReply struct {
	Method string `json:"method"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// GatewayMessageRequest is a message relayed by an external channel gateway.
type GatewayMessageRequest struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

type GatewayMessageResponse struct {
	Reply string `json:"reply"`
}

// PairingCodeResponse returns a minted pairing code and its expiry.
type PairingCodeResponse struct {
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expiresAt"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}
