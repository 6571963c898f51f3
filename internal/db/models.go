package db

import "database/sql"

// Agent lifecycle statuses
const (
	AgentStatusDeploying = "deploying"
	AgentStatusActive    = "active"
	AgentStatusPaused    = "paused"
)

// Binding types
const (
	BindingTypePairing = "pairing"
	BindingTypeDirect  = "direct"
	BindingTypeWeb     = "web"
)

// Session message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Cron schedule kinds
const (
	ScheduleKindCron     = "cron"
	ScheduleKindInterval = "interval"
	ScheduleKindOnce     = "once"
)

type User struct {
	ID        string
	Email     string
	CreatedAt int64
}

type APIKey struct {
	UserID   string
	Provider string
	APIKey   string
}

type Agent struct {
	ID                   string
	UserID               string
	Name                 string
	TemplateKind         string
	SystemPrompt         string
	Provider             string
	Model                string
	WalletAddress        sql.NullString
	WalletIndex          sql.NullInt64
	Status               string
	PairingCode          sql.NullString
	PairingCodeExpiresAt sql.NullInt64
	CreatedAt            int64
	UpdatedAt            int64
}

type ChannelBinding struct {
	ID          string
	ChannelType string
	SenderID    string
	AgentID     string
	BindingType string
	// BotID is set when the binding was made through a dedicated bot
	// deployment rather than the shared channel endpoint.
	BotID         sql.NullString
	Active        bool
	PairedAt      int64
	LastMessageAt sql.NullInt64
	CreatedAt     int64
}

type SessionMessage struct {
	ID        int64
	BindingID string
	Role      string
	Content   string
	CreatedAt int64
}

type CronJob struct {
	ID              string
	AgentID         string
	Name            string
	ScheduleKind    string
	CronExpr        sql.NullString
	IntervalSeconds sql.NullInt64
	RunAt           sql.NullInt64
	Message         string
	Enabled         bool
	LastRunAt       sql.NullInt64
	RunCount        int64
	LastError       sql.NullString
	CreatedAt       int64
}

type ActivityEntry struct {
	ID        int64
	AgentID   string
	Kind      string
	Detail    string
	CreatedAt int64
}
