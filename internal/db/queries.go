package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the prepared query set
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given connection or transaction
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const createUser = `
INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)
RETURNING id, email, created_at
`

type CreateUserParams struct {
	ID    string
	Email string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, createUser, arg.ID, arg.Email, time.Now().Unix()).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	return u, err
}

const getAPIKey = `
SELECT api_key FROM api_keys WHERE user_id = ? AND provider = ?
`

type GetAPIKeyParams struct {
	UserID   string
	Provider string
}

// GetAPIKey returns the stored key for (user, provider), or "" when none is
// configured. Absence is not an error; callers decide how to surface it.
func (q *Queries) GetAPIKey(ctx context.Context, arg GetAPIKeyParams) (string, error) {
	var key string
	err := q.db.QueryRowContext(ctx, getAPIKey, arg.UserID, arg.Provider).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return key, err
}

const setAPIKey = `
INSERT INTO api_keys (user_id, provider, api_key) VALUES (?, ?, ?)
ON CONFLICT(user_id, provider) DO UPDATE SET api_key = excluded.api_key
`

type SetAPIKeyParams struct {
	UserID   string
	Provider string
	APIKey   string
}

func (q *Queries) SetAPIKey(ctx context.Context, arg SetAPIKeyParams) error {
	_, err := q.db.ExecContext(ctx, setAPIKey, arg.UserID, arg.Provider, arg.APIKey)
	return err
}

const agentColumns = `id, user_id, name, template_kind, system_prompt, provider, model,
	wallet_address, wallet_index, status, pairing_code, pairing_code_expires_at,
	created_at, updated_at`

func scanAgent(row *sql.Row) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.TemplateKind, &a.SystemPrompt,
		&a.Provider, &a.Model, &a.WalletAddress, &a.WalletIndex, &a.Status,
		&a.PairingCode, &a.PairingCodeExpiresAt, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

const createAgent = `
INSERT INTO agents (id, user_id, name, template_kind, system_prompt, provider, model,
	wallet_address, wallet_index, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + agentColumns

type CreateAgentParams struct {
	ID            string
	UserID        string
	Name          string
	TemplateKind  string
	SystemPrompt  string
	Provider      string
	Model         string
	WalletAddress sql.NullString
	WalletIndex   sql.NullInt64
	Status        string
}

func (q *Queries) CreateAgent(ctx context.Context, arg CreateAgentParams) (Agent, error) {
	now := time.Now().Unix()
	row := q.db.QueryRowContext(ctx, createAgent, arg.ID, arg.UserID, arg.Name,
		arg.TemplateKind, arg.SystemPrompt, arg.Provider, arg.Model,
		arg.WalletAddress, arg.WalletIndex, arg.Status, now, now)
	return scanAgent(row)
}

const getAgent = `SELECT ` + agentColumns + ` FROM agents WHERE id = ?`

func (q *Queries) GetAgent(ctx context.Context, id string) (Agent, error) {
	return scanAgent(q.db.QueryRowContext(ctx, getAgent, id))
}

// Stale expired codes may linger on other agents; prefer the freshest holder.
const getAgentByPairingCode = `SELECT ` + agentColumns + ` FROM agents WHERE pairing_code = ?
ORDER BY pairing_code_expires_at DESC LIMIT 1`

func (q *Queries) GetAgentByPairingCode(ctx context.Context, code string) (Agent, error) {
	return scanAgent(q.db.QueryRowContext(ctx, getAgentByPairingCode, code))
}

const listLivePairingCodes = `
SELECT id, pairing_code FROM agents
WHERE pairing_code IS NOT NULL AND pairing_code_expires_at > ?
`

type LivePairingCode struct {
	AgentID string
	Code    string
}

func (q *Queries) ListLivePairingCodes(ctx context.Context, now int64) ([]LivePairingCode, error) {
	rows, err := q.db.QueryContext(ctx, listLivePairingCodes, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []LivePairingCode
	for rows.Next() {
		var c LivePairingCode
		if err := rows.Scan(&c.AgentID, &c.Code); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

const setPairingCode = `
UPDATE agents SET pairing_code = ?, pairing_code_expires_at = ?, updated_at = unixepoch()
WHERE id = ?
`

type SetPairingCodeParams struct {
	AgentID   string
	Code      string
	ExpiresAt int64
}

func (q *Queries) SetPairingCode(ctx context.Context, arg SetPairingCodeParams) error {
	_, err := q.db.ExecContext(ctx, setPairingCode, arg.Code, arg.ExpiresAt, arg.AgentID)
	return err
}

const clearPairingCode = `
UPDATE agents SET pairing_code = NULL, pairing_code_expires_at = NULL, updated_at = unixepoch()
WHERE id = ?
`

func (q *Queries) ClearPairingCode(ctx context.Context, agentID string) error {
	_, err := q.db.ExecContext(ctx, clearPairingCode, agentID)
	return err
}

const updateAgentStatus = `
UPDATE agents SET status = ?, updated_at = unixepoch() WHERE id = ?
`

type UpdateAgentStatusParams struct {
	AgentID string
	Status  string
}

func (q *Queries) UpdateAgentStatus(ctx context.Context, arg UpdateAgentStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateAgentStatus, arg.Status, arg.AgentID)
	return err
}

const updateAgentWallet = `
UPDATE agents SET wallet_address = ?, wallet_index = ?, updated_at = unixepoch() WHERE id = ?
`

type UpdateAgentWalletParams struct {
	AgentID       string
	WalletAddress sql.NullString
	WalletIndex   sql.NullInt64
}

func (q *Queries) UpdateAgentWallet(ctx context.Context, arg UpdateAgentWalletParams) error {
	_, err := q.db.ExecContext(ctx, updateAgentWallet, arg.WalletAddress, arg.WalletIndex, arg.AgentID)
	return err
}

const bindingColumns = `id, channel_type, sender_id, agent_id, binding_type, bot_id, active,
	paired_at, last_message_at, created_at`

func scanBinding(row *sql.Row) (ChannelBinding, error) {
	var b ChannelBinding
	err := row.Scan(&b.ID, &b.ChannelType, &b.SenderID, &b.AgentID, &b.BindingType,
		&b.BotID, &b.Active, &b.PairedAt, &b.LastMessageAt, &b.CreatedAt)
	return b, err
}

const getActiveBinding = `
SELECT ` + bindingColumns + ` FROM channel_bindings
WHERE channel_type = ? AND sender_id = ? AND active = 1
`

type GetActiveBindingParams struct {
	ChannelType string
	SenderID    string
}

func (q *Queries) GetActiveBinding(ctx context.Context, arg GetActiveBindingParams) (ChannelBinding, error) {
	return scanBinding(q.db.QueryRowContext(ctx, getActiveBinding, arg.ChannelType, arg.SenderID))
}

const getBinding = `SELECT ` + bindingColumns + ` FROM channel_bindings WHERE id = ?`

func (q *Queries) GetBinding(ctx context.Context, id string) (ChannelBinding, error) {
	return scanBinding(q.db.QueryRowContext(ctx, getBinding, id))
}

const deactivateBinding = `UPDATE channel_bindings SET active = 0 WHERE id = ?`

func (q *Queries) DeactivateBinding(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deactivateBinding, id)
	return err
}

const touchBinding = `UPDATE channel_bindings SET last_message_at = ? WHERE id = ?`

func (q *Queries) TouchBinding(ctx context.Context, id string, at int64) error {
	_, err := q.db.ExecContext(ctx, touchBinding, at, id)
	return err
}

const appendSessionMessage = `
INSERT INTO session_messages (binding_id, role, content, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, binding_id, role, content, created_at
`

type AppendSessionMessageParams struct {
	BindingID string
	Role      string
	Content   string
}

func (q *Queries) AppendSessionMessage(ctx context.Context, arg AppendSessionMessageParams) (SessionMessage, error) {
	var m SessionMessage
	err := q.db.QueryRowContext(ctx, appendSessionMessage,
		arg.BindingID, arg.Role, arg.Content, time.Now().Unix()).
		Scan(&m.ID, &m.BindingID, &m.Role, &m.Content, &m.CreatedAt)
	return m, err
}

const getRecentSessionMessages = `
SELECT id, binding_id, role, content, created_at FROM (
	SELECT id, binding_id, role, content, created_at
	FROM session_messages
	WHERE binding_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?
) ORDER BY created_at ASC, id ASC
`

type GetRecentSessionMessagesParams struct {
	BindingID string
	Limit     int64
}

// GetRecentSessionMessages returns the newest Limit messages for a binding in
// chronological order.
func (q *Queries) GetRecentSessionMessages(ctx context.Context, arg GetRecentSessionMessagesParams) ([]SessionMessage, error) {
	rows, err := q.db.QueryContext(ctx, getRecentSessionMessages, arg.BindingID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []SessionMessage
	for rows.Next() {
		var m SessionMessage
		if err := rows.Scan(&m.ID, &m.BindingID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

const pruneSessionMessages = `DELETE FROM session_messages WHERE created_at < ?`

// PruneSessionMessages deletes messages older than the cutoff and returns the
// number removed.
func (q *Queries) PruneSessionMessages(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, pruneSessionMessages, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const cronJobColumns = `id, agent_id, name, schedule_kind, cron_expr, interval_seconds,
	run_at, message, enabled, last_run_at, run_count, last_error, created_at`

func scanCronJob(rows interface{ Scan(...any) error }) (CronJob, error) {
	var j CronJob
	err := rows.Scan(&j.ID, &j.AgentID, &j.Name, &j.ScheduleKind, &j.CronExpr,
		&j.IntervalSeconds, &j.RunAt, &j.Message, &j.Enabled, &j.LastRunAt,
		&j.RunCount, &j.LastError, &j.CreatedAt)
	return j, err
}

const createCronJob = `
INSERT INTO cron_jobs (id, agent_id, name, schedule_kind, cron_expr, interval_seconds,
	run_at, message, enabled, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + cronJobColumns

type CreateCronJobParams struct {
	ID              string
	AgentID         string
	Name            string
	ScheduleKind    string
	CronExpr        sql.NullString
	IntervalSeconds sql.NullInt64
	RunAt           sql.NullInt64
	Message         string
	Enabled         bool
}

func (q *Queries) CreateCronJob(ctx context.Context, arg CreateCronJobParams) (CronJob, error) {
	row := q.db.QueryRowContext(ctx, createCronJob, arg.ID, arg.AgentID, arg.Name,
		arg.ScheduleKind, arg.CronExpr, arg.IntervalSeconds, arg.RunAt,
		arg.Message, arg.Enabled, time.Now().Unix())
	return scanCronJob(row)
}

const getCronJob = `SELECT ` + cronJobColumns + ` FROM cron_jobs WHERE id = ?`

func (q *Queries) GetCronJob(ctx context.Context, id string) (CronJob, error) {
	return scanCronJob(q.db.QueryRowContext(ctx, getCronJob, id))
}

const listEnabledCronJobs = `
SELECT ` + cronJobColumns + ` FROM cron_jobs WHERE enabled = 1 ORDER BY created_at
`

func (q *Queries) ListEnabledCronJobs(ctx context.Context) ([]CronJob, error) {
	rows, err := q.db.QueryContext(ctx, listEnabledCronJobs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []CronJob
	for rows.Next() {
		j, err := scanCronJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

const markCronJobRun = `
UPDATE cron_jobs SET last_run_at = ?, run_count = run_count + 1, last_error = ?
WHERE id = ?
`

type MarkCronJobRunParams struct {
	ID        string
	RunAt     int64
	LastError sql.NullString
}

func (q *Queries) MarkCronJobRun(ctx context.Context, arg MarkCronJobRunParams) error {
	_, err := q.db.ExecContext(ctx, markCronJobRun, arg.RunAt, arg.LastError, arg.ID)
	return err
}

const setCronJobEnabled = `UPDATE cron_jobs SET enabled = ? WHERE id = ?`

type SetCronJobEnabledParams struct {
	ID      string
	Enabled bool
}

func (q *Queries) SetCronJobEnabled(ctx context.Context, arg SetCronJobEnabledParams) error {
	_, err := q.db.ExecContext(ctx, setCronJobEnabled, arg.Enabled, arg.ID)
	return err
}

const appendActivity = `
INSERT INTO activity_log (agent_id, kind, detail, created_at) VALUES (?, ?, ?, ?)
`

type AppendActivityParams struct {
	AgentID string
	Kind    string
	Detail  string
}

func (q *Queries) AppendActivity(ctx context.Context, arg AppendActivityParams) error {
	_, err := q.db.ExecContext(ctx, appendActivity, arg.AgentID, arg.Kind, arg.Detail, time.Now().Unix())
	return err
}

const listActivity = `
SELECT id, agent_id, kind, detail, created_at FROM activity_log
WHERE agent_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
`

func (q *Queries) ListActivity(ctx context.Context, agentID string, limit int64) ([]ActivityEntry, error) {
	rows, err := q.db.QueryContext(ctx, listActivity, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
