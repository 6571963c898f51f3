package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store wraps the database connection and its query set
type Store struct {
	*Queries
	db *sql.DB
}

// NewStore creates a Store from an open database connection
func NewStore(db *sql.DB) *Store {
	return &Store{Queries: New(db), db: db}
}

// DB returns the underlying connection for sharing with other components
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection
func (s *Store) Close() error {
	return s.db.Close()
}

// RebindSenderParams describes an atomic rebind of a (channel, sender) pair.
type RebindSenderParams struct {
	ChannelType string
	SenderID    string
	AgentID     string
	BindingType string
	BotID       string
}

// RebindSender deactivates any active binding for the (channel, sender) pair
// and creates a new active one, in a single transaction. The partial unique
// index on (channel_type, sender_id) WHERE active=1 makes a lost-update race
// fail loudly instead of leaving two rows active.
func (s *Store) RebindSender(ctx context.Context, arg RebindSenderParams) (ChannelBinding, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ChannelBinding{}, fmt.Errorf("begin rebind: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx,
		`UPDATE channel_bindings SET active = 0 WHERE channel_type = ? AND sender_id = ? AND active = 1`,
		arg.ChannelType, arg.SenderID,
	); err != nil {
		return ChannelBinding{}, fmt.Errorf("deactivate prior binding: %w", err)
	}

	binding := ChannelBinding{
		ID:          uuid.New().String(),
		ChannelType: arg.ChannelType,
		SenderID:    arg.SenderID,
		AgentID:     arg.AgentID,
		BindingType: arg.BindingType,
		BotID:       sql.NullString{String: arg.BotID, Valid: arg.BotID != ""},
		Active:      true,
		PairedAt:    now,
		CreatedAt:   now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO channel_bindings (id, channel_type, sender_id, agent_id, binding_type, bot_id, active, paired_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		binding.ID, binding.ChannelType, binding.SenderID, binding.AgentID, binding.BindingType, binding.BotID, binding.PairedAt, binding.CreatedAt,
	); err != nil {
		return ChannelBinding{}, fmt.Errorf("create binding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ChannelBinding{}, fmt.Errorf("commit rebind: %w", err)
	}
	return binding, nil
}
