package pairing

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/agentflow/agentflow/internal/db"
)

const (
	// CodePrefix starts every pairing code
	CodePrefix = "AF"
	// codeBodyLength is the number of random characters after the prefix
	codeBodyLength = 4
	// codeAlphabet excludes ambiguous glyphs (I, O, 0, 1)
	codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	// CodeTTL is how long a minted code stays valid
	CodeTTL = 24 * time.Hour
	// maxGenerateAttempts bounds collision retries
	maxGenerateAttempts = 8
)

var (
	// ErrGenerationExhausted is returned when every generation attempt
	// collided with another agent's live code
	ErrGenerationExhausted = errors.New("pairing: code generation exhausted after collisions")
	// ErrInvalidState is returned when the agent is not in active status
	ErrInvalidState = errors.New("pairing: agent is not active")
)

// extractRe finds a candidate code in free text: optional /pair prefix,
// optional space or hyphen between prefix and body, case-insensitive.
var extractRe = regexp.MustCompile(`(?i)(?:/pair[\s:]*)?\b(AF[\s-]?[0-9A-HJ-NP-Z]{4})\b`)

// Service mints, revokes, and resolves pairing codes.
type Service struct {
	store *db.Store
	now   func() time.Time
}

// NewService creates a pairing service backed by the store.
func NewService(store *db.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// GenerateCode mints a fresh code for the agent, retrying on collision
// against other agents' live codes. The prior code (if any) is overwritten
// and immediately invalid.
func (s *Service) GenerateCode(ctx context.Context, agentID string) (string, error) {
	live, err := s.store.ListLivePairingCodes(ctx, s.now().Unix())
	if err != nil {
		return "", fmt.Errorf("list live codes: %w", err)
	}
	taken := make(map[string]bool, len(live))
	for _, c := range live {
		if c.AgentID != agentID {
			taken[c.Code] = true
		}
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if taken[code] {
			continue
		}
		expires := s.now().Add(CodeTTL).Unix()
		if err := s.store.SetPairingCode(ctx, db.SetPairingCodeParams{
			AgentID:   agentID,
			Code:      code,
			ExpiresAt: expires,
		}); err != nil {
			return "", fmt.Errorf("store pairing code: %w", err)
		}
		return code, nil
	}
	return "", ErrGenerationExhausted
}

// GetOrCreate returns the agent's existing unexpired code, or mints a new
// one. The agent must be active.
func (s *Service) GetOrCreate(ctx context.Context, agentID string) (string, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("load agent: %w", err)
	}
	if agent.Status != db.AgentStatusActive {
		return "", ErrInvalidState
	}
	if agent.PairingCode.Valid && agent.PairingCodeExpiresAt.Valid &&
		agent.PairingCodeExpiresAt.Int64 > s.now().Unix() {
		return agent.PairingCode.String, nil
	}
	return s.GenerateCode(ctx, agentID)
}

// Revoke clears the agent's code unconditionally.
func (s *Service) Revoke(ctx context.Context, agentID string) error {
	return s.store.ClearPairingCode(ctx, agentID)
}

// Extract locates a candidate pairing code inside free text and returns it
// normalized (uppercase, separators stripped), or "" when none is present.
func Extract(text string) string {
	m := extractRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return Normalize(m[1])
}

// Normalize strips separators and uppercases a candidate code.
func Normalize(code string) string {
	code = strings.ToUpper(code)
	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "-", "")
	return code
}

// Resolve maps a code to its agent. Unknown, expired, or non-active agents
// resolve to nil; callers must treat that as "not found", not an error.
func (s *Service) Resolve(ctx context.Context, code string) (*db.Agent, error) {
	code = Normalize(code)
	if len(code) != len(CodePrefix)+codeBodyLength {
		return nil, nil
	}
	agent, err := s.store.GetAgentByPairingCode(ctx, code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup pairing code: %w", err)
	}
	if !agent.PairingCodeExpiresAt.Valid || agent.PairingCodeExpiresAt.Int64 <= s.now().Unix() {
		return nil, nil
	}
	if agent.Status != db.AgentStatusActive {
		return nil, nil
	}
	return &agent, nil
}

func randomCode() (string, error) {
	body := make([]byte, codeBodyLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range body {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate pairing code: %w", err)
		}
		body[i] = codeAlphabet[n.Int64()]
	}
	return CodePrefix + string(body), nil
}
