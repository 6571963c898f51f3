package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/llm"
	"github.com/agentflow/agentflow/internal/skills"
	"github.com/agentflow/agentflow/internal/skills/selfclaw"
	"github.com/agentflow/agentflow/internal/tokens"
)

// transactionInstructions documents the exact financial tag syntax. Only
// injected when the caller may use the wallet.
const transactionInstructions = `TRANSACTION EXECUTION:
You control an on-chain wallet on Celo. To execute a transfer, include one of
these command tags verbatim in your reply:
- [[SEND_CELO|recipient_address|amount]] - send native CELO
- [[SEND_TOKEN|symbol|recipient_address|amount]] - send a known token (%s)
- [[SEND_RAW_TOKEN|token_address|recipient_address|amount]] - send any ERC-20 by contract address
Amounts are plain decimal numbers (e.g. 2 or 0.5). Gas fees are abstracted:
they are paid from the same wallet automatically, so never add a fee to the
amount. The tag text must appear EXACTLY as specified for execution to occur.
Never claim a transaction happened without including its tag; never invent
transaction hashes or receipts. The tag is replaced with the real receipt
after execution.`

// walletReadOnlyInstructions replaces the transaction block when the caller
// is not authorized to move funds.
const walletReadOnlyInstructions = `TRANSACTIONS DISABLED:
This conversation is not authorized to execute transactions. Do NOT emit
SEND_CELO, SEND_TOKEN, or SEND_RAW_TOKEN command tags. If the user asks for a
transfer, describe the transaction details (recipient, token, amount) so they
can sign and submit it themselves from their own wallet.`

// noWalletInstructions is used before a wallet exists at all.
const noWalletInstructions = `NO WALLET:
This agent has no wallet yet. No transactions of any kind are possible until
a wallet is initialized from the dashboard.`

// skillDocs maps each skill tag to its one-line usage description.
var skillDocs = map[string]string{
	"AGENT_INFO":      "[[AGENT_INFO]] - show your own name, template, and status",
	"WALLET_ADDRESS":  "[[WALLET_ADDRESS]] - show your wallet address",
	"WALLET_BALANCE":  "[[WALLET_BALANCE]] - check your CELO balance",
	"PRICE":           "[[PRICE|symbol]] - current price of a tracked symbol",
	"PRICE_HISTORY":   "[[PRICE_HISTORY|symbol]] - recent price history of a tracked symbol",
	"SELFCLAW_SCORE":  "[[SELFCLAW_SCORE]] - your SelfClaw reputation score",
	"SELFCLAW_TIP":    "[[SELFCLAW_TIP|handle|amount]] - tip another agent SCLAW points",
}

// Composer builds the system prompt and message list for one turn.
type Composer struct {
	registry *skills.Registry
}

// NewComposer creates a composer over the skill registry.
func NewComposer(registry *skills.Registry) *Composer {
	return &Composer{registry: registry}
}

// Compose assembles the full message list: system prompt (base + wallet
// block + capability block), the turn history, then the new user message.
// Output is deterministic for identical inputs.
func (c *Composer) Compose(agent *db.Agent, history []db.SessionMessage, userMessage string, canUseWallet bool) []llm.Message {
	blocks := []string{strings.TrimSpace(agent.SystemPrompt)}

	switch {
	case !agent.WalletAddress.Valid:
		blocks = append(blocks, noWalletInstructions)
	case canUseWallet:
		blocks = append(blocks, fmt.Sprintf(transactionInstructions, strings.Join(tokens.Symbols(), ", ")))
	default:
		blocks = append(blocks, walletReadOnlyInstructions)
	}

	if skillBlock := c.skillBlock(agent.TemplateKind, canUseWallet && agent.WalletAddress.Valid); skillBlock != "" {
		blocks = append(blocks, skillBlock)
	}

	if agent.TemplateKind == skills.TemplateEconomy {
		blocks = append(blocks, selfclaw.CommandTagDocs())
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: strings.Join(blocks, "\n\n")}}
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == db.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
}

// skillBlock documents the skills available to this template. Wallet skills
// are stripped when the caller cannot use the wallet.
func (c *Composer) skillBlock(templateKind string, withWallet bool) string {
	tags := c.registry.Available(templateKind, withWallet)
	if len(tags) == 0 {
		return ""
	}
	sort.Strings(tags)

	var sb strings.Builder
	sb.WriteString("AVAILABLE SKILLS:\nYou can use these command tags in your replies; each is replaced with its live result:")
	for _, tag := range tags {
		doc, ok := skillDocs[tag]
		if !ok {
			doc = fmt.Sprintf("[[%s]]", tag)
		}
		sb.WriteString("\n- ")
		sb.WriteString(doc)
	}
	return sb.String()
}
