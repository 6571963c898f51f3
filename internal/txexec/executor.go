package txexec

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/skills"
	"github.com/agentflow/agentflow/internal/tokens"
)

// Financial command tags
const (
	TagSendCelo     = "SEND_CELO"
	TagSendToken    = "SEND_TOKEN"
	TagSendRawToken = "SEND_RAW_TOKEN"
)

const nativeDecimals = 18

// DefaultAuthRequiredMessage replaces financial tags when the caller has no
// wallet authority.
const DefaultAuthRequiredMessage = "(Transaction not executed: wallet authorization required. Connect through an authorized channel to enable transfers.)"

// Transferer is the on-chain wallet collaborator.
type Transferer interface {
	SendNative(ctx context.Context, index int64, to common.Address, amountWei *big.Int) (common.Hash, error)
	SendToken(ctx context.Context, index int64, token, to common.Address, amount *big.Int) (common.Hash, error)
	ExplorerTxURL(hash common.Hash) string
}

// Result reports the processed text and how many transfers executed.
type Result struct {
	Text     string
	Executed int
}

// Executor scans skill-processed model output for financial tags and
// executes them.
type Executor struct {
	wallet Transferer
}

// New creates an executor over the wallet collaborator. A nil wallet means
// the chain is not configured; every financial tag then fails gracefully.
func New(wallet Transferer) *Executor {
	return &Executor{wallet: wallet}
}

// Process replaces every financial tag in text. walletIndex nil means the
// caller is unauthorized: tags are replaced with authRequiredMsg and nothing
// executes. Malformed tags become rejection notices. Each successful
// on-chain transfer increments the executed count.
func (e *Executor) Process(ctx context.Context, text string, walletIndex *int64, authRequiredMsg string) Result {
	if authRequiredMsg == "" {
		authRequiredMsg = DefaultAuthRequiredMessage
	}

	res := Result{}
	res.Text = skills.ReplaceTags(text, func(inv skills.Invocation) (string, bool) {
		switch inv.Tag {
		case TagSendCelo, TagSendToken, TagSendRawToken:
		default:
			return "", false
		}

		if walletIndex == nil {
			return authRequiredMsg, true
		}
		if e.wallet == nil {
			return "(Transaction not executed: no chain connection is configured.)", true
		}

		replacement, ok := e.execute(ctx, inv, *walletIndex)
		if ok {
			res.Executed++
		}
		return replacement, true
	})
	return res
}

// execute runs one validated transfer. The bool reports whether a transfer
// actually happened on chain.
func (e *Executor) execute(ctx context.Context, inv skills.Invocation, walletIndex int64) (string, bool) {
	switch inv.Tag {
	case TagSendCelo:
		if len(inv.Args) != 2 {
			return rejection("SEND_CELO expects recipient and amount"), false
		}
		to, amount, errText := validateTransfer(inv.Args[0], inv.Args[1], nativeDecimals)
		if errText != "" {
			return rejection(errText), false
		}
		hash, err := e.wallet.SendNative(ctx, walletIndex, to, amount)
		if err != nil {
			return failure("CELO", inv.Args[1], err), false
		}
		return receipt(inv.Args[1], "CELO", to, hash, e.wallet.ExplorerTxURL(hash)), true

	case TagSendToken:
		if len(inv.Args) != 3 {
			return rejection("SEND_TOKEN expects symbol, recipient, and amount"), false
		}
		token, ok := tokens.BySymbol(inv.Args[0])
		if !ok {
			return rejection(fmt.Sprintf("unknown token symbol %q (known: %s)",
				inv.Args[0], strings.Join(tokens.Symbols(), ", "))), false
		}
		to, amount, errText := validateTransfer(inv.Args[1], inv.Args[2], token.Decimals)
		if errText != "" {
			return rejection(errText), false
		}
		hash, err := e.wallet.SendToken(ctx, walletIndex, token.Address, to, amount)
		if err != nil {
			return failure(token.Symbol, inv.Args[2], err), false
		}
		return receipt(inv.Args[2], token.Symbol, to, hash, e.wallet.ExplorerTxURL(hash)), true

	case TagSendRawToken:
		if len(inv.Args) != 3 {
			return rejection("SEND_RAW_TOKEN expects token address, recipient, and amount"), false
		}
		if !common.IsHexAddress(strings.TrimSpace(inv.Args[0])) {
			return rejection(fmt.Sprintf("malformed token address %q", inv.Args[0])), false
		}
		tokenAddr := common.HexToAddress(strings.TrimSpace(inv.Args[0]))
		to, amount, errText := validateTransfer(inv.Args[1], inv.Args[2], nativeDecimals)
		if errText != "" {
			return rejection(errText), false
		}
		hash, err := e.wallet.SendToken(ctx, walletIndex, tokenAddr, to, amount)
		if err != nil {
			return failure("token", inv.Args[2], err), false
		}
		return receipt(inv.Args[2], "tokens", to, hash, e.wallet.ExplorerTxURL(hash)), true
	}
	return rejection("unsupported transfer tag"), false
}

// validateTransfer checks recipient and amount; returns a rejection reason
// when either is malformed.
func validateTransfer(toArg, amountArg string, decimals uint8) (common.Address, *big.Int, string) {
	toArg = strings.TrimSpace(toArg)
	if !common.IsHexAddress(toArg) {
		return common.Address{}, nil, fmt.Sprintf("malformed recipient address %q", toArg)
	}
	amount, err := tokens.ParseAmount(amountArg, decimals)
	if err != nil {
		return common.Address{}, nil, err.Error()
	}
	return common.HexToAddress(toArg), amount, ""
}

func rejection(reason string) string {
	return fmt.Sprintf("(Transaction rejected: %s.)", reason)
}

func failure(unit, amount string, err error) string {
	logging.Errorf("txexec: transfer of %s %s failed: %v", amount, unit, err)
	return fmt.Sprintf("(Transaction failed: could not send %s %s: %v.)", amount, unit, err)
}

func receipt(amount, unit string, to common.Address, hash common.Hash, explorerURL string) string {
	return fmt.Sprintf("Sent %s %s to %s. Transaction: %s (%s)",
		amount, unit, to.Hex(), hash.Hex(), explorerURL)
}
