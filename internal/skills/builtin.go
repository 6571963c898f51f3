package skills

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Agent template kinds
const (
	TemplateGeneral = "general"
	TemplateTrader  = "trader"
	TemplateEconomy = "economy"
)

// celoWeiPerUnit converts wei balances for display
var celoWeiPerUnit = new(big.Float).SetFloat64(1e18)

// NewBuiltinRegistry registers the standard skill set.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()

	r.Register("AGENT_INFO", nil, false, agentInfo)
	r.Register("WALLET_ADDRESS", nil, true, walletAddress)
	r.Register("WALLET_BALANCE", nil, true, walletBalance)
	r.Register("PRICE", []string{TemplateTrader, TemplateEconomy}, false, priceLookup)
	r.Register("PRICE_HISTORY", []string{TemplateTrader}, false, priceHistory)
	r.Register("SELFCLAW_SCORE", []string{TemplateEconomy}, false, selfclawScore)
	r.Register("SELFCLAW_TIP", []string{TemplateEconomy}, false, selfclawTip)

	return r
}

func agentInfo(ec *ExecContext, _ Invocation) (string, error) {
	return fmt.Sprintf("Agent %s (template: %s, status: %s)",
		ec.Agent.Name, ec.Agent.TemplateKind, ec.Agent.Status), nil
}

func walletAddress(ec *ExecContext, _ Invocation) (string, error) {
	if ec.Wallet == nil {
		return "Wallet access is not authorized in this conversation, so I can't share the wallet address here.", nil
	}
	addr, err := ec.Wallet.Address(ec.WalletIndex)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

func walletBalance(ec *ExecContext, _ Invocation) (string, error) {
	if ec.Wallet == nil {
		return "Wallet access is not authorized in this conversation, so I can't check the balance here.", nil
	}
	balance, err := ec.Wallet.Balance(ec.Ctx, ec.WalletIndex)
	if err != nil {
		return "", err
	}
	asCelo := new(big.Float).Quo(new(big.Float).SetInt(balance), celoWeiPerUnit)
	return fmt.Sprintf("%s CELO", asCelo.Text('f', 4)), nil
}

func priceLookup(ec *ExecContext, inv Invocation) (string, error) {
	if len(inv.Args) < 1 || strings.TrimSpace(inv.Args[0]) == "" {
		return "", fmt.Errorf("PRICE requires a symbol argument")
	}
	symbol := strings.ToUpper(strings.TrimSpace(inv.Args[0]))
	if ec.Prices == nil {
		return "", fmt.Errorf("price data not available")
	}
	point, err := ec.Prices.Latest(symbol)
	if err != nil {
		return "", err
	}
	if point == nil {
		return fmt.Sprintf("No price data for %s yet.", symbol), nil
	}
	return fmt.Sprintf("%s: $%.4f (as of %s)", symbol, point.Price, point.At.UTC().Format("15:04 UTC")), nil
}

func priceHistory(ec *ExecContext, inv Invocation) (string, error) {
	if len(inv.Args) < 1 || strings.TrimSpace(inv.Args[0]) == "" {
		return "", fmt.Errorf("PRICE_HISTORY requires a symbol argument")
	}
	symbol := strings.ToUpper(strings.TrimSpace(inv.Args[0]))
	if ec.Prices == nil {
		return "", fmt.Errorf("price data not available")
	}
	points, err := ec.Prices.History(symbol)
	if err != nil {
		return "", err
	}
	if len(points) == 0 {
		return fmt.Sprintf("No price history for %s yet.", symbol), nil
	}

	// Show at most the last 12 points to keep replies readable
	if len(points) > 12 {
		points = points[len(points)-12:]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s price history:", symbol)
	for _, p := range points {
		fmt.Fprintf(&sb, "\n  %s  $%.4f", p.At.UTC().Format("01-02 15:04"), p.Price)
	}
	return sb.String(), nil
}

func selfclawScore(ec *ExecContext, _ Invocation) (string, error) {
	if !ec.SelfClaw.Enabled() {
		return "", fmt.Errorf("SelfClaw is not configured")
	}
	score, err := ec.SelfClaw.Score(ec.Ctx, ec.Agent.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SelfClaw reputation: %.1f (rank #%d, %.1f SCLAW earned from tips)",
		score.Reputation, score.Rank, score.TipsEarned), nil
}

func selfclawTip(ec *ExecContext, inv Invocation) (string, error) {
	if !ec.SelfClaw.Enabled() {
		return "", fmt.Errorf("SelfClaw is not configured")
	}
	if len(inv.Args) < 2 {
		return "", fmt.Errorf("SELFCLAW_TIP requires handle and amount arguments")
	}
	handle := strings.TrimSpace(inv.Args[0])
	amount, err := strconv.ParseFloat(strings.TrimSpace(inv.Args[1]), 64)
	if err != nil || amount <= 0 {
		return "", fmt.Errorf("tip amount must be a positive number, got %q", inv.Args[1])
	}

	receipt, err := ec.SelfClaw.Tip(ec.Ctx, ec.Agent.ID, handle, amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Tipped %.1f SCLAW to %s (tip %s, %s)", receipt.Amount, receipt.To, receipt.ID, receipt.Status), nil
}
