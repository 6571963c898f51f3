package tokens

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes one known ERC-20 on the target chain
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// known maps uppercase symbols to Celo mainnet tokens
var known = map[string]Token{
	"CUSD":  {Symbol: "cUSD", Address: common.HexToAddress("0x765DE816845861e75A25fCA122bb6898B8B1282a"), Decimals: 18},
	"CEUR":  {Symbol: "cEUR", Address: common.HexToAddress("0xD8763CBa276a3738E6DE85b4b3bF5FDed6D6cA73"), Decimals: 18},
	"CREAL": {Symbol: "cREAL", Address: common.HexToAddress("0xe8537a3d056DA446677B9E9d6c5dB704EaAb4787"), Decimals: 18},
	"USDC":  {Symbol: "USDC", Address: common.HexToAddress("0xcebA9300f2b948710d2653dD7B07f33A8B32118C"), Decimals: 6},
	"USDT":  {Symbol: "USDT", Address: common.HexToAddress("0x48065fbBE25f71C9282ddf5e1cD6D6A887483D5e"), Decimals: 6},
}

// BySymbol looks a token up case-insensitively
func BySymbol(symbol string) (Token, bool) {
	t, ok := known[strings.ToUpper(strings.TrimSpace(symbol))]
	return t, ok
}

// Symbols returns the known symbols for prompt documentation
func Symbols() []string {
	return []string{"cUSD", "cEUR", "cREAL", "USDC", "USDT"}
}

// ParseAmount converts a human decimal amount string into base units for the
// given decimals. Rejects non-numeric, non-finite, zero, and negative values.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a number", s)
	}
	if r.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %q", s)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	return r.Num(), nil
}
