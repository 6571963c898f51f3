package wallet

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/agentflow/agentflow/internal/config"
	"github.com/agentflow/agentflow/internal/logging"
)

var testSeed = bytes.Repeat([]byte{0xab}, 32)

var errNotFound = errors.New("not found")

// fakeBackend records broadcast transactions. When mineStatus is set, each
// broadcast gets a receipt with that status; otherwise receipts never appear.
type fakeBackend struct {
	nonce      uint64
	gasPrice   *big.Int
	balance    *big.Int
	mineStatus *uint64

	sent       []*types.Transaction
	balanceFor []common.Address
	receipts   map[common.Hash]*types.Receipt
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nonce:    7,
		gasPrice: big.NewInt(2_000_000_000),
		balance:  big.NewInt(1_000_000),
		receipts: map[common.Hash]*types.Receipt{},
	}
}

func (f *fakeBackend) mine(status uint64) { f.mineStatus = &status }

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	if f.mineStatus != nil {
		f.receipts[tx.Hash()] = &types.Receipt{Status: *f.mineStatus, TxHash: tx.Hash()}
	}
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if r, ok := f.receipts[txHash]; ok {
		return r, nil
	}
	return nil, errNotFound
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.balanceFor = append(f.balanceFor, account)
	return f.balance, nil
}

func newTestService(t *testing.T, backend *fakeBackend) *Service {
	t.Helper()
	logging.Disable()
	return newWithBackend(backend, 42220, testSeed, "https://celoscan.io/")
}

func TestAddressDerivationIsDeterministic(t *testing.T) {
	a := newTestService(t, newFakeBackend())
	b := newTestService(t, newFakeBackend())

	addrA, err := a.Address(3)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	addrB, err := b.Address(3)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if addrA != addrB {
		t.Fatalf("same seed and index gave %s and %s", addrA.Hex(), addrB.Hex())
	}
	if addrA == (common.Address{}) {
		t.Fatal("derived the zero address")
	}
}

func TestAddressesAreIsolatedPerIndex(t *testing.T) {
	s := newTestService(t, newFakeBackend())

	seen := map[common.Address]int64{}
	for index := int64(0); index < 5; index++ {
		addr, err := s.Address(index)
		if err != nil {
			t.Fatalf("Address(%d): %v", index, err)
		}
		if prior, ok := seen[addr]; ok {
			t.Fatalf("indexes %d and %d share address %s", prior, index, addr.Hex())
		}
		seen[addr] = index
	}

	other := newWithBackend(newFakeBackend(), 42220, bytes.Repeat([]byte{0xcd}, 32), "")
	addr, err := other.Address(0)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if _, clash := seen[addr]; clash {
		t.Fatalf("different seed reproduced address %s", addr.Hex())
	}
}

func TestSendNativeSuccess(t *testing.T) {
	backend := newFakeBackend()
	backend.mine(types.ReceiptStatusSuccessful)
	s := newTestService(t, backend)

	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	amount := big.NewInt(2_500_000)

	hash, err := s.SendNative(context.Background(), 1, to, amount)
	if err != nil {
		t.Fatalf("SendNative: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("broadcast %d transactions, want 1", len(backend.sent))
	}
	tx := backend.sent[0]
	if hash != tx.Hash() {
		t.Fatalf("returned hash %s, broadcast %s", hash.Hex(), tx.Hash().Hex())
	}
	if tx.Nonce() != backend.nonce {
		t.Fatalf("nonce = %d, want %d", tx.Nonce(), backend.nonce)
	}
	if *tx.To() != to {
		t.Fatalf("to = %s, want %s", tx.To().Hex(), to.Hex())
	}
	if tx.Value().Cmp(amount) != 0 {
		t.Fatalf("value = %s, want %s", tx.Value(), amount)
	}
	if len(tx.Data()) != 0 {
		t.Fatalf("native transfer carries calldata: %x", tx.Data())
	}
}

func TestSendTimesOutWithoutReceipt(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	hash, err := s.SendNative(ctx, 1, to, big.NewInt(1))
	if !errors.Is(err, ErrConfirmTimeout) {
		t.Fatalf("err = %v, want ErrConfirmTimeout", err)
	}
	// The hash is still returned so callers can report the broadcast tx.
	if hash == (common.Hash{}) {
		t.Fatal("timed-out send lost the transaction hash")
	}
	if len(backend.sent) != 1 {
		t.Fatalf("broadcast %d transactions, want 1", len(backend.sent))
	}
}

func TestRevertedTransactionIsAnError(t *testing.T) {
	backend := newFakeBackend()
	backend.mine(types.ReceiptStatusFailed)
	s := newTestService(t, backend)

	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	hash, err := s.SendNative(context.Background(), 1, to, big.NewInt(1))
	if err == nil {
		t.Fatal("expected revert error")
	}
	if errors.Is(err, ErrConfirmTimeout) {
		t.Fatalf("revert misreported as timeout: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Fatal("reverted send lost the transaction hash")
	}
}

func TestSendTokenEncodesTransferCall(t *testing.T) {
	backend := newFakeBackend()
	backend.mine(types.ReceiptStatusSuccessful)
	s := newTestService(t, backend)

	token := common.HexToAddress("0xcebA9300f2b948710d2653dD7B07f33A8B32118C")
	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	amount := big.NewInt(3_000_000)

	if _, err := s.SendToken(context.Background(), 2, token, to, amount); err != nil {
		t.Fatalf("SendToken: %v", err)
	}
	tx := backend.sent[0]
	if *tx.To() != token {
		t.Fatalf("to = %s, want token contract %s", tx.To().Hex(), token.Hex())
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("token transfer carries native value %s", tx.Value())
	}

	data := tx.Data()
	if len(data) != 4+32+32 {
		t.Fatalf("calldata length = %d, want 68", len(data))
	}
	if !bytes.Equal(data[:4], transferSelector) {
		t.Fatalf("selector = %x", data[:4])
	}
	if !bytes.Equal(data[4:36], common.LeftPadBytes(to.Bytes(), 32)) {
		t.Fatalf("recipient word = %x", data[4:36])
	}
	if !bytes.Equal(data[36:68], common.LeftPadBytes(amount.Bytes(), 32)) {
		t.Fatalf("amount word = %x", data[36:68])
	}
}

func TestBalanceReadsDerivedAccount(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)

	got, err := s.Balance(context.Background(), 4)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got.Cmp(backend.balance) != 0 {
		t.Fatalf("balance = %s, want %s", got, backend.balance)
	}
	addr, err := s.Address(4)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if len(backend.balanceFor) != 1 || backend.balanceFor[0] != addr {
		t.Fatalf("queried %v, want [%s]", backend.balanceFor, addr.Hex())
	}
}

func TestExplorerTxURL(t *testing.T) {
	s := newTestService(t, newFakeBackend())
	hash := common.HexToHash("0xdead")

	if got := s.ExplorerTxURL(hash); got != "https://celoscan.io/tx/"+hash.Hex() {
		t.Fatalf("url = %q", got)
	}
	bare := newWithBackend(newFakeBackend(), 42220, testSeed, "")
	if got := bare.ExplorerTxURL(hash); got != hash.Hex() {
		t.Fatalf("url without explorer = %q", got)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	logging.Disable()
	ctx := context.Background()

	if _, err := New(ctx, config.ChainConfig{MasterSeed: "abcd" /* no rpc url */}); err == nil {
		t.Fatal("expected error for missing rpc url")
	}
	if _, err := New(ctx, config.ChainConfig{RPCURL: "https://forno.celo.org", MasterSeed: "abcd"}); err == nil {
		t.Fatal("expected error for short seed")
	}
	if _, err := New(ctx, config.ChainConfig{RPCURL: "https://forno.celo.org", MasterSeed: "zz"}); err == nil {
		t.Fatal("expected error for non-hex seed")
	}
}
