package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/agentflow/agentflow/internal/config"
	"github.com/agentflow/agentflow/internal/logging"
)

const (
	nativeTransferGas = uint64(21000)
	tokenTransferGas  = uint64(120000)
	// confirmTimeout bounds the on-chain receipt wait
	confirmTimeout      = 30 * time.Second
	receiptPollInterval = 2 * time.Second
)

// ErrConfirmTimeout is the distinct failure class for a transaction that was
// broadcast but not mined within the wait budget.
var ErrConfirmTimeout = errors.New("wallet: transaction confirmation timed out")

// transferSelector is the 4-byte selector of transfer(address,uint256)
var transferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// backend is the subset of ethclient.Client the service needs; tests swap in
// a fake.
type backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Service derives per-agent keys from the master seed and executes
// transfers against the chain RPC.
type Service struct {
	client      backend
	chainID     *big.Int
	masterSeed  []byte
	explorerURL string
}

// New dials the chain RPC and returns a ready service.
func New(ctx context.Context, cfg config.ChainConfig) (*Service, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("wallet: chain rpc_url not configured")
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(cfg.MasterSeed, "0x"))
	if err != nil || len(seed) < 16 {
		return nil, errors.New("wallet: master_seed must be at least 16 hex-encoded bytes")
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("wallet: dial chain rpc: %w", err)
	}

	return &Service{
		client:      client,
		chainID:     big.NewInt(cfg.ChainID),
		masterSeed:  seed,
		explorerURL: strings.TrimRight(cfg.ExplorerURL, "/"),
	}, nil
}

// newWithBackend is the test constructor.
func newWithBackend(client backend, chainID int64, seed []byte, explorerURL string) *Service {
	return &Service{
		client:      client,
		chainID:     big.NewInt(chainID),
		masterSeed:  seed,
		explorerURL: strings.TrimRight(explorerURL, "/"),
	}
}

// deriveKey produces the private key for a wallet derivation index. The key
// is keccak256(seed || index), which keeps one master secret while giving
// every agent an isolated account.
func (s *Service) deriveKey(index int64) (*ecdsa.PrivateKey, error) {
	buf := make([]byte, len(s.masterSeed)+8)
	copy(buf, s.masterSeed)
	binary.BigEndian.PutUint64(buf[len(s.masterSeed):], uint64(index))
	key, err := crypto.ToECDSA(crypto.Keccak256(buf))
	if err != nil {
		return nil, fmt.Errorf("wallet: derive key for index %d: %w", index, err)
	}
	return key, nil
}

// Address returns the account address for a derivation index.
func (s *Service) Address(index int64) (common.Address, error) {
	key, err := s.deriveKey(index)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// Balance returns current native balance of the derived account.
func (s *Service) Balance(ctx context.Context, index int64) (*big.Int, error) {
	addr, err := s.Address(index)
	if err != nil {
		return nil, err
	}
	return s.client.BalanceAt(ctx, addr, nil)
}

// SendNative transfers native currency (CELO) from the derived account and
// waits for confirmation.
func (s *Service) SendNative(ctx context.Context, index int64, to common.Address, amountWei *big.Int) (common.Hash, error) {
	return s.send(ctx, index, to, amountWei, nil, nativeTransferGas)
}

// SendToken transfers an ERC-20 amount (base units) from the derived
// account and waits for confirmation.
func (s *Service) SendToken(ctx context.Context, index int64, token, to common.Address, amount *big.Int) (common.Hash, error) {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return s.send(ctx, index, token, big.NewInt(0), data, tokenTransferGas)
}

// ExplorerTxURL builds the block-explorer link for a transaction hash.
func (s *Service) ExplorerTxURL(hash common.Hash) string {
	if s.explorerURL == "" {
		return hash.Hex()
	}
	return s.explorerURL + "/tx/" + hash.Hex()
}

func (s *Service) send(ctx context.Context, index int64, to common.Address, value *big.Int, data []byte, gasLimit uint64) (common.Hash, error) {
	key, err := s.deriveKey(index)
	if err != nil {
		return common.Hash{}, err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := s.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: fetch nonce: %w", err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("wallet: broadcast transaction: %w", err)
	}

	hash := signed.Hash()
	logging.Infof("wallet: broadcast tx %s from index %d", hash.Hex(), index)

	receipt, err := s.waitMined(ctx, hash)
	if err != nil {
		return hash, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("wallet: transaction %s reverted", hash.Hex())
	}
	return hash, nil
}

// waitMined polls for the receipt until it appears or the confirmation
// budget runs out.
func (s *Service) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, ErrConfirmTimeout
		case <-ticker.C:
		}
	}
}
