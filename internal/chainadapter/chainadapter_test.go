package chainadapter

// Integration test: exercises ReadStorageSlot/ReadCode against an in-process
// simulated EVM (go-ethereum's simulated backend), not a live RPC endpoint.

import (
	"context"
	"encoding/hex"
	"log/slog"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff8"

func TestAdapter_ReadCodeAndStorageSlot(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	balance, _ := new(big.Int).SetString("1000000000000000000000", 10)
	alloc := types.GenesisAlloc{from: {Balance: balance}}
	backend := simulated.NewBackend(alloc, simulated.WithBlockGasLimit(30_000_000))
	defer backend.Close()
	client := backend.Client()

	chainID, err := client.ChainID(context.Background())
	require.NoError(t, err)

	// Minimal init code: CODECOPY a single STOP byte and RETURN it as the
	// runtime bytecode, so the deployed address has non-empty code. There is
	// no Solidity toolchain available here to produce real bytecode.
	initCode, err := hex.DecodeString("6001600c60003960016000f300")
	require.NoError(t, err)

	nonce, err := client.PendingNonceAt(context.Background(), from)
	require.NoError(t, err)
	gasPrice, err := client.SuggestGasPrice(context.Background())
	require.NoError(t, err)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      1_000_000,
		To:       nil,
		Value:    big.NewInt(0),
		Data:     initCode,
	})
	signer := types.LatestSignerForChainID(chainID)
	signedTx, err := types.SignTx(tx, signer, key)
	require.NoError(t, err)

	require.NoError(t, client.SendTransaction(context.Background(), signedTx))
	backend.Commit()

	receipt, err := client.TransactionReceipt(context.Background(), signedTx.Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Status)

	adapter := NewFromClient(client, testLogger())
	contractAddr := domain.AddressFromSlice(receipt.ContractAddress[:])

	code, err := adapter.ReadCode(context.Background(), contractAddr)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, code)

	slotZero, err := adapter.ReadStorageSlot(context.Background(), contractAddr, domain.SlotKey{})
	require.NoError(t, err)
	assert.Equal(t, [32]byte{}, slotZero)
}

func TestAdapter_ReadCodeOfUndeployedAddressIsEmpty(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	balance, _ := new(big.Int).SetString("1000000000000000000000", 10)
	alloc := types.GenesisAlloc{from: {Balance: balance}}
	backend := simulated.NewBackend(alloc)
	defer backend.Close()

	adapter := NewFromClient(backend.Client(), testLogger())
	code, err := adapter.ReadCode(context.Background(), domain.Address{0x01})

	require.NoError(t, err)
	assert.Empty(t, code)
}
