package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/chainadapter"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/resolve"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// fakeOracle satisfies oracleadapter.Oracle; activities that only need the
// resolver's or engine's own behaviour (not the oracle itself) get zero
// values back.
type fakeOracle struct {
	probeErr error
	layout   domain.StorageLayout
	abi      domain.Abi
	ast      domain.ContractAst
}

func (f *fakeOracle) Probe(_ context.Context) error             { return f.probeErr }
func (f *fakeOracle) Build(_ context.Context, _ string) error    { return nil }
func (f *fakeOracle) FetchStorageLayout(_ context.Context, _, _, _ string) (domain.StorageLayout, error) {
	return f.layout, nil
}
func (f *fakeOracle) FetchABI(_ context.Context, _, _, _ string) (domain.Abi, error) {
	return f.abi, nil
}
func (f *fakeOracle) FetchAST(_ context.Context, _, _, _ string) (domain.ContractAst, error) {
	return f.ast, nil
}

func newSimulatedAdapter(t *testing.T, alloc types.GenesisAlloc) *chainadapter.Adapter {
	t.Helper()
	backend := simulated.NewBackend(alloc)
	t.Cleanup(backend.Close)
	return chainadapter.NewFromClient(backend.Client(), testLogger())
}

func addressToHash(a common.Address) common.Hash {
	var h common.Hash
	copy(h[12:], a[:])
	return h
}

var implSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")

func TestProbeActivity(t *testing.T) {
	Configure(&Deps{Oracle: &fakeOracle{}, Logger: testLogger()})
	assert.NoError(t, ProbeActivity(context.Background()))

	Configure(&Deps{Oracle: &fakeOracle{probeErr: errors.New("forge missing")}, Logger: testLogger()})
	assert.Error(t, ProbeActivity(context.Background()))
}

func TestClassifyActivity_ZeroImplementation(t *testing.T) {
	proxyAddr := domain.AddressFromSlice(common.HexToAddress("0xaaaa000000000000000000000000000000000a").Bytes())
	chain := newSimulatedAdapter(t, types.GenesisAlloc{})
	Configure(&Deps{Chain: chain, Oracle: &fakeOracle{}, Logger: testLogger()})

	result, err := ClassifyActivity(context.Background(), proxyAddr)

	require.NoError(t, err)
	assert.Nil(t, result.ProxyInfo)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome.Status)
	require.Len(t, result.Outcome.Findings, 1)
	assert.Equal(t, "PROXY-002", result.Outcome.Findings[0].Code)
}

func TestClassifyActivity_UUPS(t *testing.T) {
	implAddr := common.HexToAddress("0xbbbb000000000000000000000000000000000b")
	proxyAddr := domain.AddressFromSlice(common.HexToAddress("0xaaaa000000000000000000000000000000000a").Bytes())
	uupsSelector := []byte{0x52, 0xd1, 0x90, 0x2d}
	alloc := types.GenesisAlloc{
		common.Address(proxyAddr): {Storage: map[common.Hash]common.Hash{implSlot: addressToHash(implAddr)}},
		implAddr:                  {Code: append([]byte{0x60, 0x80, 0x60, 0x40}, uupsSelector...)},
	}
	chain := newSimulatedAdapter(t, alloc)
	Configure(&Deps{Chain: chain, Oracle: &fakeOracle{}, Logger: testLogger()})

	result, err := ClassifyActivity(context.Background(), proxyAddr)

	require.NoError(t, err)
	require.NotNil(t, result.ProxyInfo)
	assert.Equal(t, domain.ProxyUUPS, result.ProxyInfo.Kind)
}

func TestResolveActivity(t *testing.T) {
	oldPath := writeContractFile(t, "old.sol")
	newPath := writeContractFile(t, "new.sol")
	layout := domain.StorageLayout{{Slot: 0, Label: "owner"}}
	Configure(&Deps{Oracle: &fakeOracle{layout: layout}, Logger: testLogger()})

	resolved, err := ResolveActivity(context.Background(), resolve.Input{OldPath: oldPath, NewPath: newPath})

	require.NoError(t, err)
	assert.Equal(t, layout, resolved.Old.Layout)
	assert.Equal(t, layout, resolved.New.Layout)
}

func writeContractFile(t *testing.T, name string) string {
	t.Helper()
	path := t.TempDir() + "/" + name
	require.NoError(t, os.WriteFile(path, []byte("contract C {}\n"), 0644))
	return path
}

func TestStorageLayoutActivity(t *testing.T) {
	resolved := domain.Resolved{
		Old: domain.Side{Layout: domain.StorageLayout{{Slot: 0, Label: "owner"}}},
		New: domain.Side{Layout: domain.StorageLayout{}},
	}

	outcome, err := StorageLayoutActivity(context.Background(), resolved)

	require.NoError(t, err)
	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-001", outcome.Findings[0].Code)
}

func TestABIDiffActivity(t *testing.T) {
	resolved := domain.Resolved{
		Old: domain.Side{ABI: domain.Abi{}},
		New: domain.Side{ABI: domain.Abi{Functions: []domain.FunctionSig{{Selector: domain.Selector{1, 2, 3, 4}, Name: "mint"}}}},
	}

	outcome, err := ABIDiffActivity(context.Background(), resolved)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, outcome.Status)
}

func TestUpgradeAuthActivity_UUPS(t *testing.T) {
	resolved := domain.Resolved{New: domain.Side{AST: domain.ContractAst{
		Functions: []domain.FunctionDecl{{Name: "_authorizeUpgrade", HasBody: true, BodyStatementCount: 1, Modifiers: []string{"onlyOwner"}}},
	}}}

	outcome, err := UpgradeAuthActivity(context.Background(), domain.ProxyUUPS, domain.ProxyInfo{}, resolved)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, outcome.Status)
}

func TestUpgradeAuthActivity_UnknownKind(t *testing.T) {
	_, err := UpgradeAuthActivity(context.Background(), domain.ProxyKind("bogus"), domain.ProxyInfo{}, domain.Resolved{})

	require.Error(t, err)
}

func TestInitializerActivity(t *testing.T) {
	resolved := domain.Resolved{New: domain.Side{AST: domain.ContractAst{
		Functions: []domain.FunctionDecl{
			{Kind: domain.FunctionConstructor, HasBody: true, BodyCalls: map[string]bool{"_disableInitializers": true}},
			{Name: "initialize", Modifiers: []string{"initializer"}, HasBody: true},
		},
	}}}

	outcome, err := InitializerActivity(context.Background(), resolved)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, outcome.Status)
}

func TestAccessControlActivity(t *testing.T) {
	resolved := domain.Resolved{
		Old: domain.Side{AST: domain.ContractAst{}},
		New: domain.Side{AST: domain.ContractAst{}},
	}

	outcome, err := AccessControlActivity(context.Background(), resolved)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, outcome.Status)
}

func TestAggregateActivity(t *testing.T) {
	outcomes := map[domain.AnalyzerName]domain.AnalyzerOutcome{
		domain.AnalyzerProxyDetection: domain.Completed(nil),
	}

	result, err := AggregateActivity(context.Background(), AggregateRequest{Outcomes: outcomes, Gated: true})

	require.NoError(t, err)
	assert.Equal(t, domain.VerdictIncomplete, result.Verdict)
}
