package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

func guardedAuthorizeUpgrade() domain.FunctionDecl {
	return domain.FunctionDecl{
		Name:               authorizeUpgradeFn,
		HasBody:            true,
		BodyStatementCount: 1,
		Modifiers:          []string{"onlyOwner"},
	}
}

func TestUpgradeAuthUUPS_Missing(t *testing.T) {
	ast := domain.ContractAst{Name: "Impl"}

	outcome := UpgradeAuthUUPS(ast)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "UUPS-001", outcome.Findings[0].Code)
}

func TestUpgradeAuthUUPS_EmptyBody(t *testing.T) {
	ast := domain.ContractAst{Functions: []domain.FunctionDecl{{
		Name:    authorizeUpgradeFn,
		HasBody: true,
	}}}

	outcome := UpgradeAuthUUPS(ast)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "UUPS-002", outcome.Findings[0].Code)
}

func TestUpgradeAuthUUPS_NoAccessControlSignal(t *testing.T) {
	ast := domain.ContractAst{Functions: []domain.FunctionDecl{{
		Name:               authorizeUpgradeFn,
		HasBody:            true,
		BodyStatementCount: 1,
	}}}

	outcome := UpgradeAuthUUPS(ast)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "UUPS-003", outcome.Findings[0].Code)
}

func TestUpgradeAuthUUPS_Guarded(t *testing.T) {
	ast := domain.ContractAst{Functions: []domain.FunctionDecl{guardedAuthorizeUpgrade()}}

	outcome := UpgradeAuthUUPS(ast)

	assert.Empty(t, outcome.Findings)
}

func TestUpgradeAuthTransparent_ZeroAdmin(t *testing.T) {
	zero := domain.ZeroAddress
	info := domain.ProxyInfo{Kind: domain.ProxyTransparent, Admin: &zero}

	outcome := UpgradeAuthTransparent(info, domain.Abi{})

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "TPROXY-001", outcome.Findings[0].Code)
}

// upgradeToSelector is keccak256("upgradeTo(address)")[:4].
var upgradeToSelector = domain.Selector{0x36, 0x59, 0xcf, 0xe6}

// adminSelector is keccak256("admin()")[:4].
var adminSelector = domain.Selector{0xf8, 0x51, 0xa4, 0x40}

func withSelector(f domain.FunctionSig, s domain.Selector) domain.FunctionSig {
	f.Selector = s
	return f
}

func TestUpgradeAuthTransparent_UpgradeFunctionExposed(t *testing.T) {
	admin := domain.Address{1}
	info := domain.ProxyInfo{Kind: domain.ProxyTransparent, Admin: &admin}
	abi := domain.Abi{Functions: []domain.FunctionSig{
		withSelector(fn(1, "upgradeTo", []string{"address"}, nil), upgradeToSelector),
	}}

	outcome := UpgradeAuthTransparent(info, abi)

	var codes []string
	for _, f := range outcome.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, "TPROXY-002")
	assert.Contains(t, codes, "TPROXY-004")
}

func TestUpgradeAuthTransparent_SelectorCollisionUnderDifferentName(t *testing.T) {
	admin := domain.Address{1}
	info := domain.ProxyInfo{Kind: domain.ProxyTransparent, Admin: &admin}
	// A function named differently from "admin" but whose selector collides
	// with admin()'s must still be flagged.
	abi := domain.Abi{Functions: []domain.FunctionSig{
		withSelector(fn(1, "ownerAddress", nil, []string{"address"}), adminSelector),
	}}

	outcome := UpgradeAuthTransparent(info, abi)

	var codes []string
	for _, f := range outcome.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, "TPROXY-004")
}

func TestUpgradeAuthTransparent_SameNameDifferentSelectorNotFlagged(t *testing.T) {
	admin := domain.Address{1}
	info := domain.ProxyInfo{Kind: domain.ProxyTransparent, Admin: &admin}
	// admin(uint256) shares a name with the reserved admin() but has a
	// different selector, so it must not collide with the proxy's dispatch.
	abi := domain.Abi{Functions: []domain.FunctionSig{fn(2, "admin", []string{"uint256"}, nil)}}

	outcome := UpgradeAuthTransparent(info, abi)

	assert.Empty(t, outcome.Findings)
}

func TestUpgradeAuthTransparent_Clean(t *testing.T) {
	admin := domain.Address{1}
	info := domain.ProxyInfo{Kind: domain.ProxyTransparent, Admin: &admin}
	abi := domain.Abi{Functions: []domain.FunctionSig{fn(1, "mint", []string{"address", "uint256"}, nil)}}

	outcome := UpgradeAuthTransparent(info, abi)

	assert.Empty(t, outcome.Findings)
}
