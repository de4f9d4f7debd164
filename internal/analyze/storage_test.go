package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

func entry(slot uint64, offset uint8, length uint8, typ, label string) domain.StorageEntry {
	return domain.StorageEntry{Slot: slot, Offset: offset, LengthBytes: length, CanonicalType: typ, Label: label}
}

func TestStorageLayout_Unchanged(t *testing.T) {
	layout := domain.StorageLayout{
		entry(0, 0, 20, "address", "owner"),
		entry(1, 0, 32, "uint256", "total"),
	}

	outcome := StorageLayout(layout, layout)

	require.Equal(t, domain.OutcomeCompleted, outcome.Status)
	assert.Empty(t, outcome.Findings)
}

func TestStorageLayout_Deleted(t *testing.T) {
	old := domain.StorageLayout{entry(0, 0, 20, "address", "owner"), entry(1, 0, 32, "uint256", "total")}
	next := domain.StorageLayout{entry(0, 0, 20, "address", "owner")}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-001", outcome.Findings[0].Code)
	assert.Equal(t, domain.SeverityCritical, outcome.Findings[0].Severity)
}

func TestStorageLayout_WidthChanged(t *testing.T) {
	old := domain.StorageLayout{entry(0, 0, 16, "uint128", "balance")}
	next := domain.StorageLayout{entry(0, 0, 32, "uint256", "balance")}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-003", outcome.Findings[0].Code)
}

func TestStorageLayout_TypeChangedSameWidth(t *testing.T) {
	old := domain.StorageLayout{entry(0, 0, 20, "address", "target")}
	next := domain.StorageLayout{entry(0, 0, 20, "contract IERC20", "target")}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-004", outcome.Findings[0].Code)
}

func TestStorageLayout_Renamed(t *testing.T) {
	old := domain.StorageLayout{entry(0, 0, 32, "uint256", "balance")}
	next := domain.StorageLayout{entry(0, 0, 32, "uint256", "balanceOf")}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-010", outcome.Findings[0].Code)
	assert.Equal(t, domain.SeverityLow, outcome.Findings[0].Severity)
}

func TestStorageLayout_InsertedMidLayout(t *testing.T) {
	old := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
		entry(2, 0, 32, "uint256", "b"),
	}
	next := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
		entry(1, 0, 32, "uint256", "inserted"),
		entry(2, 0, 32, "uint256", "b"),
	}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-002", outcome.Findings[0].Code)
}

func TestStorageLayout_Appended(t *testing.T) {
	old := domain.StorageLayout{entry(0, 0, 32, "uint256", "a")}
	next := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
		entry(1, 0, 32, "uint256", "b"),
		entry(2, 0, 32, "uint256", "c"),
	}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-009", outcome.Findings[0].Code)
	assert.Equal(t, domain.SeverityMedium, outcome.Findings[0].Severity)
	assert.ElementsMatch(t, []string{"b", "c"}, outcome.Findings[0].Details["labels"])
}

func TestStorageLayout_GapRemoved(t *testing.T) {
	old := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
		entry(1, 0, 32, "uint256[50]", "__gap"),
	}
	next := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
	}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-008", outcome.Findings[0].Code)
	assert.Equal(t, domain.SeverityHigh, outcome.Findings[0].Severity)
}

func TestStorageLayout_GapInsufficient(t *testing.T) {
	old := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
		entry(1, 0, 32, "uint256[50]", "__gap"),
	}
	next := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
		entry(1, 0, 32, "uint256[48]", "__gap"),
		entry(49, 0, 32, "uint256", "b"),
	}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 2)
	assert.Equal(t, "STOR-009", outcome.Findings[0].Code)
	assert.Equal(t, "STOR-007", outcome.Findings[1].Code)
	assert.Equal(t, 1, outcome.Findings[1].Details["shortfall"])
}

func TestStorageLayout_GapSufficientWithAppend(t *testing.T) {
	old := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
		entry(1, 0, 32, "uint256[50]", "__gap"),
	}
	next := domain.StorageLayout{
		entry(0, 0, 32, "uint256", "a"),
		entry(1, 0, 32, "uint256[49]", "__gap"),
		entry(50, 0, 32, "uint256", "b"),
	}

	outcome := StorageLayout(old, next)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "STOR-009", outcome.Findings[0].Code)
}

func TestStorageLayout_DeletionSuppressedByReappearance(t *testing.T) {
	old := domain.StorageLayout{entry(0, 0, 32, "uint256", "counter")}
	next := domain.StorageLayout{
		entry(1, 0, 32, "uint256", "counter"),
	}

	outcome := StorageLayout(old, next)

	var codes []string
	for _, f := range outcome.Findings {
		codes = append(codes, f.Code)
	}
	assert.NotContains(t, codes, "STOR-001")
	assert.Contains(t, codes, "STOR-009")
}
