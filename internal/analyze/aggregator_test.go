package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

func allCompletedExcept(name domain.AnalyzerName, outcome domain.AnalyzerOutcome) map[domain.AnalyzerName]domain.AnalyzerOutcome {
	m := map[domain.AnalyzerName]domain.AnalyzerOutcome{}
	for _, n := range domain.AnalyzerOrder {
		if n == name {
			m[n] = outcome
			continue
		}
		m[n] = domain.Completed(nil)
	}
	return m
}

func TestAggregate_AllSafe(t *testing.T) {
	outcomes := allCompletedExcept(domain.AnalyzerProxyDetection, domain.Completed(nil))

	result := Aggregate(outcomes, false)

	assert.Equal(t, domain.VerdictSafe, result.Verdict)
	assert.Nil(t, result.HighestSeverity)
	assert.Empty(t, result.Findings)
	assert.Len(t, result.AnalyzerStatus, 7)
}

func TestAggregate_CriticalFindingIsUnsafe(t *testing.T) {
	outcomes := allCompletedExcept(domain.AnalyzerStorageLayout, domain.Completed([]domain.Finding{
		{Code: "STOR-001", Severity: domain.SeverityCritical},
	}))

	result := Aggregate(outcomes, false)

	require.NotNil(t, result.HighestSeverity)
	assert.Equal(t, domain.VerdictUnsafe, result.Verdict)
	assert.Equal(t, domain.SeverityCritical, *result.HighestSeverity)
}

func TestAggregate_MediumFindingIsReviewRequired(t *testing.T) {
	outcomes := allCompletedExcept(domain.AnalyzerABIDiff, domain.Completed([]domain.Finding{
		{Code: "ABI-007", Severity: domain.SeverityMedium},
	}))

	result := Aggregate(outcomes, false)

	assert.Equal(t, domain.VerdictReviewRequired, result.Verdict)
}

func TestAggregate_ErroredAnalyzerForcesIncomplete(t *testing.T) {
	outcomes := allCompletedExcept(domain.AnalyzerInitializer, domain.Errored("panic: nil pointer"))

	result := Aggregate(outcomes, false)

	assert.Equal(t, domain.VerdictIncomplete, result.Verdict)
	assert.Nil(t, result.HighestSeverity)
}

func TestAggregate_GatedForcesIncompleteEvenWithCriticalFinding(t *testing.T) {
	outcomes := allCompletedExcept(domain.AnalyzerProxyDetection, domain.Completed([]domain.Finding{
		{Code: "PROXY-002", Severity: domain.SeverityCritical},
	}))

	result := Aggregate(outcomes, true)

	assert.Equal(t, domain.VerdictIncomplete, result.Verdict)
	assert.Nil(t, result.HighestSeverity)
}

func TestAggregate_StableSortByAnalyzerThenCodeThenLocation(t *testing.T) {
	slot0, slot5 := uint64(0), uint64(5)
	outcomes := map[domain.AnalyzerName]domain.AnalyzerOutcome{
		domain.AnalyzerProxyDetection: domain.Completed(nil),
		domain.AnalyzerABIDiff: domain.Completed([]domain.Finding{
			{Code: "ABI-005"},
		}),
		domain.AnalyzerStorageLayout: domain.Completed([]domain.Finding{
			{Code: "STOR-001", Location: &domain.Location{Slot: &slot5}},
			{Code: "STOR-001", Location: &domain.Location{Slot: &slot0}},
		}),
		domain.AnalyzerUUPSSafety:        domain.Completed(nil),
		domain.AnalyzerTransparentSafety: domain.Skipped("proxy-type-is-uups"),
		domain.AnalyzerInitializer:       domain.Completed(nil),
		domain.AnalyzerAccessControl:     domain.Completed(nil),
	}

	result := Aggregate(outcomes, false)

	require.Len(t, result.Findings, 3)
	assert.Equal(t, "STOR-001", result.Findings[0].Code)
	assert.Equal(t, uint64(0), *result.Findings[0].Location.Slot)
	assert.Equal(t, "STOR-001", result.Findings[1].Code)
	assert.Equal(t, uint64(5), *result.Findings[1].Location.Slot)
	assert.Equal(t, "ABI-005", result.Findings[2].Code)
}
