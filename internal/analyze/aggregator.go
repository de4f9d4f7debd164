package analyze

import (
	"sort"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// taggedFinding pairs a Finding with the analyzer that produced it, purely
// as sort-key scaffolding — the tag never reaches domain.Finding itself.
type taggedFinding struct {
	analyzer domain.AnalyzerName
	finding  domain.Finding
}

// Aggregate collapses the seven analyzer outcomes into a verdict and a
// stably ordered finding list (spec.md §4.7, §5). gated is true when the
// proxy classifier (C3) itself emitted a blocking finding; per spec.md
// §4.8 step 2 that forces Incomplete regardless of the finding severities
// present, since the other six analyzers never ran.
func Aggregate(outcomes map[domain.AnalyzerName]domain.AnalyzerOutcome, gated bool) domain.EngineResult {
	status := make(map[domain.AnalyzerName]domain.OutcomeStatus, len(outcomes))
	var tagged []taggedFinding
	anyErrored := false

	for name, outcome := range outcomes {
		status[name] = outcome.Status
		switch outcome.Status {
		case domain.OutcomeErrored:
			anyErrored = true
		case domain.OutcomeCompleted:
			for _, f := range outcome.Findings {
				tagged = append(tagged, taggedFinding{analyzer: name, finding: f})
			}
		}
	}

	analyzerRank := make(map[domain.AnalyzerName]int, len(domain.AnalyzerOrder))
	for i, name := range domain.AnalyzerOrder {
		analyzerRank[name] = i
	}

	sort.SliceStable(tagged, func(i, j int) bool {
		a, b := tagged[i], tagged[j]
		if analyzerRank[a.analyzer] != analyzerRank[b.analyzer] {
			return analyzerRank[a.analyzer] < analyzerRank[b.analyzer]
		}
		if a.finding.Code != b.finding.Code {
			return a.finding.Code < b.finding.Code
		}
		return locationLess(a.finding.Location, b.finding.Location)
	})

	findings := make([]domain.Finding, len(tagged))
	for i, t := range tagged {
		findings[i] = t.finding
	}

	if anyErrored || gated {
		return domain.EngineResult{
			Verdict:        domain.VerdictIncomplete,
			Findings:       findings,
			AnalyzerStatus: status,
		}
	}

	var highest *domain.Severity
	for i := range findings {
		s := findings[i].Severity
		if highest == nil || s.MoreSevereThan(*highest) {
			sCopy := s
			highest = &sCopy
		}
	}

	verdict := domain.VerdictSafe
	if highest != nil {
		switch *highest {
		case domain.SeverityCritical, domain.SeverityHigh:
			verdict = domain.VerdictUnsafe
		case domain.SeverityMedium:
			verdict = domain.VerdictReviewRequired
		}
	}

	return domain.EngineResult{
		Verdict:         verdict,
		HighestSeverity: highest,
		Findings:        findings,
		AnalyzerStatus:  status,
	}
}

// locationLess imposes a deterministic order over possibly-absent
// locations: slot/offset first (entries with a slot sort before entries
// without one), then function name.
func locationLess(a, b *domain.Location) bool {
	aSlot, aHasSlot := locationSlot(a)
	bSlot, bHasSlot := locationSlot(b)
	if aHasSlot != bHasSlot {
		return aHasSlot
	}
	if aHasSlot && aSlot != bSlot {
		return aSlot < bSlot
	}
	aOffset, bOffset := locationOffset(a), locationOffset(b)
	if aOffset != bOffset {
		return aOffset < bOffset
	}
	return locationFunction(a) < locationFunction(b)
}

func locationSlot(l *domain.Location) (uint64, bool) {
	if l == nil || l.Slot == nil {
		return 0, false
	}
	return *l.Slot, true
}

func locationOffset(l *domain.Location) uint8 {
	if l == nil || l.Offset == nil {
		return 0
	}
	return *l.Offset
}

func locationFunction(l *domain.Location) string {
	if l == nil {
		return ""
	}
	return l.Function
}
