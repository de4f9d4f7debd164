package analyze

import (
	"fmt"
	"strings"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// ABIDiff compares two ABIs and returns the ABI-* findings (spec.md §4.3).
func ABIDiff(old, new domain.Abi) domain.AnalyzerOutcome {
	var findings []domain.Finding

	newBySelector := make(map[domain.Selector]domain.FunctionSig, len(new.Functions))
	for _, f := range new.Functions {
		if _, exists := newBySelector[f.Selector]; !exists {
			newBySelector[f.Selector] = f
		}
	}
	oldBySelector := make(map[domain.Selector]bool, len(old.Functions))

	for _, oldFn := range old.Functions {
		oldBySelector[oldFn.Selector] = true
		newFn, present := newBySelector[oldFn.Selector]
		if !present {
			if match, ok := firstByName(new.Functions, oldFn.Name); ok {
				findings = append(findings, signatureChangedFinding(oldFn, match))
			} else {
				findings = append(findings, selectorRemovedFinding(oldFn))
			}
			continue
		}
		if !stringsEqual(oldFn.Outputs, newFn.Outputs) {
			findings = append(findings, returnTypeChangedFinding(oldFn, newFn))
		}
	}

	for _, dup := range new.DuplicateSelectors() {
		findings = append(findings, selectorCollisionFinding(dup))
	}

	for _, newFn := range new.Functions {
		if !oldBySelector[newFn.Selector] {
			findings = append(findings, newFunctionFinding(newFn))
		}
	}

	findings = append(findings, diffEvents(old.Events, new.Events)...)

	return domain.Completed(findings)
}

func diffEvents(old, new []domain.EventSig) []domain.Finding {
	newByTopic := make(map[domain.TopicHash]bool, len(new))
	newByName := make(map[string][]domain.EventSig, len(new))
	for _, e := range new {
		newByTopic[e.Topic0] = true
		newByName[e.Name] = append(newByName[e.Name], e)
	}

	var findings []domain.Finding
	for _, oldEvt := range old {
		if newByTopic[oldEvt.Topic0] {
			continue
		}
		if matches := newByName[oldEvt.Name]; len(matches) > 0 {
			findings = append(findings, eventSignatureChangedFinding(oldEvt, matches[0]))
		} else {
			findings = append(findings, eventRemovedFinding(oldEvt))
		}
	}
	return findings
}

func firstByName(fns []domain.FunctionSig, name string) (domain.FunctionSig, bool) {
	for _, f := range fns {
		if f.Name == name {
			return f, true
		}
	}
	return domain.FunctionSig{}, false
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func selectorRemovedFinding(f domain.FunctionSig) domain.Finding {
	return domain.Finding{
		Code:        "ABI-001",
		Severity:    domain.SeverityHigh,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Function selector removed",
		Description: fmt.Sprintf("Function %q (selector %s) exists in the old ABI but no function in the new ABI shares its selector or name.", f.CanonicalSignature(), f.Selector),
		Location:    &domain.Location{Function: f.Name},
		Remediation: "Removing a public entry point changes the external interface callers depend on; confirm this is intentional.",
	}
}

func signatureChangedFinding(old, new domain.FunctionSig) domain.Finding {
	return domain.Finding{
		Code:        "ABI-003",
		Severity:    domain.SeverityHigh,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Function signature changed",
		Description: fmt.Sprintf("Function %q changed signature from %q to %q; its selector no longer matches.", old.Name, old.CanonicalSignature(), new.CanonicalSignature()),
		Location:    &domain.Location{Function: old.Name},
		Remediation: "A changed signature is a new entry point at the ABI level; callers encoding calls against the old signature will revert.",
	}
}

func returnTypeChangedFinding(old, new domain.FunctionSig) domain.Finding {
	return domain.Finding{
		Code:        "ABI-004",
		Severity:    domain.SeverityMedium,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Function return type changed",
		Description: fmt.Sprintf("Function %q kept its selector but changed outputs from %s to %s.", old.Name, strings.Join(old.Outputs, ","), strings.Join(new.Outputs, ",")),
		Location:    &domain.Location{Function: old.Name},
		Remediation: "Callers decoding the old return type will misdecode the response; confirm all callers are updated.",
	}
}

func selectorCollisionFinding(f domain.FunctionSig) domain.Finding {
	return domain.Finding{
		Code:        "ABI-002",
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Function selector collision",
		Description: fmt.Sprintf("Function %q shares its selector %s with an earlier function in the new ABI.", f.CanonicalSignature(), f.Selector),
		Location:    &domain.Location{Function: f.Name},
		Remediation: "Two functions with the same 4-byte selector are indistinguishable at the call boundary; rename one.",
	}
}

func newFunctionFinding(f domain.FunctionSig) domain.Finding {
	return domain.Finding{
		Code:        "ABI-005",
		Severity:    domain.SeverityLow,
		Confidence:  domain.ConfidenceHigh,
		Title:       "New function added",
		Description: fmt.Sprintf("Function %q is new in this implementation.", f.CanonicalSignature()),
		Location:    &domain.Location{Function: f.Name},
		Remediation: "Informational; confirm the new entry point has appropriate access control.",
	}
}

func eventSignatureChangedFinding(old, new domain.EventSig) domain.Finding {
	return domain.Finding{
		Code:        "ABI-006",
		Severity:    domain.SeverityHigh,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Event signature changed",
		Description: fmt.Sprintf("Event %q changed signature from %q to %q; its topic0 no longer matches.", old.Name, old.CanonicalSignature(), new.CanonicalSignature()),
		Remediation: "Off-chain indexers filtering on the old topic0 will silently stop matching this event.",
	}
}

func eventRemovedFinding(e domain.EventSig) domain.Finding {
	return domain.Finding{
		Code:        "ABI-007",
		Severity:    domain.SeverityMedium,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Event removed",
		Description: fmt.Sprintf("Event %q exists in the old ABI but has no counterpart in the new ABI.", e.CanonicalSignature()),
		Remediation: "Confirm no off-chain consumer depends on this event being emitted.",
	}
}
