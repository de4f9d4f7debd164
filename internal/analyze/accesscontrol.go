package analyze

import "github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"

// AccessControl runs the access-control differ (C9), comparing per-function
// access control across old -> new for every function present on both sides
// (spec.md §4.6). Functions removed in new are out of scope here — §4.3
// covers them.
func AccessControl(old, new domain.ContractAst) domain.AnalyzerOutcome {
	oldByName := old.ByName()
	newByName := new.ByName()

	var findings []domain.Finding
	for name, oldFn := range oldByName {
		newFn, present := newByName[name]
		if !present {
			continue
		}

		fired001or002 := false
		if oldFn.HasModifier("onlyOwner") && !newFn.HasModifier("onlyOwner") {
			findings = append(findings, acl001(name))
			fired001or002 = true
		}
		if oldFn.HasModifierPrefix("onlyRole") && !newFn.HasModifierPrefix("onlyRole") {
			findings = append(findings, acl002(name))
			fired001or002 = true
		}
		if !fired001or002 && oldFn.HasAccessControlSignal() && !newFn.HasAccessControlSignal() {
			findings = append(findings, acl003(name))
		}
		if isNarrowVisibility(oldFn.Visibility) && isWideVisibility(newFn.Visibility) {
			findings = append(findings, acl004(name, oldFn.Visibility, newFn.Visibility))
		}
		if name == authorizeUpgradeFn && oldFn.HasAccessControlSignal() && !newFn.HasAccessControlSignal() {
			findings = append(findings, acl007(name))
		}
	}
	return domain.Completed(findings)
}

func isNarrowVisibility(v domain.Visibility) bool {
	return v == domain.VisibilityInternal || v == domain.VisibilityPrivate
}

func isWideVisibility(v domain.Visibility) bool {
	return v == domain.VisibilityPublic || v == domain.VisibilityExternal
}

func acl001(name string) domain.Finding {
	return domain.Finding{
		Code:        "ACL-001",
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "onlyOwner guard removed",
		Description: "Function had the onlyOwner modifier in the old implementation; the new implementation no longer carries it.",
		Location:    &domain.Location{Function: name},
		Remediation: "Restore the onlyOwner guard, or confirm the function is intentionally now unrestricted.",
	}
}

func acl002(name string) domain.Finding {
	return domain.Finding{
		Code:        "ACL-002",
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "onlyRole guard removed",
		Description: "Function had an onlyRole-prefixed modifier in the old implementation; the new implementation has none.",
		Location:    &domain.Location{Function: name},
		Remediation: "Restore a role-based guard, or confirm the function is intentionally now unrestricted.",
	}
}

func acl003(name string) domain.Finding {
	return domain.Finding{
		Code:        "ACL-003",
		Severity:    domain.SeverityHigh,
		Confidence:  domain.ConfidenceMedium,
		Title:       "Access-control signal removed",
		Description: "Function showed an access-control signal (modifier keyword or caller-identity check) in the old implementation; the new implementation shows none.",
		Location:    &domain.Location{Function: name},
		Remediation: "Confirm removing the guard was intentional; this is a heuristic signal, not a structural proof.",
	}
}

func acl004(name string, old, new domain.Visibility) domain.Finding {
	return domain.Finding{
		Code:        "ACL-004",
		Severity:    domain.SeverityHigh,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Function visibility widened",
		Description: "Function visibility widened from " + string(old) + " to " + string(new) + ", making it reachable from outside the contract for the first time.",
		Location:    &domain.Location{Function: name},
		Remediation: "Confirm the function is safe to call externally; an internal helper may assume invariants only an internal caller upholds.",
	}
}

func acl007(name string) domain.Finding {
	return domain.Finding{
		Code:        "ACL-007",
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceMedium,
		Title:       "_authorizeUpgrade access control removed",
		Description: "_authorizeUpgrade had a modifier-keyword or sender-identity check in the old implementation; the new implementation has neither.",
		Location:    &domain.Location{Function: name},
		Remediation: "An unguarded _authorizeUpgrade lets any account upgrade the proxy; restore the access-control check.",
	}
}
