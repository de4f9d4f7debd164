package analyze

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// authorizeUpgradeFn is the conventional UUPS authorization hook name.
const authorizeUpgradeFn = "_authorizeUpgrade"

// fixedProxyAdminSignatures are the canonical signatures of the functions a
// Transparent proxy reserves for its own admin dispatch; a new implementation
// exposing a function whose selector collides with one of these, regardless
// of name, will never be reachable through the proxy.
var fixedProxyAdminSignatures = []string{
	"upgradeTo(address)",
	"upgradeToAndCall(address,bytes)",
	"changeAdmin(address)",
	"admin()",
	"implementation()",
}

var fixedProxyAdminSelectors = func() map[domain.Selector]bool {
	m := make(map[domain.Selector]bool, len(fixedProxyAdminSignatures))
	for _, sig := range fixedProxyAdminSignatures {
		var sel domain.Selector
		copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
		m[sel] = true
	}
	return m
}()

// UpgradeAuthUUPS runs the UUPS branch of the upgrade-auth checker (C7),
// inspecting the new implementation's _authorizeUpgrade hook.
func UpgradeAuthUUPS(newAST domain.ContractAst) domain.AnalyzerOutcome {
	fn, found := findFunction(newAST, authorizeUpgradeFn)
	if !found {
		return domain.Completed([]domain.Finding{{
			Code:        "UUPS-001",
			Severity:    domain.SeverityCritical,
			Confidence:  domain.ConfidenceHigh,
			Title:       "_authorizeUpgrade missing",
			Description: "The new implementation defines no _authorizeUpgrade function; UUPS proxies rely on it to gate upgrades.",
			Location:    &domain.Location{Function: authorizeUpgradeFn},
			Remediation: "Implement _authorizeUpgrade and guard it with an access-control check.",
		}})
	}
	if !fn.HasBody || fn.BodyStatementCount == 0 {
		return domain.Completed([]domain.Finding{{
			Code:        "UUPS-002",
			Severity:    domain.SeverityCritical,
			Confidence:  domain.ConfidenceHigh,
			Title:       "_authorizeUpgrade has an empty body",
			Description: "_authorizeUpgrade is declared but has no body or an empty body, so it imposes no restriction on upgrades.",
			Location:    &domain.Location{Function: authorizeUpgradeFn},
			Remediation: "Add an access-control check to the body of _authorizeUpgrade.",
		}})
	}
	if !fn.HasAccessControlSignal() {
		return domain.Completed([]domain.Finding{{
			Code:        "UUPS-003",
			Severity:    domain.SeverityCritical,
			Confidence:  domain.ConfidenceMedium,
			Title:       "_authorizeUpgrade unguarded",
			Description: "_authorizeUpgrade has a non-empty body but shows no access-control modifier keyword or caller-identity check.",
			Location:    &domain.Location{Function: authorizeUpgradeFn},
			Remediation: "Guard _authorizeUpgrade with onlyOwner, a role check, or an explicit msg.sender comparison.",
		}})
	}
	return domain.Completed(nil)
}

// UpgradeAuthTransparent runs the Transparent branch of the upgrade-auth
// checker (C7), over ProxyInfo and the new ABI.
func UpgradeAuthTransparent(proxyInfo domain.ProxyInfo, newABI domain.Abi) domain.AnalyzerOutcome {
	var findings []domain.Finding

	if proxyInfo.Admin != nil && proxyInfo.Admin.IsZero() {
		findings = append(findings, domain.Finding{
			Code:        "TPROXY-001",
			Severity:    domain.SeverityCritical,
			Confidence:  domain.ConfidenceHigh,
			Title:       "Transparent proxy admin is the zero address",
			Description: "The proxy's admin slot holds the zero address; no account can invoke upgrade functions.",
			Remediation: "Set a valid admin address on the proxy before relying on its upgrade path.",
		})
	}

	for _, fn := range newABI.Functions {
		if fn.Name == "upgradeTo" || fn.Name == "upgradeToAndCall" {
			findings = append(findings, domain.Finding{
				Code:        "TPROXY-002",
				Severity:    domain.SeverityHigh,
				Confidence:  domain.ConfidenceHigh,
				Title:       "Upgrade function exposed on implementation",
				Description: fmt.Sprintf("The new implementation defines %q, which a Transparent proxy reserves for the admin dispatch path.", fn.CanonicalSignature()),
				Location:    &domain.Location{Function: fn.Name},
				Remediation: "Remove upgrade functions from a Transparent-pattern implementation; they belong on the proxy.",
			})
		}
		if fixedProxyAdminSelectors[fn.Selector] {
			findings = append(findings, domain.Finding{
				Code:        "TPROXY-004",
				Severity:    domain.SeverityHigh,
				Confidence:  domain.ConfidenceHigh,
				Title:       "Function selector collides with proxy-admin dispatch",
				Description: fmt.Sprintf("The new implementation defines %q, whose selector collides with a function a Transparent proxy dispatches to its admin.", fn.CanonicalSignature()),
				Location:    &domain.Location{Function: fn.Name},
				Remediation: "Change the colliding function's signature; a Transparent proxy will route admin calls to itself instead of the implementation.",
			})
		}
	}

	return domain.Completed(findings)
}

func findFunction(ast domain.ContractAst, name string) (domain.FunctionDecl, bool) {
	for _, fn := range ast.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return domain.FunctionDecl{}, false
}
