package analyze

import "github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"

// disableInitializersFn is the conventional OpenZeppelin helper a
// UUPS/Transparent implementation's constructor is expected to call.
const disableInitializersFn = "_disableInitializers"

// Initializer runs the initializer checker (C8) over the new implementation
// AST, returning INIT-* findings (spec.md §4.5).
func Initializer(newAST domain.ContractAst) domain.AnalyzerOutcome {
	var constructors, initFns, plainInitializerFns []domain.FunctionDecl

	for _, fn := range newAST.Functions {
		if fn.Kind == domain.FunctionConstructor {
			constructors = append(constructors, fn)
			continue
		}
		if fn.HasModifier("initializer") || fn.HasModifier("reinitializer") {
			initFns = append(initFns, fn)
		}
		if fn.HasModifier("initializer") {
			plainInitializerFns = append(plainInitializerFns, fn)
		}
	}

	var findings []domain.Finding

	for _, ctor := range constructors {
		if ctor.BodyHasStorageAssign {
			findings = append(findings, domain.Finding{
				Code:        "INIT-001",
				Severity:    domain.SeverityCritical,
				Confidence:  domain.ConfidenceMedium,
				Title:       "Constructor assigns storage",
				Description: "The constructor assigns to storage. For an upgradeable implementation, constructor-set state is lost — it runs once against the implementation's own storage, never the proxy's.",
				Location:    &domain.Location{Function: "constructor"},
				Remediation: "Move storage initialization into an initializer function and remove the constructor assignment.",
			})
		}
	}

	if len(constructors) > 0 && !anyCalls(constructors, disableInitializersFn) {
		findings = append(findings, domain.Finding{
			Code:        "INIT-005",
			Severity:    domain.SeverityMedium,
			Confidence:  domain.ConfidenceMedium,
			Title:       "Constructor does not disable initializers",
			Description: "None of the implementation's constructors call the conventional _disableInitializers helper, leaving the implementation contract itself initializable.",
			Location:    &domain.Location{Function: "constructor"},
			Remediation: "Call _disableInitializers() in the constructor so the logic contract cannot be initialized directly.",
		})
	}

	if len(initFns) == 0 {
		findings = append(findings, domain.Finding{
			Code:        "INIT-002",
			Severity:    domain.SeverityHigh,
			Confidence:  domain.ConfidenceHigh,
			Title:       "No initializer function found",
			Description: "No function is modified by initializer or reinitializer; the implementation has no entry point to set up proxy storage after deployment.",
			Remediation: "Add a function guarded by the initializer modifier to set up state on first deployment.",
		})
	}

	if len(plainInitializerFns) > 1 {
		findings = append(findings, domain.Finding{
			Code:        "INIT-006",
			Severity:    domain.SeverityHigh,
			Confidence:  domain.ConfidenceHigh,
			Title:       "Multiple functions guarded by initializer",
			Description: "More than one function carries the plain initializer modifier; only one such call can ever succeed, and the ambiguity invites accidental re-entry attempts.",
			Remediation: "Consolidate setup into a single initializer function, using reinitializer for any subsequent initialization stages.",
		})
	}

	return domain.Completed(findings)
}

func anyCalls(fns []domain.FunctionDecl, name string) bool {
	for _, fn := range fns {
		if fn.BodyCalls != nil && fn.BodyCalls[name] {
			return true
		}
	}
	return false
}
