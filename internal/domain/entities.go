// Package domain contains the core value types shared by every analysis
// stage: fingerprint types, storage/ABI/AST projections, findings, and the
// engine's result envelope. Everything here has value semantics; nothing
// in this package performs I/O.
package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ============================================================
// FINGERPRINT TYPES
// ============================================================

// Address is a 20-byte EVM account identifier.
type Address [20]byte

// ZeroAddress is the all-zero sentinel address.
var ZeroAddress = Address{}

// IsZero reports whether a is the zero-address sentinel.
func (a Address) IsZero() bool { return a == ZeroAddress }

// String renders the address as a 0x-prefixed hex string.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// AddressFromSlice takes the right-most 20 bytes of b as an Address.
// Per spec, candidate addresses are always extracted from 32-byte slot
// values by taking the low-order 20 bytes.
func AddressFromSlice(b []byte) Address {
	var a Address
	if len(b) >= 20 {
		copy(a[:], b[len(b)-20:])
	} else {
		copy(a[20-len(b):], b)
	}
	return a
}

// AddressFromHex parses a 0x-prefixed (or bare) 20-byte hex string into an
// Address. Used at process boundaries (CLI flags, HTTP request bodies)
// where addresses arrive as text rather than as slot-derived bytes.
func AddressFromHex(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) != 40 {
		return a, fmt.Errorf("address %q must be 20 bytes (40 hex chars)", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

// SlotKey is a 32-byte storage slot identifier.
type SlotKey [32]byte

// SlotKeyFromHex parses a hex string (with or without 0x prefix) into a SlotKey.
func SlotKeyFromHex(s string) (SlotKey, error) {
	var k SlotKey
	s = strings.TrimPrefix(s, "0x")
	if len(s) > 64 {
		return k, fmt.Errorf("slot key %q exceeds 32 bytes", s)
	}
	s = strings.Repeat("0", 64-len(s)) + s
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("decode slot key: %w", err)
	}
	copy(k[:], b)
	return k, nil
}

// String renders the slot key as a 0x-prefixed hex string.
func (k SlotKey) String() string { return "0x" + hex.EncodeToString(k[:]) }

// Selector is the 4-byte function dispatch identifier.
type Selector [4]byte

// String renders the selector as a 0x-prefixed hex string.
func (s Selector) String() string { return "0x" + hex.EncodeToString(s[:]) }

// TopicHash is the 32-byte event log topic0 identifier.
type TopicHash [32]byte

// String renders the topic hash as a 0x-prefixed hex string.
func (t TopicHash) String() string { return "0x" + hex.EncodeToString(t[:]) }

// ============================================================
// PROXY CLASSIFICATION
// ============================================================

// ProxyKind names one of the two supported proxy patterns.
type ProxyKind string

const (
	ProxyTransparent ProxyKind = "transparent"
	ProxyUUPS        ProxyKind = "uups"
)

// ProxyInfo is the output of the proxy classifier (C3). Immutable once built.
type ProxyInfo struct {
	Kind           ProxyKind
	Proxy          Address
	Implementation Address
	Admin          *Address // populated only for ProxyTransparent
}

// ============================================================
// STORAGE LAYOUT
// ============================================================

// StorageEntry is one state-variable slot assignment, in canonical form.
type StorageEntry struct {
	Slot           uint64
	Offset         uint8
	LengthBytes    uint8 // 1..=32
	CanonicalType  string
	Label          string
	Origin         string // declaring contract, for inheritance attribution
	DeclarationIdx uint32
}

// Key returns the (slot, offset) primary key used for layout comparison.
func (e StorageEntry) Key() StorageKey { return StorageKey{Slot: e.Slot, Offset: e.Offset} }

// IsGap reports whether this entry is a storage-gap reservation: its label
// ends in "gap" (case-insensitive) and its type is a uint256 array.
// This is a label-based heuristic, not a protocol rule — see storage.go.
func (e StorageEntry) IsGap() bool {
	if !strings.HasSuffix(strings.ToLower(e.Label), "gap") {
		return false
	}
	return strings.HasPrefix(e.CanonicalType, "uint256[") && strings.HasSuffix(e.CanonicalType, "]")
}

// GapSize returns the declared array length N for a uint256[N] gap entry.
// Returns 0, false if the entry is not a gap or the size can't be parsed.
func (e StorageEntry) GapSize() (int, bool) {
	if !e.IsGap() {
		return 0, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(e.CanonicalType, "uint256["), "]")
	var n int
	if _, err := fmt.Sscanf(inner, "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// StorageKey is the primary key for storage-layout comparison.
type StorageKey struct {
	Slot   uint64
	Offset uint8
}

// StorageLayout is an ordered sequence of entries, ancestors first.
type StorageLayout []StorageEntry

// NonGap returns the entries that are not storage-gap reservations.
func (l StorageLayout) NonGap() []StorageEntry {
	out := make([]StorageEntry, 0, len(l))
	for _, e := range l {
		if !e.IsGap() {
			out = append(out, e)
		}
	}
	return out
}

// Gaps returns the storage-gap entries.
func (l StorageLayout) Gaps() []StorageEntry {
	out := make([]StorageEntry, 0)
	for _, e := range l {
		if e.IsGap() {
			out = append(out, e)
		}
	}
	return out
}

// ============================================================
// ABI
// ============================================================

// Mutability is a function's state-mutability classification.
type Mutability string

const (
	MutabilityPure       Mutability = "pure"
	MutabilityView       Mutability = "view"
	MutabilityNonpayable Mutability = "nonpayable"
	MutabilityPayable    Mutability = "payable"
)

// FunctionSig is one normalized ABI function entry.
type FunctionSig struct {
	Selector   Selector
	Name       string
	Inputs     []string
	Outputs    []string
	Mutability Mutability
}

// CanonicalSignature renders "name(type1,type2,...)" used to derive Selector.
func (f FunctionSig) CanonicalSignature() string {
	return f.Name + "(" + strings.Join(f.Inputs, ",") + ")"
}

// EventInput is one event parameter, tracking whether it is indexed.
type EventInput struct {
	Type    string
	Indexed bool
}

// EventSig is one normalized ABI event entry.
type EventSig struct {
	Topic0 TopicHash
	Name   string
	Inputs []EventInput
}

// CanonicalSignature renders "name(type1,type2,...)" used to derive Topic0.
func (e EventSig) CanonicalSignature() string {
	types := make([]string, len(e.Inputs))
	for i, in := range e.Inputs {
		types[i] = in.Type
	}
	return e.Name + "(" + strings.Join(types, ",") + ")"
}

// Abi is a contract's normalized function and event surface.
type Abi struct {
	Functions []FunctionSig
	Events    []EventSig
}

// DuplicateSelectors returns functions (in order) whose selector collides
// with an earlier function in Functions. An Abi.Functions invariant
// violation (two entries sharing a selector) is itself a finding, not an error.
func (a Abi) DuplicateSelectors() []FunctionSig {
	seen := make(map[Selector]bool, len(a.Functions))
	var dups []FunctionSig
	for _, f := range a.Functions {
		if seen[f.Selector] {
			dups = append(dups, f)
			continue
		}
		seen[f.Selector] = true
	}
	return dups
}

// ============================================================
// AST PROJECTION
// ============================================================

// FunctionKind classifies what sort of function a declaration is.
type FunctionKind string

const (
	FunctionRegular     FunctionKind = "regular"
	FunctionConstructor FunctionKind = "constructor"
	FunctionFallback    FunctionKind = "fallback"
	FunctionReceive     FunctionKind = "receive"
)

// Visibility is a Solidity function visibility specifier.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityExternal Visibility = "external"
	VisibilityInternal Visibility = "internal"
	VisibilityPrivate  Visibility = "private"
)

// FunctionDecl is the AST projection of one function definition, extracted
// once by the artifact oracle adapter rather than re-walked per analyzer.
type FunctionDecl struct {
	Name                 string
	Kind                 FunctionKind
	Visibility           Visibility
	Modifiers            []string
	HasBody              bool
	BodyStatementCount   int
	BodyReferencesSender bool
	BodyHasStorageAssign bool
	BodyCalls            map[string]bool
}

// HasModifier reports whether m is present among the function's modifiers,
// matched case-sensitively against the raw modifier name.
func (f FunctionDecl) HasModifier(m string) bool {
	for _, mod := range f.Modifiers {
		if mod == m {
			return true
		}
	}
	return false
}

// HasModifierPrefix reports whether any modifier starts with prefix.
func (f FunctionDecl) HasModifierPrefix(prefix string) bool {
	for _, mod := range f.Modifiers {
		if strings.HasPrefix(mod, prefix) {
			return true
		}
	}
	return false
}

// accessControlKeywords is the closed heuristic keyword set from spec.md
// §4.4.1. Implementations may broaden it but must not narrow it.
var accessControlKeywords = []string{"only", "auth", "authorized", "owner", "admin", "role", "guard"}

// HasAccessControlSignal reports whether the function shows the access-control
// signal defined in spec.md §4.4.1: a modifier whose lowercased name contains
// one of the heuristic keywords, or a body reference to the caller identity.
func (f FunctionDecl) HasAccessControlSignal() bool {
	for _, mod := range f.Modifiers {
		lower := strings.ToLower(mod)
		for _, kw := range accessControlKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return f.BodyReferencesSender
}

// ContractAst is the set of function declarations extracted for one contract.
type ContractAst struct {
	Name      string
	Functions []FunctionDecl
}

// ByName indexes the contract's functions by name. When a name is
// overloaded, the last declaration wins — overload resolution by name alone
// is a known limitation the differs must tolerate (ABI-level overloads are
// matched by selector, not name, everywhere that matters).
func (c ContractAst) ByName() map[string]FunctionDecl {
	m := make(map[string]FunctionDecl, len(c.Functions))
	for _, f := range c.Functions {
		m[f.Name] = f
	}
	return m
}

// ============================================================
// RESOLVED BUNDLE
// ============================================================

// Side is one half (old or new) of a resolved implementation.
type Side struct {
	Path         string
	ContractName string
	Layout       StorageLayout
	ABI          Abi
	AST          ContractAst
}

// Resolved is the normalized, immutable bundle C4 builds for C5-C9 to read.
type Resolved struct {
	Old Side
	New Side
}

// ============================================================
// FINDINGS
// ============================================================

// Severity orders findings from most to least urgent.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank gives Severity a strict total order for comparisons and
// stable sorting; lower rank is more severe.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// MoreSevereThan reports whether s outranks other (s is more urgent).
func (s Severity) MoreSevereThan(other Severity) bool {
	return severityRank[s] < severityRank[other]
}

// Confidence qualifies how sure an analyzer is about a finding.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Location pinpoints where in the contracts a finding applies. Every field
// is optional; a finding may locate by function name, by slot/offset, or
// both, or neither (a whole-artifact finding).
type Location struct {
	Contract string
	Function string
	Slot     *uint64
	Offset   *uint8
}

// Finding is one machine-emitted conclusion about a specific risk.
type Finding struct {
	Code        string
	Severity    Severity
	Confidence  Confidence
	Title       string
	Description string
	Details     map[string]any
	Location    *Location
	Remediation string
}

// ============================================================
// ANALYZER OUTCOME
// ============================================================

// OutcomeStatus is the three-way split that is load-bearing for verdict
// computation: an analyzer that doesn't apply is Skipped; one that tried
// and failed is Errored. The two must never be conflated.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeErrored   OutcomeStatus = "errored"
)

// AnalyzerOutcome is the tagged result of running one analyzer.
type AnalyzerOutcome struct {
	Status   OutcomeStatus
	Findings []Finding // meaningful only when Status == OutcomeCompleted
	Reason   string    // meaningful only when Status == OutcomeSkipped
	Message  string    // meaningful only when Status == OutcomeErrored
}

// Completed builds a completed outcome carrying findings (possibly none).
func Completed(findings []Finding) AnalyzerOutcome {
	return AnalyzerOutcome{Status: OutcomeCompleted, Findings: findings}
}

// Skipped builds a skipped outcome with a human-readable reason.
func Skipped(reason string) AnalyzerOutcome {
	return AnalyzerOutcome{Status: OutcomeSkipped, Reason: reason}
}

// Errored builds an errored outcome carrying the failure message.
func Errored(message string) AnalyzerOutcome {
	return AnalyzerOutcome{Status: OutcomeErrored, Message: message}
}

// ============================================================
// ANALYZER NAMES
// ============================================================

// AnalyzerName identifies one of the seven fixed analyzer slots the
// aggregator keys its outcomes by (spec.md §4.7).
type AnalyzerName string

const (
	AnalyzerProxyDetection    AnalyzerName = "proxy-detection"
	AnalyzerStorageLayout     AnalyzerName = "storage-layout"
	AnalyzerABIDiff           AnalyzerName = "abi-diff"
	AnalyzerUUPSSafety        AnalyzerName = "uups-safety"
	AnalyzerTransparentSafety AnalyzerName = "transparent-safety"
	AnalyzerInitializer       AnalyzerName = "initializer-integrity"
	AnalyzerAccessControl     AnalyzerName = "access-control-regression"
)

// AnalyzerOrder is the fixed total order used for the analyzer-name
// component of the stable finding sort (spec.md §5).
var AnalyzerOrder = []AnalyzerName{
	AnalyzerProxyDetection,
	AnalyzerStorageLayout,
	AnalyzerABIDiff,
	AnalyzerUUPSSafety,
	AnalyzerTransparentSafety,
	AnalyzerInitializer,
	AnalyzerAccessControl,
}

// ============================================================
// VERDICT & ENGINE RESULT
// ============================================================

// Verdict is the engine's aggregate judgement about an upgrade.
type Verdict string

const (
	VerdictSafe           Verdict = "safe"
	VerdictUnsafe         Verdict = "unsafe"
	VerdictReviewRequired Verdict = "review_required"
	VerdictIncomplete     Verdict = "incomplete"
)

// EngineResult is the single entry point's output (spec.md §6.3).
type EngineResult struct {
	RunID           string
	Verdict         Verdict
	HighestSeverity *Severity
	Findings        []Finding
	AnalyzerStatus  map[AnalyzerName]OutcomeStatus
	ReportMarkdown  string
}

// ExitCode maps a result to the process exit-code contract (spec.md §6.4).
func (r EngineResult) ExitCode() int {
	switch r.Verdict {
	case VerdictSafe:
		return 0
	case VerdictUnsafe:
		if r.HighestSeverity != nil && *r.HighestSeverity == SeverityCritical {
			return 1
		}
		return 2
	case VerdictReviewRequired:
		return 3
	case VerdictIncomplete:
		return 4
	default:
		return 12
	}
}
