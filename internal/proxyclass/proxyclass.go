// Package proxyclass is the proxy classifier (C3). It reads three storage
// slots, the implementation's code and, when that is not conclusive, the
// proxy's own code through the chain adapter and decides whether
// the proxy is Transparent or UUPS, or emits a blocking finding when
// neither pattern can be established.
package proxyclass

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// ChainReader is the subset of chainadapter.Adapter's method set Classify
// needs. Accepting the interface rather than the concrete adapter keeps this
// package testable against a fake, the way resolve.Service depends on
// oracleadapter.Oracle rather than a concrete *ForgeOracle.
type ChainReader interface {
	ReadStorageSlot(ctx context.Context, addr domain.Address, slot domain.SlotKey) ([32]byte, error)
	ReadCode(ctx context.Context, addr domain.Address) ([]byte, error)
}

// ERC-1967 well-known storage slots and the UUPS identity selector. Values
// fixed by external standards, not configurable.
var (
	implSlot   = mustSlot("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	adminSlot  = mustSlot("0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103")
	beaconSlot = mustSlot("0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50")
	// proxiableUUIDSelector is keccak256("proxiableUUID()")[:4].
	proxiableUUIDSelector = []byte{0x52, 0xd1, 0x90, 0x2d}
)

func mustSlot(hexStr string) domain.SlotKey {
	k, err := domain.SlotKeyFromHex(hexStr)
	if err != nil {
		panic(err)
	}
	return k
}

// Blocking finding codes; any of these forces the engine to mark every
// other analyzer Skipped and the verdict Incomplete (spec.md §4.1).
const (
	FindingBeaconUnsupported = "PROXY-001"
	FindingZeroImplementation = "PROXY-002"
	FindingEmptyImplementationCode = "PROXY-003"
	FindingAmbiguousPattern = "PROXY-005"
)

// BlockingCodes lists the blocking codes above. The orchestrator does not
// consult it: it gates the remaining analyzers whenever Classify returns a
// nil ProxyInfo.
var BlockingCodes = map[string]bool{
	FindingBeaconUnsupported:       true,
	FindingZeroImplementation:      true,
	FindingEmptyImplementationCode: true,
	FindingAmbiguousPattern:        true,
}

// Classify reads the proxy's slots and code and decides its pattern. It
// returns a nil *domain.ProxyInfo alongside a Completed outcome carrying a
// blocking finding when classification cannot proceed. A non-nil error means
// the chain adapter itself failed — that aborts the whole analysis rather
// than becoming a finding (spec.md §7).
func Classify(ctx context.Context, chain ChainReader, proxy domain.Address, logger *slog.Logger) (*domain.ProxyInfo, domain.AnalyzerOutcome, error) {
	log := logger.With("component", "proxyclass", "proxy", proxy.String())

	implRaw, err := chain.ReadStorageSlot(ctx, proxy, implSlot)
	if err != nil {
		return nil, domain.AnalyzerOutcome{}, err
	}
	adminRaw, err := chain.ReadStorageSlot(ctx, proxy, adminSlot)
	if err != nil {
		return nil, domain.AnalyzerOutcome{}, err
	}
	beaconRaw, err := chain.ReadStorageSlot(ctx, proxy, beaconSlot)
	if err != nil {
		return nil, domain.AnalyzerOutcome{}, err
	}

	implAddr := domain.AddressFromSlice(implRaw[:])
	adminAddr := domain.AddressFromSlice(adminRaw[:])
	beaconAddr := domain.AddressFromSlice(beaconRaw[:])

	if !beaconAddr.IsZero() {
		log.Info("beacon pattern detected, unsupported")
		return nil, domain.Completed([]domain.Finding{beaconFinding()}), nil
	}
	if implAddr.IsZero() {
		log.Info("zero implementation slot")
		return nil, domain.Completed([]domain.Finding{zeroImplFinding()}), nil
	}

	implCode, err := chain.ReadCode(ctx, implAddr)
	if err != nil {
		return nil, domain.AnalyzerOutcome{}, err
	}
	if len(implCode) == 0 {
		log.Info("implementation has no code", "implementation", implAddr.String())
		return nil, domain.Completed([]domain.Finding{emptyCodeFinding(implAddr)}), nil
	}

	if bytes.Contains(implCode, proxiableUUIDSelector) {
		info := &domain.ProxyInfo{Kind: domain.ProxyUUPS, Proxy: proxy, Implementation: implAddr}
		log.Info("classified as UUPS")
		return info, domain.AnalyzerOutcome{}, nil
	}

	if !adminAddr.IsZero() {
		info := &domain.ProxyInfo{Kind: domain.ProxyTransparent, Proxy: proxy, Implementation: implAddr, Admin: &adminAddr}
		log.Info("classified as Transparent", "admin", adminAddr.String())
		return info, domain.AnalyzerOutcome{}, nil
	}

	// Ambiguous: neither the UUPS selector nor a non-zero admin was found.
	// Fall back to inspecting the proxy's own bytecode for a reference to
	// the admin slot constant — a pragmatic heuristic (spec.md §9) that
	// lets a zero-admin Transparent proxy still reach TPROXY-001 instead of
	// dying here as Incomplete.
	proxyCode, err := chain.ReadCode(ctx, proxy)
	if err != nil {
		return nil, domain.AnalyzerOutcome{}, err
	}
	if bytes.Contains(proxyCode, adminSlot[:]) {
		zero := domain.ZeroAddress
		info := &domain.ProxyInfo{Kind: domain.ProxyTransparent, Proxy: proxy, Implementation: implAddr, Admin: &zero}
		log.Info("classified as Transparent via admin-slot fallback (zero admin)")
		return info, domain.AnalyzerOutcome{}, nil
	}

	log.Info("pattern ambiguous, no supported proxy detected")
	return nil, domain.Completed([]domain.Finding{ambiguousFinding()}), nil
}

func beaconFinding() domain.Finding {
	return domain.Finding{
		Code:        FindingBeaconUnsupported,
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Beacon proxy pattern unsupported",
		Description: "The proxy's ERC-1967 beacon slot is non-zero. This analyzer supports only the Transparent and UUPS patterns.",
		Remediation: "Use a Transparent or UUPS proxy, or analyze this upgrade with a tool that supports beacon proxies.",
	}
}

func zeroImplFinding() domain.Finding {
	return domain.Finding{
		Code:        FindingZeroImplementation,
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Implementation slot is unset",
		Description: "The proxy's ERC-1967 implementation slot holds the zero address; there is no current implementation to diff against.",
		Remediation: "Initialize the proxy's implementation slot before requesting an upgrade-safety analysis.",
	}
}

func emptyCodeFinding(implementation domain.Address) domain.Finding {
	return domain.Finding{
		Code:        FindingEmptyImplementationCode,
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Implementation address has no code",
		Description: "The address in the proxy's implementation slot has no deployed bytecode.",
		Details:     map[string]any{"implementation": implementation.String()},
		Remediation: "Point the proxy at a deployed implementation contract before analyzing.",
	}
}

func ambiguousFinding() domain.Finding {
	return domain.Finding{
		Code:        FindingAmbiguousPattern,
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Proxy pattern could not be determined",
		Description: "Neither the UUPS identity selector nor a non-zero admin nor an admin-slot reference in the proxy's own bytecode was found.",
		Remediation: "Confirm this proxy uses one of the two supported patterns (Transparent, UUPS).",
	}
}
