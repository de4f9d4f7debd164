// Package analyze holds the five pure fan-out analyzers (C5-C9) and the
// aggregator (C10). None of these functions perform I/O or suspend; each is
// a pure function of the Resolved bundle (and, for the upgrade-auth
// checker's Transparent branch, of ProxyInfo).
package analyze

import (
	"fmt"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// StorageLayout diffs old.Layout against new.Layout and returns the
// STOR-* findings (spec.md §4.2).
//
// Insertion-vs-deletion disambiguation is label-based: a deleted (slot,
// offset) pair is suppressed from STOR-001 if the same label reappears at
// a higher slot in the new layout. This is a documented heuristic (spec.md
// §9) — reused labels across unrelated variables can produce a false
// suppression.
func StorageLayout(old, new domain.StorageLayout) domain.AnalyzerOutcome {
	oldNonGap := old.NonGap()
	newNonGap := new.NonGap()

	newByKey := make(map[domain.StorageKey]domain.StorageEntry, len(newNonGap))
	for _, e := range newNonGap {
		newByKey[e.Key()] = e
	}
	newLabelMaxSlot := make(map[string]uint64)
	for _, e := range newNonGap {
		if cur, ok := newLabelMaxSlot[e.Label]; !ok || e.Slot > cur {
			newLabelMaxSlot[e.Label] = e.Slot
		}
	}

	var findings []domain.Finding

	for _, oldEntry := range oldNonGap {
		newEntry, present := newByKey[oldEntry.Key()]
		if !present {
			if maxSlot, ok := newLabelMaxSlot[oldEntry.Label]; ok && maxSlot > oldEntry.Slot {
				continue // suppressed: reported as a STOR-002 insertion or STOR-009 append instead
			}
			findings = append(findings, deletedFinding(oldEntry))
			continue
		}
		if newEntry.LengthBytes != oldEntry.LengthBytes {
			findings = append(findings, widthChangedFinding(oldEntry, newEntry))
			continue
		}
		if newEntry.CanonicalType != oldEntry.CanonicalType {
			findings = append(findings, typeChangedFinding(oldEntry, newEntry))
			continue
		}
		if newEntry.Label != oldEntry.Label {
			findings = append(findings, renamedFinding(oldEntry, newEntry))
		}
	}

	var maxOldSlot uint64
	for _, e := range oldNonGap {
		if e.Slot > maxOldSlot {
			maxOldSlot = e.Slot
		}
	}
	oldByKey := make(map[domain.StorageKey]bool, len(oldNonGap))
	for _, e := range oldNonGap {
		oldByKey[e.Key()] = true
	}

	var appended []domain.StorageEntry
	for _, newEntry := range newNonGap {
		if oldByKey[newEntry.Key()] {
			continue
		}
		if len(oldNonGap) > 0 && newEntry.Slot <= maxOldSlot {
			findings = append(findings, insertedFinding(newEntry))
			continue
		}
		appended = append(appended, newEntry)
	}
	if len(appended) > 0 {
		findings = append(findings, appendedFinding(appended))
	}

	findings = append(findings, validateGaps(old.Gaps(), new.Gaps(), len(appended))...)

	return domain.Completed(findings)
}

func validateGaps(oldGaps, newGaps []domain.StorageEntry, appendedCount int) []domain.Finding {
	newGapBySlot := make(map[uint64]domain.StorageEntry, len(newGaps))
	for _, g := range newGaps {
		newGapBySlot[g.Slot] = g
	}

	var findings []domain.Finding
	for _, oldGap := range oldGaps {
		newGap, present := newGapBySlot[oldGap.Slot]
		if !present {
			findings = append(findings, gapRemovedFinding(oldGap))
			continue
		}
		nOld, _ := oldGap.GapSize()
		nNew, _ := newGap.GapSize()
		if nNew+appendedCount < nOld {
			findings = append(findings, gapInsufficientFinding(oldGap, newGap, nOld, nNew, appendedCount))
		}
	}
	return findings
}

func slotLoc(e domain.StorageEntry) *domain.Location {
	slot := e.Slot
	offset := e.Offset
	return &domain.Location{Slot: &slot, Offset: &offset}
}

func deletedFinding(e domain.StorageEntry) domain.Finding {
	return domain.Finding{
		Code:        "STOR-001",
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Storage variable deleted",
		Description: fmt.Sprintf("Variable %q at slot %d offset %d exists in the old layout but has no counterpart in the new layout.", e.Label, e.Slot, e.Offset),
		Details:     map[string]any{"label": e.Label, "type": e.CanonicalType},
		Location:    slotLoc(e),
		Remediation: "Do not remove or relocate existing state variables across an upgrade; append new variables instead.",
	}
}

func widthChangedFinding(old, new domain.StorageEntry) domain.Finding {
	return domain.Finding{
		Code:        "STOR-003",
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Storage variable width changed",
		Description: fmt.Sprintf("Variable at slot %d offset %d changed byte width from %d to %d.", old.Slot, old.Offset, old.LengthBytes, new.LengthBytes),
		Details:     map[string]any{"old_type": old.CanonicalType, "new_type": new.CanonicalType},
		Location:    slotLoc(old),
		Remediation: "Preserve the exact byte width of existing storage slots across an upgrade.",
	}
}

func typeChangedFinding(old, new domain.StorageEntry) domain.Finding {
	return domain.Finding{
		Code:        "STOR-004",
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Storage variable semantics changed",
		Description: fmt.Sprintf("Variable at slot %d offset %d changed type from %q to %q with the same byte width.", old.Slot, old.Offset, old.CanonicalType, new.CanonicalType),
		Location:    slotLoc(old),
		Remediation: "Changing a variable's type while preserving its width can silently reinterpret existing data; revert or migrate explicitly.",
	}
}

func renamedFinding(old, new domain.StorageEntry) domain.Finding {
	return domain.Finding{
		Code:        "STOR-010",
		Severity:    domain.SeverityLow,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Storage variable renamed",
		Description: fmt.Sprintf("Variable at slot %d offset %d was renamed from %q to %q; layout and type are unchanged.", old.Slot, old.Offset, old.Label, new.Label),
		Location:    slotLoc(old),
		Remediation: "Informational only; renames don't affect storage compatibility.",
	}
}

func insertedFinding(e domain.StorageEntry) domain.Finding {
	return domain.Finding{
		Code:        "STOR-002",
		Severity:    domain.SeverityCritical,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Storage variable inserted in the middle of the layout",
		Description: fmt.Sprintf("New variable %q at slot %d offset %d falls within the range already occupied by the old layout, shifting everything after it.", e.Label, e.Slot, e.Offset),
		Location:    slotLoc(e),
		Remediation: "Append new variables after the old layout's highest slot; never insert between existing variables.",
	}
}

func appendedFinding(entries []domain.StorageEntry) domain.Finding {
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label
	}
	return domain.Finding{
		Code:        "STOR-009",
		Severity:    domain.SeverityMedium,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Storage variables appended",
		Description: fmt.Sprintf("%d new variable(s) appended after the old layout's highest slot.", len(entries)),
		Details:     map[string]any{"labels": labels},
		Remediation: "Appended variables are storage-compatible; confirm they weren't meant to reuse a storage gap.",
	}
}

func gapRemovedFinding(oldGap domain.StorageEntry) domain.Finding {
	return domain.Finding{
		Code:        "STOR-008",
		Severity:    domain.SeverityHigh,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Storage gap removed",
		Description: fmt.Sprintf("Gap %q at slot %d exists in the old layout but has no counterpart at the same slot in the new layout.", oldGap.Label, oldGap.Slot),
		Location:    slotLoc(oldGap),
		Remediation: "Preserve storage gaps at their original slot; shrink or reuse them only by reducing their declared size and accounting for the difference.",
	}
}

func gapInsufficientFinding(oldGap, newGap domain.StorageEntry, nOld, nNew, appended int) domain.Finding {
	shortfall := nOld - (nNew + appended)
	return domain.Finding{
		Code:        "STOR-007",
		Severity:    domain.SeverityHigh,
		Confidence:  domain.ConfidenceHigh,
		Title:       "Storage gap capacity insufficient",
		Description: fmt.Sprintf("Gap at slot %d shrank from %d to %d slots, but %d new variable(s) were appended; %d slot(s) of capacity are missing.", oldGap.Slot, nOld, nNew, appended, shortfall),
		Details:     map[string]any{"old_size": nOld, "new_size": nNew, "appended_count": appended, "shortfall": shortfall},
		Location:    slotLoc(newGap),
		Remediation: "The gap's remaining capacity plus any newly appended variables must cover the original gap size, or descendant contracts' storage will shift.",
	}
}
