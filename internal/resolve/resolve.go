// Package resolve is the resolver (C4): it validates the two implementation
// source paths, drives the artifact oracle for each side, and assembles the
// immutable domain.Resolved bundle the fan-out analyzers read from.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/oracleadapter"
)

// Input is the per-side information the core entry point's
// old_implementation_path/new_implementation_path and options.contract_name
// fields carry (spec.md §6.3).
type Input struct {
	OldPath      string
	NewPath      string
	ContractName string // optional; applies to both sides when set
}

// Service resolves both implementation sides via an oracleadapter.Oracle.
type Service struct {
	oracle oracleadapter.Oracle
	logger *slog.Logger
}

// New builds a Service over the given oracle.
func New(oracle oracleadapter.Oracle, logger *slog.Logger) *Service {
	return &Service{oracle: oracle, logger: logger.With("component", "resolve")}
}

// Resolve validates in.OldPath/in.NewPath, builds both projects, fetches
// their storage layout/ABI/AST, and returns the immutable Resolved bundle.
func (s *Service) Resolve(ctx context.Context, in Input) (domain.Resolved, error) {
	if strings.TrimSpace(in.OldPath) == "" || strings.TrimSpace(in.NewPath) == "" {
		return domain.Resolved{}, domain.NewInputInvalid("old_implementation_path and new_implementation_path are required", nil)
	}

	old, err := s.resolveSide(ctx, in.OldPath, in.ContractName)
	if err != nil {
		return domain.Resolved{}, fmt.Errorf("resolve old implementation: %w", err)
	}
	newSide, err := s.resolveSide(ctx, in.NewPath, in.ContractName)
	if err != nil {
		return domain.Resolved{}, fmt.Errorf("resolve new implementation: %w", err)
	}

	s.logger.Info("resolved both implementations",
		"old_contract", old.ContractName, "new_contract", newSide.ContractName)
	return domain.Resolved{Old: old, New: newSide}, nil
}

func (s *Service) resolveSide(ctx context.Context, path, contractName string) (domain.Side, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Side{}, domain.NewInputInvalid(fmt.Sprintf("path %q does not exist or is not readable", path), err)
	}
	if info.IsDir() {
		return domain.Side{}, domain.NewInputInvalid(fmt.Sprintf("path %q must point at a Solidity source file, not a directory", path), nil)
	}

	projectRoot := findProjectRoot(path)
	sourcePath, err := filepath.Rel(projectRoot, path)
	if err != nil {
		sourcePath = path
	}
	name := contractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := s.oracle.Build(ctx, projectRoot); err != nil {
		return domain.Side{}, err
	}
	layout, err := s.oracle.FetchStorageLayout(ctx, projectRoot, sourcePath, name)
	if err != nil {
		return domain.Side{}, err
	}
	abi, err := s.oracle.FetchABI(ctx, projectRoot, sourcePath, name)
	if err != nil {
		return domain.Side{}, err
	}
	ast, err := s.oracle.FetchAST(ctx, projectRoot, sourcePath, name)
	if err != nil {
		return domain.Side{}, err
	}
	return domain.Side{Path: path, ContractName: name, Layout: layout, ABI: abi, AST: ast}, nil
}

// findProjectRoot walks up from a source file looking for foundry.toml,
// the conventional Foundry project marker. Falls back to the file's own
// directory when no marker is found.
func findProjectRoot(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	for {
		if _, err := os.Stat(filepath.Join(dir, "foundry.toml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Dir(sourcePath)
		}
		dir = parent
	}
}
