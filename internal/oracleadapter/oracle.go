// Package oracleadapter is the artifact-oracle adapter (C1): it shells out
// to an external Solidity toolchain (Foundry's forge) and normalizes its
// output into the storage layout / ABI / AST shapes the rest of the engine
// consumes. The core never invokes a compiler directly; this package is the
// narrow interface through which it treats the toolchain as an oracle.
package oracleadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/time/rate"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// Oracle is the capability set spec.md §6.1 requires: a health probe, a
// build step, and three artifact fetches, all keyed by
// (project root, source path, contract name).
type Oracle interface {
	Probe(ctx context.Context) error
	Build(ctx context.Context, projectRoot string) error
	FetchStorageLayout(ctx context.Context, projectRoot, sourcePath, contractName string) (domain.StorageLayout, error)
	FetchABI(ctx context.Context, projectRoot, sourcePath, contractName string) (domain.Abi, error)
	FetchAST(ctx context.Context, projectRoot, sourcePath, contractName string) (domain.ContractAst, error)
}

// ForgeOracle shells out to the Foundry `forge` binary. Each capability maps
// to one `forge inspect`/`forge build` invocation.
type ForgeOracle struct {
	forgePath string
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Config configures the forge process adapter.
type Config struct {
	ForgeBinary       string // defaults to "forge", resolved via PATH
	CommandTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewForgeOracle builds a ForgeOracle without probing; call Probe before use.
func NewForgeOracle(cfg Config, logger *slog.Logger) *ForgeOracle {
	bin := cfg.ForgeBinary
	if bin == "" {
		bin = "forge"
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &ForgeOracle{
		forgePath: bin,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		logger:    logger.With("component", "oracleadapter"),
	}
}

// Probe resolves the forge binary on PATH. Failure is ToolchainUnavailable.
func (o *ForgeOracle) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(o.forgePath); err != nil {
		return domain.NewToolchainUnavailable(fmt.Sprintf("forge binary %q not found on PATH", o.forgePath), err)
	}
	return nil
}

// Build compiles the project at projectRoot. Failure carries forge's stderr
// output verbatim, per spec.md §7's ToolchainFailure contract.
func (o *ForgeOracle) Build(ctx context.Context, projectRoot string) error {
	out, err := o.run(ctx, projectRoot, "build")
	if err != nil {
		return domain.NewToolchainFailure(out, err)
	}
	return nil
}

func (o *ForgeOracle) run(ctx context.Context, projectRoot string, args ...string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, o.forgePath, args...)
	cmd.Dir = projectRoot
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	o.logger.Debug("running forge", "args", args, "root", projectRoot)
	err := cmd.Run()
	if err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return diag, err
	}
	return stdout.String(), nil
}

func contractRef(sourcePath, contractName string) string {
	return sourcePath + ":" + contractName
}

// --- storage layout ---------------------------------------------------

type rawStorageType struct {
	Encoding   string `json:"encoding"`
	HumanLabel string `json:"label"`
	ByteSize   string `json:"numberOfBytes"`
}

type rawStorageEntry struct {
	Label    string `json:"label"`
	Offset   uint8  `json:"offset"`
	Slot     string `json:"slot"`
	TypeID   string `json:"type"`
	Contract string `json:"contract"`
}

type rawStorageLayout struct {
	Storage []rawStorageEntry          `json:"storage"`
	Types   map[string]rawStorageType `json:"types"`
}

// FetchStorageLayout runs `forge inspect <ref> storageLayout --json` and
// normalizes the result into a domain.StorageLayout.
func (o *ForgeOracle) FetchStorageLayout(ctx context.Context, projectRoot, sourcePath, contractName string) (domain.StorageLayout, error) {
	out, err := o.run(ctx, projectRoot, "inspect", "--json", contractRef(sourcePath, contractName), "storageLayout")
	if err != nil {
		return nil, domain.NewToolchainFailure(out, err)
	}
	var raw rawStorageLayout
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, domain.NewToolchainFailure(fmt.Sprintf("decode storage layout for %s: %v", contractRef(sourcePath, contractName), err), err)
	}
	layout := make(domain.StorageLayout, 0, len(raw.Storage))
	for idx, entry := range raw.Storage {
		typ, ok := raw.Types[entry.TypeID]
		if !ok {
			return nil, domain.NewToolchainFailure(fmt.Sprintf("storage entry %q references unknown type %q", entry.Label, entry.TypeID), nil)
		}
		slot, err := parseSlot(entry.Slot)
		if err != nil {
			return nil, domain.NewToolchainFailure(fmt.Sprintf("storage entry %q has malformed slot %q: %v", entry.Label, entry.Slot, err), err)
		}
		byteSize, err := strconv.Atoi(typ.ByteSize)
		if err != nil {
			return nil, domain.NewToolchainFailure(fmt.Sprintf("type %q has malformed numberOfBytes %q: %v", entry.TypeID, typ.ByteSize, err), err)
		}
		layout = append(layout, domain.StorageEntry{
			Slot:           slot,
			Offset:         entry.Offset,
			LengthBytes:    uint8(byteSize),
			CanonicalType:  normalizeType(typ.HumanLabel),
			Label:          entry.Label,
			Origin:         entry.Contract,
			DeclarationIdx: uint32(idx),
		})
	}
	return layout, nil
}

func parseSlot(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// normalizeType applies the alias normalization spec.md §3 requires
// (e.g. "uint" -> "uint256").
func normalizeType(t string) string {
	switch t {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	default:
		return t
	}
}

// --- ABI ---------------------------------------------------------------

type rawAbiParam struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed"`
}

type rawAbiItem struct {
	Type            string        `json:"type"`
	Name            string        `json:"name"`
	Inputs          []rawAbiParam `json:"inputs"`
	Outputs         []rawAbiParam `json:"outputs"`
	StateMutability string        `json:"stateMutability"`
}

// FetchABI runs `forge inspect <ref> abi --json` and normalizes the result
// into a domain.Abi, deriving selectors and topic0 hashes via Keccak-256.
func (o *ForgeOracle) FetchABI(ctx context.Context, projectRoot, sourcePath, contractName string) (domain.Abi, error) {
	out, err := o.run(ctx, projectRoot, "inspect", "--json", contractRef(sourcePath, contractName), "abi")
	if err != nil {
		return domain.Abi{}, domain.NewToolchainFailure(out, err)
	}
	var items []rawAbiItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		return domain.Abi{}, domain.NewToolchainFailure(fmt.Sprintf("decode abi for %s: %v", contractRef(sourcePath, contractName), err), err)
	}
	var abi domain.Abi
	for _, item := range items {
		switch item.Type {
		case "function":
			inputs := paramTypes(item.Inputs)
			sig := item.Name + "(" + strings.Join(inputs, ",") + ")"
			abi.Functions = append(abi.Functions, domain.FunctionSig{
				Selector:   selectorOf(sig),
				Name:       item.Name,
				Inputs:     inputs,
				Outputs:    paramTypes(item.Outputs),
				Mutability: mutabilityOf(item.StateMutability),
			})
		case "event":
			var inputs []domain.EventInput
			types := make([]string, 0, len(item.Inputs))
			for _, p := range item.Inputs {
				inputs = append(inputs, domain.EventInput{Type: p.Type, Indexed: p.Indexed})
				types = append(types, p.Type)
			}
			sig := item.Name + "(" + strings.Join(types, ",") + ")"
			abi.Events = append(abi.Events, domain.EventSig{
				Topic0: topic0Of(sig),
				Name:   item.Name,
				Inputs: inputs,
			})
		}
	}
	return abi, nil
}

func paramTypes(params []rawAbiParam) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

func mutabilityOf(s string) domain.Mutability {
	switch s {
	case "pure":
		return domain.MutabilityPure
	case "view":
		return domain.MutabilityView
	case "payable":
		return domain.MutabilityPayable
	default:
		return domain.MutabilityNonpayable
	}
}

// selectorOf derives a 4-byte function selector from its canonical signature.
func selectorOf(canonicalSig string) domain.Selector {
	hash := crypto.Keccak256([]byte(canonicalSig))
	var sel domain.Selector
	copy(sel[:], hash[:4])
	return sel
}

// topic0Of derives the 32-byte event topic0 from its canonical signature.
func topic0Of(canonicalSig string) domain.TopicHash {
	hash := crypto.Keccak256([]byte(canonicalSig))
	var t domain.TopicHash
	copy(t[:], hash)
	return t
}

// --- AST -----------------------------------------------------------------

type rawBuildInfo struct {
	Output struct {
		Sources map[string]struct {
			AST json.RawMessage `json:"ast"`
		} `json:"sources"`
	} `json:"output"`
}

// FetchAST runs `forge inspect <ref> ast --json` and projects the tree into
// a ContractAst: one FunctionDecl per FunctionDefinition node, extracted
// once rather than re-walked per analyzer (spec.md §9).
func (o *ForgeOracle) FetchAST(ctx context.Context, projectRoot, sourcePath, contractName string) (domain.ContractAst, error) {
	out, err := o.run(ctx, projectRoot, "inspect", "--json", contractRef(sourcePath, contractName), "ast")
	if err != nil {
		return domain.ContractAst{}, domain.NewToolchainFailure(out, err)
	}
	var root any
	if err := json.Unmarshal([]byte(out), &root); err != nil {
		return domain.ContractAst{}, domain.NewToolchainFailure(fmt.Sprintf("decode ast for %s: %v", contractRef(sourcePath, contractName), err), err)
	}
	contractNode := findContractNode(root, contractName)
	if contractNode == nil {
		return domain.ContractAst{}, domain.NewContractAmbiguous(fmt.Sprintf("no ContractDefinition node named %q in ast", contractName), nil)
	}
	var functions []domain.FunctionDecl
	for _, node := range arrayField(contractNode, "nodes") {
		if nodeType(node) != "FunctionDefinition" {
			continue
		}
		functions = append(functions, projectFunction(node))
	}
	return domain.ContractAst{Name: contractName, Functions: functions}, nil
}

func nodeType(n any) string {
	m, ok := n.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m["nodeType"].(string)
	return s
}

func arrayField(n any, field string) []any {
	m, ok := n.(map[string]any)
	if !ok {
		return nil
	}
	arr, _ := m[field].([]any)
	return arr
}

func stringField(n any, field string) string {
	m, ok := n.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[field].(string)
	return s
}

// findContractNode walks the whole tree looking for a ContractDefinition
// node with the given name. It descends into every "nodes"-shaped child
// collection regardless of where in the tree it sits, since a multi-file
// build-info document nests sources arbitrarily.
func findContractNode(n any, name string) any {
	m, ok := n.(map[string]any)
	if ok {
		if nodeType(n) == "ContractDefinition" && stringField(n, "name") == name {
			return n
		}
		for _, v := range m {
			if found := findContractNode(v, name); found != nil {
				return found
			}
		}
		return nil
	}
	if arr, ok := n.([]any); ok {
		for _, item := range arr {
			if found := findContractNode(item, name); found != nil {
				return found
			}
		}
	}
	return nil
}

func projectFunction(node any) domain.FunctionDecl {
	m, _ := node.(map[string]any)
	decl := domain.FunctionDecl{
		Name:       stringField(node, "name"),
		Kind:       functionKindOf(stringField(node, "kind")),
		Visibility: visibilityOf(stringField(node, "visibility")),
		BodyCalls:  map[string]bool{},
	}
	for _, modNode := range arrayField(node, "modifiers") {
		modMap, _ := modNode.(map[string]any)
		if modMap == nil {
			continue
		}
		nameNode, _ := modMap["modifierName"].(map[string]any)
		if nameNode == nil {
			continue
		}
		if name, _ := nameNode["name"].(string); name != "" {
			decl.Modifiers = append(decl.Modifiers, name)
		}
	}
	body, hasBody := m["body"]
	if hasBody && body != nil {
		decl.HasBody = true
		decl.BodyStatementCount = len(arrayField(body, "statements"))
		decl.BodyReferencesSender = referencesSender(body)
		decl.BodyHasStorageAssign = hasAssignment(body)
		collectCalls(body, decl.BodyCalls)
	}
	return decl
}

func functionKindOf(k string) domain.FunctionKind {
	switch k {
	case "constructor":
		return domain.FunctionConstructor
	case "fallback":
		return domain.FunctionFallback
	case "receive":
		return domain.FunctionReceive
	default:
		return domain.FunctionRegular
	}
}

func visibilityOf(v string) domain.Visibility {
	switch v {
	case "external":
		return domain.VisibilityExternal
	case "internal":
		return domain.VisibilityInternal
	case "private":
		return domain.VisibilityPrivate
	default:
		return domain.VisibilityPublic
	}
}

// referencesSender degrades to structural matching over the serialized tree,
// per spec.md §9: true if the subtree contains a MemberAccess node whose
// memberName is "sender" (the accessed expression is not checked, so any
// `x.sender` matches, not only `msg.sender`), or a FunctionCall to an
// Identifier named "_msgSender".
func referencesSender(n any) bool {
	found := false
	walk(n, func(node any) {
		if found {
			return
		}
		if nodeType(node) == "MemberAccess" && stringField(node, "memberName") == "sender" {
			found = true
			return
		}
		if nodeType(node) == "FunctionCall" {
			m, _ := node.(map[string]any)
			expr, _ := m["expression"].(map[string]any)
			if expr != nil && nodeType(expr) == "Identifier" && stringField(expr, "name") == "_msgSender" {
				found = true
			}
		}
	})
	return found
}

// hasAssignment reports whether the subtree contains any Assignment node.
// A faithful AST implementation would confirm the left-hand side resolves
// to a state variable; this degrades to "any assignment at all" per the
// substring-matching allowance in spec.md §9.
func hasAssignment(n any) bool {
	found := false
	walk(n, func(node any) {
		if nodeType(node) == "Assignment" {
			found = true
		}
	})
	return found
}

// collectCalls records the callee identifier name of every FunctionCall
// node in the subtree, used to detect the conventional
// "_disableInitializers" constructor call (INIT-005).
func collectCalls(n any, calls map[string]bool) {
	walk(n, func(node any) {
		if nodeType(node) != "FunctionCall" {
			return
		}
		m, _ := node.(map[string]any)
		expr, _ := m["expression"].(map[string]any)
		if expr == nil {
			return
		}
		if name := stringField(expr, "name"); name != "" {
			calls[name] = true
		}
	})
}

// walk visits every map/array node in the tree, calling visit on each map
// node encountered.
func walk(n any, visit func(any)) {
	switch v := n.(type) {
	case map[string]any:
		visit(v)
		for _, child := range v {
			walk(child, visit)
		}
	case []any:
		for _, child := range v {
			walk(child, visit)
		}
	}
}
