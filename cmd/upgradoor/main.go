// Package main is the upgradoor CLI: a direct, in-process driver of
// engine.Analyze implementing the exit-code contract (spec.md §6.4).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/chainadapter"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/config"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/engine"
	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/oracleadapter"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("upgradoor", flag.ContinueOnError)
	var (
		proxyAddr    = flags.String("proxy", "", "proxy contract address (0x...)")
		oldPath      = flags.String("old", "", "path to the old implementation's Solidity source")
		newPath      = flags.String("new", "", "path to the new implementation's Solidity source")
		contractName = flags.String("contract", "", "contract name, if it differs from the source file's basename")
		reportOut    = flags.String("report", "", "write the Markdown report to this path instead of stdout")
		jsonOut      = flags.Bool("json", false, "print the result as JSON instead of the Markdown report")
		showVersion  = flags.Bool("version", false, "print version and exit")
		verbose      = flags.Bool("verbose", false, "enable debug logging")
	)

	if err := flags.Parse(args); err != nil {
		return 10
	}

	if *showVersion {
		fmt.Printf("upgradoor version %s\n", version)
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if *proxyAddr == "" || *oldPath == "" || *newPath == "" {
		fmt.Fprintln(os.Stderr, "usage: upgradoor -proxy 0x... -old old/Impl.sol -new new/Impl.sol [-contract Name] [-report out.md] [-json]")
		return 10
	}

	proxy, err := domain.AddressFromHex(*proxyAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -proxy: %v\n", err)
		return 10
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 12
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	chain, err := chainadapter.New(ctx, chainadapter.Config{
		RPCEndpoint:       cfg.RPC.Endpoint,
		RequestsPerSecond: cfg.RPC.RequestsPerSecond,
		Burst:             cfg.RPC.Burst,
		DialTimeout:       cfg.RPC.DialTimeout,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to dial chain RPC endpoint: %v\n", err)
		return 12
	}
	defer chain.Close()

	oracle := oracleadapter.NewForgeOracle(oracleadapter.Config{
		ForgeBinary:       cfg.Toolchain.ForgeBinary,
		CommandTimeout:    cfg.Toolchain.CommandTimeout,
		RequestsPerSecond: cfg.Toolchain.RequestsPerSecond,
		Burst:             cfg.Toolchain.Burst,
	}, logger)

	eng := engine.New(chain, oracle, logger)

	result, err := eng.Analyze(ctx, engine.Input{
		ProxyAddress:          proxy,
		OldImplementationPath: *oldPath,
		NewImplementationPath: *newPath,
		ContractName:          *contractName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis aborted: %v\n", err)
		return exitCodeForError(err)
	}

	if err := writeOutput(result, *reportOut, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		return 12
	}

	return result.ExitCode()
}

// exitCodeForError maps the closed EngineError taxonomy (spec.md §7) to the
// process exit code per the exit-code table (spec.md §6.4): an input
// validation error is 10, any other runtime error is 12.
func exitCodeForError(err error) int {
	if domain.KindOf(err) == domain.ErrKindInputInvalid {
		return 10
	}
	return 12
}

func writeOutput(result domain.EngineResult, reportPath string, asJSON bool) error {
	if asJSON {
		return printJSON(result)
	}
	if reportPath == "" {
		fmt.Println(result.ReportMarkdown)
		return nil
	}
	return os.WriteFile(reportPath, []byte(result.ReportMarkdown), 0644)
}

func printJSON(result domain.EngineResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
