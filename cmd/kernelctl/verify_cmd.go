package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mindburn-labs/kernels/pkg/evidence"
	"github.com/mindburn-labs/kernels/pkg/replay"
)

// runVerifyCmd independently re-verifies an exported evidence bundle's
// hash chain (spec §4.8), without needing a live kernel.
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundlePath := cmd.String("bundle", "", "path to an exported evidence bundle JSON file (required)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *bundlePath == "" {
		_, _ = fmt.Fprintln(stderr, "kernelctl verify: --bundle is required")
		return 2
	}

	raw, err := os.ReadFile(*bundlePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "kernelctl verify: %v\n", err)
		return 2
	}

	var bundle evidence.Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		_, _ = fmt.Fprintf(stderr, "kernelctl verify: parse bundle: %v\n", err)
		return 2
	}

	result, err := replay.Verify(bundle.LedgerEntries, bundle.RootHash)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "kernelctl verify: %v\n", err)
		return 2
	}

	if result.Valid {
		_, _ = fmt.Fprintf(stdout, "OK: %d entries, root %s\n", result.TotalEntries, result.RootHash)
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "TAMPERED: %d entries, %d error(s)\n", result.TotalEntries, len(result.Errors))
	for _, e := range result.Errors {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", e)
	}
	return 1
}
