package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mindburn-labs/kernels/pkg/types"
)

// runSubmitCmd boots a kernel from --config and submits one request
// read as JSON from --request (a file path, or "-" for stdin),
// printing the resulting receipt as JSON.
func runSubmitCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("submit", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configPath := cmd.String("config", "", "path to the kernel boot configuration (YAML, required)")
	requestPath := cmd.String("request", "-", "path to a JSON request, or - for stdin")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *configPath == "" {
		_, _ = fmt.Fprintln(stderr, "kernelctl submit: --config is required")
		return 2
	}

	var raw []byte
	var err error
	if *requestPath == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*requestPath)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "kernelctl submit: read request: %v\n", err)
		return 2
	}

	var req types.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		_, _ = fmt.Fprintf(stderr, "kernelctl submit: parse request: %v\n", err)
		return 2
	}

	k, err := bootFromConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "kernelctl submit: %v\n", err)
		return 1
	}

	receipt := k.Submit(context.Background(), req)

	out, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "kernelctl submit: encode receipt: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, string(out))

	if receipt.Status == types.StatusRejected {
		return 1
	}
	return 0
}
