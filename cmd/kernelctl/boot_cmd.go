package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/mindburn-labs/kernels/pkg/config"
	"github.com/mindburn-labs/kernels/pkg/kernel"
	"github.com/mindburn-labs/kernels/pkg/observability"
	"github.com/mindburn-labs/kernels/pkg/variant"
)

// runBootCmd loads a kernel configuration document, boots a kernel from
// it, and reports its resolved identity and state. It never keeps the
// kernel alive past the command — a one-shot boot smoke test.
func runBootCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("boot", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configPath := cmd.String("config", "", "path to the kernel boot configuration (YAML, required)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *configPath == "" {
		_, _ = fmt.Fprintln(stderr, "kernelctl boot: --config is required")
		return 2
	}

	k, err := bootFromConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "kernelctl boot: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "kernel_id=%s variant=%s state=%s\n", k.KernelID(), k.Variant(), k.State())
	return 0
}

// bootFromConfig loads doc from path and boots a kernel using it. Shared
// between the boot and submit subcommands so both build the exact same
// Config from the same document.
func bootFromConfig(path string) (*kernel.Kernel, error) {
	doc, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	var obsProvider *observability.Provider
	if doc.Observability.Enabled {
		obsProvider, err = observability.New(context.Background(), observability.Config{
			KernelID:     doc.KernelID,
			Variant:      doc.Variant,
			OTLPEndpoint: doc.Observability.OTLPEndpoint,
			Insecure:     doc.Observability.Insecure,
			Enabled:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("kernelctl: observability: %w", err)
		}
	}

	k, err := kernel.Boot(kernel.Config{
		KernelID:           doc.KernelID,
		Variant:            variant.Name(doc.Variant),
		HashAlgorithm:      doc.HashAlgorithm,
		AppendDenialOnHalt: doc.AppendDenialOnHalt,
		Observability:      obsProvider,
		Logger:             slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("kernelctl: boot: %w", err)
	}
	return k, nil
}
