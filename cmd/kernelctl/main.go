// Command kernelctl boots a kernel from a YAML configuration document
// and drives it from the command line: submitting one request, or
// independently verifying an exported evidence bundle.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint: dispatches on args[1] the way the
// rest of this module's wiring is exercised from tests, without ever
// reading os.Args or os.Std{out,err} directly outside of main.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "boot":
		return runBootCmd(args[2:], stdout, stderr)
	case "submit":
		return runSubmitCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "kernelctl: unknown command %q\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `kernelctl - boot and drive a kernel pipeline

Usage:
  kernelctl boot --config <path>
  kernelctl submit --config <path> --request <path|->
  kernelctl verify --bundle <path>`)
}
