// Command chainforge exercises the kernel generator against a gemm
// chain described as JSON — see internal/chainfile for the file shape.
// It does not parse the GEMM DSL itself; that remains the external
// frontend's job.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chainforge",
		Short: "Synthesize CUDA/HIP GEMM-chain kernels from a declarative chain file",
	}
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newNameCmd())
	return root
}
