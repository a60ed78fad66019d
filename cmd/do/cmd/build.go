package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

var binaries = []string{"server", "converter", "do"}

func BuildCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the server, converter and do binaries into bin/",
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(outDir)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "bin", "output directory")
	return cmd
}

func build(outDir string) error {
	if _, err := exec.LookPath("go"); err != nil {
		return fmt.Errorf("missing required binary: go")
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	for _, name := range binaries {
		fmt.Println("==> Building", name)
		out := filepath.Join(outDir, name)
		if err := run("go", "build", "-trimpath", "-o", out, "./cmd/"+name); err != nil {
			return fmt.Errorf("go build %s failed: %w", name, err)
		}
	}

	fmt.Println("==> Done!")
	return nil
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
