package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func DevCmd() *cobra.Command {
	var withConverter bool

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the server with air hot reload, plus a local conversion backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(cmd.Context(), withConverter)
		},
	}
	cmd.Flags().BoolVar(&withConverter, "converter", true, "also run ./cmd/converter")
	return cmd
}

func runDev(ctx context.Context, withConverter bool) error {
	if _, err := exec.LookPath("air"); err != nil {
		fmt.Println("Missing binary: air")
		fmt.Println("Install with:")
		fmt.Println("  go install github.com/air-verse/air@latest")
		return fmt.Errorf("air not found")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := append(os.Environ(), "APP_ENV=development")

	if withConverter {
		converter := exec.CommandContext(ctx, "go", "run", "./cmd/converter")
		converter.Env = env
		converter.Stdout = os.Stdout
		converter.Stderr = os.Stderr
		if err := converter.Start(); err != nil {
			return fmt.Errorf("failed to start converter: %w", err)
		}
		defer converter.Wait()
		fmt.Println("==> Converter started, pid", converter.Process.Pid)
	}

	air := exec.CommandContext(ctx, "air",
		"-c", "/dev/null",
		"-root", ".",
		"-build.cmd", "go build -o ./tmp/main ./cmd/server",
		"-build.bin", "./tmp/main",
		"-build.delay", "100",
		"-build.exclude_dir", "bin,tmp,data,uploads,_examples",
		"-build.exclude_regex", "_test.go$",
		"-build.include_ext", "go,sql",
		"-build.kill_delay", "500ms",
		"-build.send_interrupt", "true",
	)
	air.Env = env
	air.Stdout = os.Stdout
	air.Stderr = os.Stderr

	err := air.Run()
	interrupted := ctx.Err() != nil

	// Stops the converter as well
	stop()

	if interrupted {
		return nil
	}
	return err
}
