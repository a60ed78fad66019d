package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/templui/reelstore/internal/config"
	"github.com/templui/reelstore/internal/convert"
	"github.com/templui/reelstore/internal/format"
)

func ConvertCmd() *cobra.Command {
	var (
		addr      string
		src       string
		from      string
		to        string
		out       string
		chunkSize int
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a file through a running conversion backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = config.LoadConverter().ConverterAddr
			}
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			client := convert.NewClient(conn, convert.WithChunkSize(chunkSize))
			err = client.Convert(ctx, convert.Request{
				SourcePath:   src,
				SourceFormat: format.Normalize(from),
				TargetFormat: format.Normalize(to),
				TargetPath:   out,
			})
			if err != nil {
				return err
			}

			info, err := os.Stat(out)
			if err != nil {
				return err
			}
			fmt.Printf("==> Wrote %s (%d bytes) in %s\n", out, info.Size(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "conversion backend address (default CONVERTER_ADDR or localhost:50051)")
	cmd.Flags().StringVar(&src, "src", "", "source file")
	cmd.Flags().StringVar(&from, "from", "", "source format (png, image/png, ...)")
	cmd.Flags().StringVar(&to, "to", "", "target format")
	cmd.Flags().StringVar(&out, "out", "", "output file")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", convert.DefaultChunkSize, "outbound chunk size in bytes")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "conversion timeout")
	cmd.MarkFlagRequired("src")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("out")
	return cmd
}
