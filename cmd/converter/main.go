package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/templui/reelstore/internal/config"
	"github.com/templui/reelstore/internal/convert"
	"github.com/templui/reelstore/internal/imaging"
	"github.com/templui/reelstore/internal/logger"
)

func main() {
	cfg := config.LoadConverter()

	flush := logger.Init("converter", cfg.IsDevelopment(), cfg.SentryDSN)
	defer flush()

	lis, err := net.Listen("tcp", cfg.ConverterListen)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.ConverterListen, "error", err)
		os.Exit(1)
	}

	srv := grpc.NewServer(grpc.ForceServerCodec(convert.Codec{}))
	convert.RegisterConverterServer(srv, convert.NewServer(imaging.NewTranscoder(cfg.JPEGQuality)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("converter shutting down")

		// In-flight conversions get a grace period before streams are cut
		done := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			srv.Stop()
		}
	}()

	slog.Info("converter starting", "addr", lis.Addr().String(), "env", cfg.AppEnv)

	err = srv.Serve(lis)
	if err != nil {
		slog.Error("converter failed", "error", err)
		os.Exit(1)
	}
}
