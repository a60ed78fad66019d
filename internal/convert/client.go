package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	streamedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstore_convert_streamed_bytes_total",
		Help: "Bytes streamed to and from the conversion backend.",
	}, []string{"direction"})
)

// Request describes one conversion. Formats are MIME types.
type Request struct {
	SourcePath   string
	SourceFormat string
	TargetFormat string
	TargetPath   string
}

func (r Request) validate() error {
	switch {
	case r.SourcePath == "":
		return errors.New("source path is required")
	case r.TargetPath == "":
		return errors.New("target path is required")
	case r.TargetFormat == "":
		return errors.New("target format is required")
	}
	return nil
}

type Client struct {
	conn      grpc.ClientConnInterface
	chunkSize int
}

type Option func(*Client)

func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// NewClient returns a client using conn. The caller owns conn; many
// conversions may share it concurrently.
func NewClient(conn grpc.ClientConnInterface, opts ...Option) *Client {
	c := &Client{
		conn:      conn,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert streams the source file to the backend and writes the converted
// result to req.TargetPath. It returns nil only after the outbound side was
// closed, the backend closed the inbound side after a successful outcome, and
// the result was flushed, closed and renamed into place. On any failure no
// file is left at the target path or next to it.
func (c *Client) Convert(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return fmt.Errorf("invalid conversion request: %w", err)
	}

	t := &transfer{}
	log := slog.With(
		"source", req.SourcePath,
		"target", req.TargetPath,
		"from", req.SourceFormat,
		"to", req.TargetFormat,
	)

	src, err := os.Open(req.SourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	err = os.MkdirAll(filepath.Dir(req.TargetPath), 0755)
	if err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	partPath := fmt.Sprintf("%s.%s.part", req.TargetPath, uuid.NewString())
	dst, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("create part file: %w", err)
	}

	dstClosed := false
	committed := false
	defer func() {
		if committed {
			return
		}
		if !dstClosed {
			dst.Close()
		}
		if rmErr := os.Remove(partPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("failed to remove part file", "path", partPath, "error", rmErr)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The group context aborts the stream as soon as either direction fails.
	g, gctx := errgroup.WithContext(ctx)

	stream, err := c.conn.NewStream(gctx, &convertStreamDesc, convertMethod, grpc.ForceCodec(Codec{}))
	if err != nil {
		return t.fail(transportReason(err), err)
	}

	g.Go(func() error {
		return c.send(t, stream, src, req)
	})

	g.Go(func() error {
		return receive(t, stream, dst)
	})

	err = g.Wait()
	if err != nil {
		log.Debug("conversion failed", "phase", t.phase(), "error", err)
		return err
	}

	dstClosed = true
	err = dst.Close()
	if err != nil {
		return t.fail("closing converted file", err)
	}

	err = os.Rename(partPath, req.TargetPath)
	if err != nil {
		return t.fail("moving converted file into place", err)
	}
	committed = true
	t.record(evComplete)

	log.Debug("conversion complete", "phase", t.phase())
	return nil
}

func (c *Client) send(t *transfer, stream grpc.ClientStream, src io.Reader, req Request) error {
	t.record(evMetaSending)
	err := stream.SendMsg(&MetaFrame{
		SourceFormat: req.SourceFormat,
		TargetFormat: req.TargetFormat,
	})
	if err != nil {
		return sendError(t, err)
	}

	t.record(evStreamingOut)
	buf := make([]byte, c.chunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			err = stream.SendMsg(&ChunkFrame{Data: buf[:n]})
			if err != nil {
				return sendError(t, err)
			}
			streamedBytesTotal.WithLabelValues("out").Add(float64(n))
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return t.fail("reading source", readErr)
		}
	}

	err = stream.CloseSend()
	if err != nil {
		return sendError(t, err)
	}
	t.record(evOutClosed)
	return nil
}

// sendError handles a failed SendMsg. io.EOF means the backend already ended
// the stream; its status is reported by the receiving side, so the outbound
// direction simply counts as closed.
func sendError(t *transfer, err error) error {
	if errors.Is(err, io.EOF) {
		t.record(evOutClosed)
		return nil
	}
	return t.fail(transportReason(err), err)
}

func receive(t *transfer, stream grpc.ClientStream, dst io.Writer) error {
	for {
		var env Envelope
		err := stream.RecvMsg(&env)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return t.fail(transportReason(err), err)
		}

		switch f := env.Frame.(type) {
		case *MetaFrame:
			if !f.Success {
				reason := f.Error
				if reason == "" {
					reason = "backend reported failure"
				}
				return t.fail(reason, nil)
			}
			t.record(evInMeta)
		case *ChunkFrame:
			_, err = dst.Write(f.Data)
			if err != nil {
				return t.fail("writing converted file", err)
			}
			streamedBytesTotal.WithLabelValues("in").Add(float64(len(f.Data)))
		}
	}

	if !t.has(evInMeta) {
		return t.fail("stream closed without an outcome", nil)
	}
	t.record(evInClosed)
	return nil
}

func transportReason(err error) string {
	if s, ok := status.FromError(err); ok {
		return s.Message()
	}
	return err.Error()
}
