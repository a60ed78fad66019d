package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultMaxInput bounds the size of a source file accepted by Server.
const DefaultMaxInput = 64 << 20

// Transcoder performs the actual format conversion for Server.
type Transcoder interface {
	CanEncode(format string) bool
	Transcode(ctx context.Context, src io.Reader, sourceFormat, targetFormat string, dst io.Writer) error
}

// Server is a conversion backend that buffers the source, transcodes it and
// streams the result back.
type Server struct {
	transcoder Transcoder
	chunkSize  int
	maxInput   int64
}

func NewServer(transcoder Transcoder) *Server {
	return &Server{
		transcoder: transcoder,
		chunkSize:  DefaultChunkSize,
		maxInput:   DefaultMaxInput,
	}
}

func (s *Server) Convert(stream *ServerStream) error {
	ctx := stream.Context()

	first, err := stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return status.Error(codes.InvalidArgument, "empty conversion stream")
		}
		return err
	}
	meta, ok := first.(*MetaFrame)
	if !ok {
		return status.Error(codes.InvalidArgument, "first frame must be a meta frame")
	}

	log := slog.With("from", meta.SourceFormat, "to", meta.TargetFormat)

	if !s.transcoder.CanEncode(meta.TargetFormat) {
		log.Info("rejecting conversion", "reason", "unsupported target format")
		return stream.Send(&MetaFrame{Error: fmt.Sprintf("unsupported target format %q", meta.TargetFormat)})
	}

	var src bytes.Buffer
	for {
		frame, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		chunk, ok := frame.(*ChunkFrame)
		if !ok {
			return status.Error(codes.InvalidArgument, "unexpected meta frame after the first")
		}
		if int64(src.Len()+len(chunk.Data)) > s.maxInput {
			return stream.Send(&MetaFrame{Error: "source file too large"})
		}
		src.Write(chunk.Data)
	}

	var out bytes.Buffer
	err = s.transcoder.Transcode(ctx, &src, meta.SourceFormat, meta.TargetFormat, &out)
	if err != nil {
		log.Info("conversion failed", "error", err)
		return stream.Send(&MetaFrame{Error: err.Error()})
	}

	err = stream.Send(&MetaFrame{Success: true})
	if err != nil {
		return err
	}

	size := out.Len()
	for out.Len() > 0 {
		err = stream.Send(&ChunkFrame{Data: out.Next(s.chunkSize)})
		if err != nil {
			return err
		}
	}

	log.Debug("conversion served", "bytes", size)
	return nil
}
