// Package convert implements the streaming conversion protocol: a single
// bidirectional gRPC stream carrying meta frames and chunk frames in both directions.
package convert

import (
	"bytes"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultChunkSize is the size of outbound chunk frames.
const DefaultChunkSize = 1024

// Field numbers, see api/convert/v1/convert.proto.
const (
	fieldMeta  protowire.Number = 1
	fieldChunk protowire.Number = 2

	metaSourceFormat protowire.Number = 1
	metaTargetFormat protowire.Number = 2
	metaSuccess      protowire.Number = 3
	metaError        protowire.Number = 4
)

var ErrMalformedFrame = errors.New("malformed frame")

// Frame is either a *MetaFrame or a *ChunkFrame.
type Frame interface {
	isFrame()
}

// MetaFrame carries control information. The client fills the formats,
// the backend fills the outcome.
type MetaFrame struct {
	SourceFormat string
	TargetFormat string
	Success      bool
	Error        string
}

// ChunkFrame carries one fragment of file bytes.
type ChunkFrame struct {
	Data []byte
}

func (*MetaFrame) isFrame()  {}
func (*ChunkFrame) isFrame() {}

// Envelope is the receive target for frames of either kind.
type Envelope struct {
	Frame Frame
}

func MarshalFrame(f Frame) ([]byte, error) {
	switch f := f.(type) {
	case *MetaFrame:
		var meta []byte
		meta = appendString(meta, metaSourceFormat, f.SourceFormat)
		meta = appendString(meta, metaTargetFormat, f.TargetFormat)
		if f.Success {
			meta = protowire.AppendTag(meta, metaSuccess, protowire.VarintType)
			meta = protowire.AppendVarint(meta, protowire.EncodeBool(true))
		}
		meta = appendString(meta, metaError, f.Error)

		b := protowire.AppendTag(nil, fieldMeta, protowire.BytesType)
		return protowire.AppendBytes(b, meta), nil
	case *ChunkFrame:
		b := make([]byte, 0, len(f.Data)+8)
		b = protowire.AppendTag(b, fieldChunk, protowire.BytesType)
		return protowire.AppendBytes(b, f.Data), nil
	case nil:
		return nil, fmt.Errorf("%w: nil frame", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: unknown frame type %T", ErrMalformedFrame, f)
	}
}

// appendString skips empty values, as proto3 does.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// UnmarshalFrame decodes one frame. Unknown fields are skipped; when both
// kinds are present the last one wins, as for a protobuf oneof.
func UnmarshalFrame(b []byte) (Frame, error) {
	var frame Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldMeta && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: meta: %w", ErrMalformedFrame, protowire.ParseError(n))
			}
			meta, err := unmarshalMeta(v)
			if err != nil {
				return nil, err
			}
			frame = meta
			b = b[n:]
		case num == fieldChunk && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: chunk: %w", ErrMalformedFrame, protowire.ParseError(n))
			}
			frame = &ChunkFrame{Data: bytes.Clone(v)}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if frame == nil {
		return nil, fmt.Errorf("%w: no meta or chunk", ErrMalformedFrame)
	}
	return frame, nil
}

func unmarshalMeta(b []byte) (*MetaFrame, error) {
	meta := &MetaFrame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: meta: %w", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == metaSuccess && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: meta success: %w", ErrMalformedFrame, protowire.ParseError(n))
			}
			meta.Success = protowire.DecodeBool(v)
			b = b[n:]
		case (num == metaSourceFormat || num == metaTargetFormat || num == metaError) && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: meta field %d: %w", ErrMalformedFrame, num, protowire.ParseError(n))
			}
			switch num {
			case metaSourceFormat:
				meta.SourceFormat = v
			case metaTargetFormat:
				meta.TargetFormat = v
			default:
				meta.Error = v
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: meta: %w", ErrMalformedFrame, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return meta, nil
}
