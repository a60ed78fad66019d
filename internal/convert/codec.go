package convert

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const CodecName = "frame"

const (
	ServiceName   = "reelstore.convert.v1.Converter"
	convertMethod = "/" + ServiceName + "/Convert"
)

// Codec marshals frames for the Converter service. It is installed per call
// (grpc.ForceCodec) and per server (grpc.ForceServerCodec), never registered globally.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *Envelope:
		return MarshalFrame(m.Frame)
	case Frame:
		return MarshalFrame(m)
	default:
		return nil, fmt.Errorf("%w: cannot marshal %T", ErrMalformedFrame, v)
	}
}

func (Codec) Unmarshal(data []byte, v any) error {
	env, ok := v.(*Envelope)
	if !ok {
		return fmt.Errorf("%w: cannot unmarshal into %T", ErrMalformedFrame, v)
	}
	frame, err := UnmarshalFrame(data)
	if err != nil {
		return err
	}
	env.Frame = frame
	return nil
}

func (Codec) Name() string {
	return CodecName
}

var convertStreamDesc = grpc.StreamDesc{
	StreamName:    "Convert",
	ServerStreams: true,
	ClientStreams: true,
}

// ConverterServer is implemented by conversion backends.
type ConverterServer interface {
	Convert(stream *ServerStream) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConverterServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    convertStreamDesc.StreamName,
			Handler:       convertHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "api/convert/v1/convert.proto",
}

func convertHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ConverterServer).Convert(&ServerStream{ServerStream: stream})
}

// RegisterConverterServer registers a backend on s. s must be created with
// grpc.ForceServerCodec(Codec{}).
func RegisterConverterServer(s grpc.ServiceRegistrar, srv ConverterServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServerStream is the backend side of one conversion.
type ServerStream struct {
	grpc.ServerStream
}

func (s *ServerStream) Send(f Frame) error {
	return s.SendMsg(f)
}

// Recv returns io.EOF once the client has closed its side.
func (s *ServerStream) Recv() (Frame, error) {
	var env Envelope
	if err := s.RecvMsg(&env); err != nil {
		return nil, err
	}
	return env.Frame, nil
}
