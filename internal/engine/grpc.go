package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "fao56.WaterBalanceEngine"
	runMethod   = "/" + ServiceName + "/Run"
)

// Server is the engine side of the RPC. Requests and responses are
// google.protobuf.Struct documents carrying Input and the engine tables.
type Server interface {
	Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServerFunc adapts a function to Server.
type ServerFunc func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func (f ServerFunc) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return f(ctx, in)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Run",
		Handler:    runHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fao56/engine.proto",
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func RegisterServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}

// GRPCClient calls a remote engine.
type GRPCClient struct {
	cc      grpc.ClientConnInterface
	conn    *grpc.ClientConn
	timeout time.Duration
}

var _ Engine = (*GRPCClient)(nil)

// Dial connects lazily to addr without TLS.
func Dial(addr string, timeout time.Duration) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial engine %s: %w", addr, err)
	}
	c := NewGRPCClient(conn, timeout)
	c.conn = conn
	return c, nil
}

// NewGRPCClient wraps an existing connection. timeout <= 0 means no deadline.
func NewGRPCClient(cc grpc.ClientConnInterface, timeout time.Duration) *GRPCClient {
	return &GRPCClient{cc: cc, timeout: timeout}
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *GRPCClient) Run(ctx context.Context, in Input) (Output, error) {
	req, err := EncodeInput(in)
	if err != nil {
		return Output{}, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, runMethod, req, resp); err != nil {
		return Output{}, fmt.Errorf("invoke %s: %w", runMethod, err)
	}
	return DecodeOutput(resp)
}

// EncodeInput converts an Input into the request document.
func EncodeInput(in Input) (*structpb.Struct, error) {
	return toStruct(in)
}

// DecodeInput is the server-side inverse of EncodeInput.
func DecodeInput(s *structpb.Struct) (Input, error) {
	var in Input
	if err := fromStruct(s, &in); err != nil {
		return Input{}, fmt.Errorf("decode engine input: %w", err)
	}
	return in, nil
}

type wireOutput struct {
	OData   []entities.DailyOutput `json:"odata"`
	SWBData *entities.SeasonTotals `json:"swbdata,omitempty"`
}

// EncodeOutput builds the response document a server returns.
func EncodeOutput(out Output) (*structpb.Struct, error) {
	return toStruct(wireOutput{OData: out.Daily, SWBData: out.Summary})
}

func DecodeOutput(s *structpb.Struct) (Output, error) {
	var w wireOutput
	if err := fromStruct(s, &w); err != nil {
		return Output{}, fmt.Errorf("decode engine output: %w", err)
	}
	if len(w.OData) == 0 {
		return Output{}, fmt.Errorf("decode engine output: empty daily table")
	}
	return Output{Daily: w.OData, Summary: w.SWBData}, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
