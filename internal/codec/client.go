// Package codec talks to an inference sidecar over gRPC. Messages are carried
// as google.protobuf.Struct so no generated stubs are needed on either side.
package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names served by the sidecar.
const (
	serviceName    = "vowguard.codec.v1.CodecService"
	methodEmbed    = "/" + serviceName + "/Embed"
	methodGenerate = "/" + serviceName + "/Generate"
)

// #region service
// CodecService is the RPC surface of the sidecar.
type CodecService interface {
	Embed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type codecServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCodecServiceClient binds the service to a connection.
func NewCodecServiceClient(cc grpc.ClientConnInterface) CodecService {
	return &codecServiceClient{cc: cc}
}

func (c *codecServiceClient) Embed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodEmbed, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *codecServiceClient) Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGenerate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion service

// #region client-struct
// CodecClient implements provider.Embedder and provider.Generator against the sidecar.
type CodecClient struct {
	conn   *grpc.ClientConn
	client CodecService
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the inference gRPC server.
func NewCodecClient(addr string) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{
		conn:   conn,
		client: NewCodecServiceClient(conn),
	}, nil
}

// NewCodecClientWithService creates a CodecClient with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewCodecClientWithService(svc CodecService) *CodecClient {
	return &CodecClient{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region embed
// Embed sends text to the inference service for embedding.
func (c *CodecClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	resp, err := c.client.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}

	list := resp.GetFields()["embedding"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("embed rpc: response has no embedding list")
	}
	out := make([]float32, len(list.GetValues()))
	for i, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("embed rpc: element %d is not a number", i)
		}
		out[i] = float32(n.NumberValue)
	}
	return out, nil
}

// #endregion embed

// #region generate
// Generate sends a prompt to the inference service and returns its text.
func (c *CodecClient) Generate(ctx context.Context, prompt string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	resp, err := c.client.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate rpc: %w", err)
	}
	v, ok := resp.GetFields()["text"]
	if !ok {
		return "", fmt.Errorf("generate rpc: response has no text")
	}
	return v.GetStringValue(), nil
}

// #endregion generate
