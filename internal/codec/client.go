package codec

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods
const (
	ServiceName    = "adaptive.CodecService"
	generateMethod = "/" + ServiceName + "/Generate"
	embedMethod    = "/" + ServiceName + "/Embed"
)

// #endregion methods

// #region service
// codecService is the unary surface of the inference service. Messages are
// structpb.Struct so no generated stubs are required.
type codecService interface {
	Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Embed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type invokeService struct {
	conn grpc.ClientConnInterface
}

func (s invokeService) Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, generateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s invokeService) Embed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, embedMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion service

// #region client-struct
// CodecClient wraps the gRPC connection to the inference service.
type CodecClient struct {
	conn   *grpc.ClientConn
	client codecService
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the inference gRPC server.
func NewCodecClient(addr string, opts ...grpc.DialOption) (*CodecClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{
		conn:   conn,
		client: invokeService{conn: conn},
	}, nil
}

// newCodecClientWithService creates a CodecClient with an injected service
// implementation.
func newCodecClientWithService(svc codecService) *CodecClient {
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

// #region generate
// Generate sends the policy prompt and user text to the inference service.
func (c *CodecClient) Generate(ctx context.Context, req Request) (string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"system_prompt": req.SystemPrompt,
		"prompt":        req.UserPrompt,
		"temperature":   float64(req.Temperature),
		"max_tokens":    float64(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}

	resp, err := c.client.Generate(ctx, in)
	if err != nil {
		return "", grpcError(err)
	}

	text := strings.TrimSpace(resp.GetFields()["text"].GetStringValue())
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

// #endregion generate

// #region embed
// Embed sends a batch of texts to the inference service for embedding.
func (c *CodecClient) Embed(ctx context.Context, purpose string, inputs []string) ([][]float32, error) {
	list := make([]any, len(inputs))
	for i, s := range inputs {
		list[i] = s
	}
	in, err := structpb.NewStruct(map[string]any{
		"purpose": purpose,
		"inputs":  list,
	})
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}

	resp, err := c.client.Embed(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("embed rpc: %w", grpcError(err))
	}

	rows := resp.GetFields()["embeddings"].GetListValue().GetValues()
	if len(rows) != len(inputs) {
		return nil, fmt.Errorf("embed rpc: got %d embeddings for %d inputs", len(rows), len(inputs))
	}
	out := make([][]float32, len(rows))
	for i, row := range rows {
		vals := row.GetListValue().GetValues()
		vec := make([]float32, len(vals))
		for j, v := range vals {
			vec[j] = float32(v.GetNumberValue())
		}
		out[i] = vec
	}
	return out, nil
}

// #endregion embed

// #region errors
func grpcError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &GenerationError{Backend: "grpc", Body: err.Error(), Err: err}
	}
	return &GenerationError{
		Status:  int(st.Code()),
		Body:    st.Message(),
		Backend: "grpc",
		Err:     err,
	}
}

// #endregion errors
