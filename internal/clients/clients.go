package clients

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"spedermath/internal/auth"
	identitygrpc "spedermath/internal/grpc"
)

// Credentials calls the identity service's credential verification RPC.
type Credentials struct {
	conn *grpc.ClientConn
}

func NewCredentials(ctx context.Context, addr, serviceToken string, timeout time.Duration, opts ...grpc.DialOption) (*Credentials, error) {
	if serviceToken == "" {
		return nil, errors.New("service auth token required")
	}
	conn, err := dial(ctx, addr, serviceToken, timeout, opts...)
	if err != nil {
		return nil, err
	}
	return &Credentials{conn: conn}, nil
}

func (c *Credentials) Close() {
	if c == nil || c.conn == nil {
		return
	}
	_ = c.conn.Close()
}

// Verify returns the principal a credential asserts, as seen by the remote
// identity service.
func (c *Credentials) Verify(ctx context.Context, credential string) (auth.Principal, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, identitygrpc.VerifyMethod, wrapperspb.String(credential), out); err != nil {
		return auth.Principal{}, err
	}
	fields := out.GetFields()
	kind := auth.ParseKind(fields["kind"].GetStringValue())
	if kind == auth.KindUnknown {
		return auth.Principal{}, fmt.Errorf("unexpected principal kind %q", fields["kind"].GetStringValue())
	}
	id, err := strconv.ParseInt(fields["id"].GetStringValue(), 10, 64)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("principal id: %w", err)
	}
	return auth.Principal{Kind: kind, ID: id}, nil
}

func dial(ctx context.Context, addr, serviceToken string, timeout time.Duration, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(serviceAuthUnaryClientInterceptor(serviceToken)),
	}, extra...)
	return grpc.DialContext(ctx, addr, opts...)
}

func serviceAuthUnaryClientInterceptor(serviceToken string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, identitygrpc.ServiceTokenHeader, serviceToken)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
