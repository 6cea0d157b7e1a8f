package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"spedermath/internal/auth"
)

const (
	CredentialsServiceName = "spedermath.identity.v1.Credentials"
	VerifyMethod           = "/" + CredentialsServiceName + "/Verify"
)

// CredentialsServer lets sibling services check a session credential
// without holding the signing key. Verify takes the raw credential and
// answers with a struct carrying kind, id, subject and expires_at.
type CredentialsServer interface {
	Verify(ctx context.Context, credential *wrapperspb.StringValue) (*structpb.Struct, error)
}

var CredentialsServiceDesc = grpc.ServiceDesc{
	ServiceName: CredentialsServiceName,
	HandlerType: (*CredentialsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Verify", Handler: verifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "spedermath/identity/v1/credentials.proto",
}

func verifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CredentialsServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CredentialsServer).Verify(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

type CredentialsService struct {
	codec  *auth.Codec
	logger *slog.Logger
}

func NewCredentialsService(codec *auth.Codec, logger *slog.Logger) *CredentialsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialsService{codec: codec, logger: logger}
}

func (s *CredentialsService) Verify(_ context.Context, credential *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := strings.TrimSpace(credential.GetValue())
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing_credential")
	}
	claims, err := s.codec.Verify(token)
	if err != nil {
		s.logger.Debug("grpc credential rejected", "reason", err)
		return nil, status.Error(codes.Unauthenticated, rejectionCode(err))
	}
	kind := claims.Kind()
	id, _ := claims.PrincipalID(kind)
	fields := map[string]interface{}{
		"kind":    kind.String(),
		"id":      strconv.FormatInt(id, 10),
		"subject": claims.Subject,
	}
	if claims.ExpiresAt != nil {
		fields["expires_at"] = claims.ExpiresAt.Unix()
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode_failed")
	}
	return out, nil
}

func rejectionCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "credential_expired"
	case errors.Is(err, auth.ErrSignatureInvalid):
		return "credential_signature_invalid"
	default:
		return "credential_malformed"
	}
}

// NewServer builds the internal gRPC server: the credentials service plus
// the standard health service, guarded by the service token.
func NewServer(codec *auth.Codec, serviceToken string, logger *slog.Logger) (*grpc.Server, error) {
	interceptor, err := NewServiceAuthUnaryInterceptor(serviceToken)
	if err != nil {
		return nil, err
	}
	server := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	server.RegisterService(&CredentialsServiceDesc, NewCredentialsService(codec, logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(CredentialsServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, nil
}
