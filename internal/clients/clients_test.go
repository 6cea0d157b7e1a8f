package clients

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"spedermath/internal/auth"
	identitygrpc "spedermath/internal/grpc"
)

func TestCredentialsVerify(t *testing.T) {
	codec := auth.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "test-issuer", time.Hour)
	server, err := identitygrpc.NewServer(codec, "svc-token", nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	defer server.Stop()

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	client, err := NewCredentials(context.Background(), "bufnet", "svc-token", time.Second, dialer)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	token, _ := codec.IssueStudent(42)
	principal, err := client.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if principal != auth.Student(42) {
		t.Fatalf("unexpected principal %+v", principal)
	}

	_, err = client.Verify(context.Background(), "garbage")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	wrong, err := NewCredentials(context.Background(), "bufnet", "other-token", time.Second, dialer)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer wrong.Close()
	if _, err := wrong.Verify(context.Background(), token); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestNewCredentialsRequiresToken(t *testing.T) {
	if _, err := NewCredentials(context.Background(), "bufnet", "", time.Second); err == nil {
		t.Fatalf("expected error without service token")
	}
}
