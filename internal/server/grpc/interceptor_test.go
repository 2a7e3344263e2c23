package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/seqsubmit/internal/logging"
)

type recordingLogger struct {
	nopLogger
	msgs *[]string
	args *[][]any
}

func (r recordingLogger) Debug(_ context.Context, msg string, args ...any) {
	*r.msgs = append(*r.msgs, msg)
	*r.args = append(*r.args, args)
}

func (r recordingLogger) With(...any) logging.Logger { return r }

func newTestServer() (*GRPCServer, *[]string, *[][]any) {
	var msgs []string
	var args [][]any
	l := recordingLogger{msgs: &msgs, args: &args}
	return NewGRPCServer("", l, nil), &msgs, &args
}

func TestInterceptor_PassesThrough(t *testing.T) {
	s, msgs, args := newTestServer()

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
	if len(*msgs) != 1 || (*msgs)[0] != "grpc call" {
		t.Fatalf("unexpected log messages: %v", *msgs)
	}
	a := (*args)[0]
	if a[1] != info.FullMethod || a[3] != codes.OK.String() {
		t.Fatalf("unexpected log args: %v", a)
	}
}

func TestInterceptor_ReturnsHandlerError(t *testing.T) {
	s, _, args := newTestServer()

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	_, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", status.Code(err))
	}
	if (*args)[0][3] != codes.NotFound.String() {
		t.Fatalf("expected logged code NotFound, got %v", (*args)[0][3])
	}
}
