package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cwrk-planet/rendezvous/internal/domain"
	"github.com/cwrk-planet/rendezvous/internal/matchmaker"
)

type Engine interface {
	Stats() domain.Stats
	Bans() []matchmaker.Ban
	IsBanned(origin string) bool
	Ban(ctx context.Context, id domain.ParticipantID, origin, reason string) error
	Unban(origin string) bool
	Disconnect(ctx context.Context, id domain.ParticipantID) error
}

// ConnCounter reports live push connections; optional.
type ConnCounter interface {
	Len() int
}

type Server struct {
	engine Engine
	conns  ConnCounter
}

func NewServer(engine Engine, conns ConnCounter) *Server {
	return &Server{engine: engine, conns: conns}
}

// NewGRPCServer builds a grpc.Server with the logging and recovery
// interceptors and the admin service registered.
func NewGRPCServer(s *Server, log *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(log)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(log)),
	}, opts...)
	gs := grpc.NewServer(opts...)
	Register(gs, s)
	return gs
}

func Register(gs grpc.ServiceRegistrar, s *Server) {
	gs.RegisterService(&AdminServiceDesc, s)
}

func (s *Server) GetStats(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.engine.Stats()
	fields := map[string]any{
		"participants": st.Participants,
		"waiting":      st.Waiting,
		"queued":       st.Queued,
		"paired":       st.Paired,
		"bans":         st.Bans,
		"matches":      float64(st.Matches),
		"evictions":    float64(st.Evictions),
	}
	if s.conns != nil {
		fields["wsConnections"] = s.conns.Len()
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) ListBans(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	bans := s.engine.Bans()
	items := make([]any, 0, len(bans))
	for _, b := range bans {
		items = append(items, map[string]any{
			"origin": b.Origin,
			"reason": b.Reason,
			"at":     b.At.UTC().Format(time.RFC3339),
		})
	}
	out, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) IsBanned(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	origin := strings.TrimSpace(in.GetValue())
	if origin == "" {
		return nil, status.Error(codes.InvalidArgument, "origin is required")
	}
	return wrapperspb.Bool(s.engine.IsBanned(origin)), nil
}

func (s *Server) Ban(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	fields := in.GetFields()
	id := strings.TrimSpace(fields["participantId"].GetStringValue())
	origin := strings.TrimSpace(fields["origin"].GetStringValue())
	reason := strings.TrimSpace(fields["reason"].GetStringValue())
	if id == "" && origin == "" {
		return nil, status.Error(codes.InvalidArgument, "participantId or origin is required")
	}
	if reason == "" {
		reason = "banned by operator"
	}

	if err := s.engine.Ban(ctx, domain.ParticipantID(id), origin, reason); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Unban(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	origin := strings.TrimSpace(in.GetValue())
	if origin == "" {
		return nil, status.Error(codes.InvalidArgument, "origin is required")
	}
	return wrapperspb.Bool(s.engine.Unban(origin)), nil
}

func (s *Server) Disconnect(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id := strings.TrimSpace(in.GetValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "participantId is required")
	}
	if err := s.engine.Disconnect(ctx, domain.ParticipantID(id)); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidPayload):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrBanned), errors.Is(err, domain.ErrPolicyViolation):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrNotPaired):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
