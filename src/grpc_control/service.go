package grpc_control

import (
	"context"
	"fmt"
	"net"
	"strings"

	"power-observer/src/cache"
	"power-observer/src/interfaces"
	"power-observer/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ControlService administers the reading cache shared with the HTTP surface.
type ControlService struct {
	Cache  interfaces.IReadingCache
	Logger *logger.Logger
}

func NewControlService(cache interfaces.IReadingCache, log *logger.Logger) *ControlService {
	return &ControlService{Cache: cache, Logger: log}
}

// -----------------------------------------------------------------------------

func (s *ControlService) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.Cache.Stats()

	byNode := make(map[string]interface{}, len(st.ItemsByNode))
	for node, n := range st.ItemsByNode {
		byNode[node] = n
	}
	out, err := structpb.NewStruct(map[string]interface{}{
		"total_cached_items":    st.TotalItems,
		"total_nodes_cached":    st.TotalNodes,
		"items_by_node":         byNode,
		"avg_seconds_remaining": st.AvgSecondsRemaining,
		"hits":                  st.Hits,
		"misses":                st.Misses,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode stats: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListNodes(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	nodes := s.Cache.ListCachedNodes()
	values := make([]interface{}, len(nodes))
	for i, n := range nodes {
		values[i] = n
	}
	out, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode nodes: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) Clear(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	node := strings.TrimSpace(req.GetValue())
	if strings.Contains(node, cache.KeySeparator) {
		return nil, status.Errorf(codes.InvalidArgument, "invalid node %q", node)
	}

	cleared := s.Cache.Clear(node)
	s.Logger.Info("gRPC: cache cleared node=%q entries=%d", node, cleared)

	out, err := structpb.NewStruct(map[string]interface{}{
		"node":            node,
		"cleared":         cleared,
		"remaining_items": s.Cache.Stats().TotalItems,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Server lifecycle
// -----------------------------------------------------------------------------

// Server hosts the control service on its own listener.
type Server struct {
	Addr   string
	Logger *logger.Logger
	grpc   *grpc.Server
}

func NewServer(host string, port int, service CacheControlServer, log *logger.Logger) *Server {
	g := grpc.NewServer()
	RegisterCacheControlServer(g, service)
	return &Server{Addr: fmt.Sprintf("%s:%d", host, port), Logger: log, grpc: g}
}

// Start listens on Addr and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", s.Addr, err)
	}
	return s.Serve(lis)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.Logger.Info("Starting gRPC control server on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
