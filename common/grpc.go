package common

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

const GRPCMaxMsgSize = 4 * 1024 * 1024

// Keepalive holds the ping settings of the node's gRPC endpoint. Zero fields
// fall back to DefaultKeepalive.
type Keepalive struct {
	// Time between server pings on an idle connection
	Time time.Duration
	// Timeout waiting for a ping ack before the connection is closed
	Timeout time.Duration
	// MinPing is the shortest client ping interval the server tolerates
	MinPing time.Duration
}

var DefaultKeepalive = Keepalive{
	Time:    2 * time.Hour,
	Timeout: 20 * time.Second,
	MinPing: time.Minute,
}

func (k Keepalive) orDefault() Keepalive {
	if k.Time <= 0 {
		k.Time = DefaultKeepalive.Time
	}
	if k.Timeout <= 0 {
		k.Timeout = DefaultKeepalive.Timeout
	}
	if k.MinPing <= 0 {
		k.MinPing = DefaultKeepalive.MinPing
	}
	return k
}

func (k Keepalive) serverOptions() []grpc.ServerOption {
	k = k.orDefault()
	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: k.Time, Timeout: k.Timeout}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             k.MinPing,
			PermitWithoutStream: true,
		}),
	}
}

type GRPCServerConfig struct {
	Keepalive         Keepalive
	ConnectionTimeout time.Duration // default 5s
	MaxMsgSize        int           // default GRPCMaxMsgSize, both directions
	HealthCheck       bool
}

// GRPCServer is the node's gRPC endpoint. Today it only carries the standard
// health service, which load balancers and orchestrators poll.
type GRPCServer struct {
	address  string
	listener net.Listener
	server   *grpc.Server
	health   *health.Server
	stopOnce sync.Once
}

func NewGRPCServer(address string, cfg GRPCServerConfig) (*GRPCServer, error) {
	if address == "" {
		return nil, errors.New("grpc listen address is empty")
	}
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", address)
	}
	return NewGRPCServerFromListener(lis, cfg), nil
}

func NewGRPCServerFromListener(lis net.Listener, cfg GRPCServerConfig) *GRPCServer {
	size := cfg.MaxMsgSize
	if size <= 0 {
		size = GRPCMaxMsgSize
	}
	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := append(cfg.Keepalive.serverOptions(),
		grpc.MaxSendMsgSize(size),
		grpc.MaxRecvMsgSize(size),
		grpc.ConnectionTimeout(timeout),
	)

	s := &GRPCServer{
		address:  lis.Addr().String(),
		listener: lis,
		server:   grpc.NewServer(opts...),
	}
	if cfg.HealthCheck {
		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.server, s.health)
	}
	return s
}

func (s *GRPCServer) Address() string {
	return s.address
}

func (s *GRPCServer) Server() *grpc.Server {
	return s.server
}

// Start reports every registered service, and the server as a whole, as
// SERVING, then blocks until Stop.
func (s *GRPCServer) Start() error {
	if s.health != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		for name := range s.server.GetServiceInfo() {
			s.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
		}
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop turns health to NOT_SERVING before draining in-flight calls.
func (s *GRPCServer) Stop() {
	s.stopOnce.Do(func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		s.server.GracefulStop()
	})
}

// DialHealth opens a plaintext client connection suitable for health checks.
func DialHealth(address string) (healthpb.HealthClient, *grpc.ClientConn, error) {
	k := DefaultKeepalive
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                k.MinPing,
			Timeout:             k.Timeout,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "dial %s", address)
	}
	return healthpb.NewHealthClient(conn), conn, nil
}
