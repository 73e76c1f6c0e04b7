package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"vizdemo/common"
	"vizdemo/core/config"
	"vizdemo/core/kpi"
	"vizdemo/core/msgbus"
)

type VizNode struct {
	conf     *config.LocalConfig
	app      *fiber.App
	server   *common.GRPCServer
	msgBus   msgbus.MessageBus
	sessions *sessionRegistry
	kpi      *kpi.Store
	hub      *hub
	log      common.Logger

	done     chan struct{}
	stopOnce sync.Once
}

func (n *VizNode) Init(c *config.LocalConfig) error {
	n.conf = c
	n.done = make(chan struct{})
	if c.Log != nil {
		common.SetLogConfig(c.Log)
	}
	n.log = common.GetLogger(common.MODULE_NODE)

	//在其它模块初始化之前，初始化messagebus
	n.msgBus = msgbus.InitMessageBus()

	n.hub = newHub(common.GetLogger(common.MODULE_HTTP))
	n.msgBus.Register(common.LocalDemoMsg, n.hub)
	n.msgBus.Register(common.LocalKPIMsg, n.hub)

	n.sessions = newSessionRegistry(c.Demo, n.msgBus, n.log)

	n.kpi = kpi.NewStore(c.KPI.DataPath, n.msgBus, common.GetLogger(common.MODULE_KPI))
	if err := n.kpi.Reload(); err != nil {
		// the demos still work; kpi routes answer 503 until a reload succeeds
		n.log.Warnf("kpi data unavailable: %s", err)
	}

	n.app = n.newApp()

	if c.GRPC.Listen != "" {
		serverConfig := common.GRPCServerConfig{
			Keepalive: common.Keepalive{
				Time:    c.GRPC.KeepaliveTime,
				Timeout: c.GRPC.KeepaliveTimeout,
			},
			ConnectionTimeout: c.GRPC.ConnectionTimeout,
			HealthCheck:       true,
		}
		server, err := common.NewGRPCServer(c.GRPC.Listen, serverConfig)
		if err != nil {
			return fmt.Errorf("get grpc server err: %s", err)
		}
		n.server = server
		n.log.Infof("GRPC health server listen on %s", server.Address())
	}
	return nil
}

// App exposes the HTTP handler, mostly for tests.
func (n *VizNode) App() *fiber.App {
	return n.app
}

func (n *VizNode) Start() error {
	if idle := n.conf.HTTP.SessionIdle; idle > 0 {
		go n.expireSessions(idle)
	}
	serve := make(chan error, 2)
	if n.server != nil {
		go func() {
			var grpcErr error
			if grpcErr = n.server.Start(); grpcErr != nil {
				grpcErr = fmt.Errorf("grpc server exited with error: %s", grpcErr)
			}
			serve <- grpcErr
		}()
	}
	go func() {
		n.log.Infof("HTTP server listen on %s", n.conf.HTTP.Listen)
		var httpErr error
		if httpErr = n.app.Listen(n.conf.HTTP.Listen); httpErr != nil {
			httpErr = fmt.Errorf("http server exited with error: %s", httpErr)
		}
		serve <- httpErr
	}()

	err := <-serve
	n.Stop()
	return err
}

// expireSessions sweeps idle sessions until Stop.
func (n *VizNode) expireSessions(idle time.Duration) {
	ticker := time.NewTicker(sweepInterval(idle))
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.sweepSessions(idle)
		}
	}
}

func sweepInterval(idle time.Duration) time.Duration {
	if d := idle / 4; d > time.Second {
		return d
	}
	return time.Second
}

// sweepSessions drops sessions idle longer than idle. A session with an
// open websocket is kept.
func (n *VizNode) sweepSessions(idle time.Duration) int {
	gone := n.sessions.expire(idle, n.hub.connected)
	for _, id := range gone {
		n.log.Infof("session %s expired after %s idle", id, idle)
	}
	return len(gone)
}

func (n *VizNode) Stop() {
	n.stopOnce.Do(func() {
		close(n.done)
		if n.server != nil {
			n.server.Stop()
		}
		if err := n.app.Shutdown(); err != nil {
			n.log.Warnf("http shutdown: %s", err)
		}
		n.msgBus.UnRegister(common.LocalDemoMsg, n.hub)
		n.msgBus.UnRegister(common.LocalKPIMsg, n.hub)
	})
}
