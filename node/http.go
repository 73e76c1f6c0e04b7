package node

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/pkg/errors"
	"vizdemo/core/demo"
	"vizdemo/core/kpi"
	"vizdemo/core/modal"
	"vizdemo/core/render"
)

var errBadRequest = errors.New("bad request")

type sizeRequest struct {
	Mode   string  `json:"mode"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// pointerRequest positions are in plot-area pixels: the container's pixel
// minus the left and top margins, the frame the browser's drag and click
// events report inside the translated plot group.
type pointerRequest struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type modalRequest struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// statusOf maps domain errors to HTTP codes. A busy mode is a conflict, a
// deferred draw is accepted and a failed fit is a server error.
func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, render.ErrZeroSize):
		return fiber.StatusAccepted
	case errors.Is(err, demo.ErrBusy), errors.Is(err, demo.ErrNotReady), errors.Is(err, demo.ErrInactive),
		errors.Is(err, render.ErrNoHandler):
		return fiber.StatusConflict
	case errors.Is(err, ErrNoSession), errors.Is(err, kpi.ErrUnknownChart), errors.Is(err, render.ErrUnknownArea):
		return fiber.StatusNotFound
	case errors.Is(err, demo.ErrUnknownMode), errors.Is(err, demo.ErrNoPoint), errors.Is(err, demo.ErrOutsidePlot),
		errors.Is(err, errBadRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, kpi.ErrNotLoaded):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func (n *VizNode) errorHandler(c *fiber.Ctx, err error) error {
	code := statusOf(err)
	if code >= fiber.StatusInternalServerError {
		n.log.Errorf("%s %s: %s", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (n *VizNode) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "vizdemo",
		DisableStartupMessage: true,
		ErrorHandler:          n.errorHandler,
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: n.conf.HTTP.AllowOrigins}))

	api := app.Group("/api")
	api.Get("/demos", func(c *fiber.Ctx) error { return c.JSON(modal.Demos) })

	api.Post("/sessions", n.createSession)
	api.Delete("/sessions/:id", n.deleteSession)
	api.Post("/sessions/:id/switch/:mode", n.switchMode)
	api.Post("/sessions/:id/resize", n.resize)
	api.Post("/sessions/:id/linear/drag", n.linearDrag)
	api.Post("/sessions/:id/linear/release", n.linearRelease)
	api.Post("/sessions/:id/logistic/click", n.logisticClick)
	api.Get("/sessions/:id/modal", n.modalState)
	api.Post("/sessions/:id/modal", n.modalShow)
	api.Delete("/sessions/:id/modal", n.modalHide)
	api.Get("/sessions/:id/:mode/status", n.status)
	api.Get("/sessions/:id/:mode/scene", n.scene)

	api.Get("/kpi/:chart", n.kpiChart)
	api.Post("/kpi/reload", n.kpiReload)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/:id", websocket.New(n.handleWebSocket))

	if dir := n.conf.HTTP.StaticDir; dir != "" {
		app.Static("/", dir)
	}
	return app
}

func (n *VizNode) session(c *fiber.Ctx) (*Session, error) {
	return n.sessions.get(c.Params("id"))
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

// demoResult answers every demo action with the mode's status, plus the
// error when the action did not complete.
func demoResult(c *fiber.Ctx, s *Session, m demo.Mode, err error) error {
	st, _ := s.Ctrl.Status(m)
	body := fiber.Map{"status": st}
	code := fiber.StatusOK
	if err != nil {
		code = statusOf(err)
		body["error"] = err.Error()
	}
	return c.Status(code).JSON(body)
}

func (n *VizNode) createSession(c *fiber.Ctx) error {
	var req sizeRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	s := n.sessions.create(req.Width, req.Height)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": s.ID})
}

func (n *VizNode) deleteSession(c *fiber.Ctx) error {
	if !n.sessions.remove(c.Params("id")) {
		return errors.Wrapf(ErrNoSession, "%s", c.Params("id"))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (n *VizNode) switchMode(c *fiber.Ctx) error {
	s, err := n.session(c)
	if err != nil {
		return err
	}
	m, err := demo.ParseMode(c.Params("mode"))
	if err != nil {
		return err
	}
	return demoResult(c, s, m, s.Ctrl.Switch(c.UserContext(), m))
}

// resize sets the size of one plot area, or both when no mode is given,
// and re-runs the active mode.
func (n *VizNode) resize(c *fiber.Ctx) error {
	s, err := n.session(c)
	if err != nil {
		return err
	}
	var req sizeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	modes := []demo.Mode{demo.ModeLinear, demo.ModeLogistic}
	if req.Mode != "" {
		m, err := demo.ParseMode(req.Mode)
		if err != nil {
			return err
		}
		modes = []demo.Mode{m}
	}
	for _, m := range modes {
		s.Canvas.SetContainerSize(s.container(m), req.Width, req.Height)
	}
	active := s.Ctrl.Active()
	if active == "" {
		active = modes[0]
	}
	return demoResult(c, s, active, s.Ctrl.Resize(c.UserContext()))
}

func (n *VizNode) pointer(c *fiber.Ctx, m demo.Mode,
	dispatch func(ctx context.Context, s *Session, req pointerRequest) error) error {
	s, err := n.session(c)
	if err != nil {
		return err
	}
	var req pointerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return demoResult(c, s, m, dispatch(c.UserContext(), s, req))
}

func dragMove(ctx context.Context, s *Session, req pointerRequest) error {
	return s.Canvas.DragMove(ctx, s.container(demo.ModeLinear), demo.ClassDot, req.Index, render.Point{X: req.X, Y: req.Y})
}

func dragEnd(ctx context.Context, s *Session, req pointerRequest) error {
	return s.Canvas.DragEnd(ctx, s.container(demo.ModeLinear), demo.ClassDot, req.Index, render.Point{X: req.X, Y: req.Y})
}

func plotClick(ctx context.Context, s *Session, req pointerRequest) error {
	return s.Canvas.Click(ctx, s.container(demo.ModeLogistic), render.Point{X: req.X, Y: req.Y})
}

func (n *VizNode) linearDrag(c *fiber.Ctx) error {
	return n.pointer(c, demo.ModeLinear, dragMove)
}

func (n *VizNode) linearRelease(c *fiber.Ctx) error {
	return n.pointer(c, demo.ModeLinear, dragEnd)
}

func (n *VizNode) logisticClick(c *fiber.Ctx) error {
	return n.pointer(c, demo.ModeLogistic, plotClick)
}

func (n *VizNode) status(c *fiber.Ctx) error {
	s, err := n.session(c)
	if err != nil {
		return err
	}
	m, err := demo.ParseMode(c.Params("mode"))
	if err != nil {
		return err
	}
	st, err := s.Ctrl.Status(m)
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (n *VizNode) scene(c *fiber.Ctx) error {
	s, err := n.session(c)
	if err != nil {
		return err
	}
	m, err := demo.ParseMode(c.Params("mode"))
	if err != nil {
		return err
	}
	scene, err := s.Canvas.Snapshot(s.container(m))
	if err != nil {
		return err
	}
	if c.Query("format") == "svg" {
		c.Set(fiber.HeaderContentType, "image/svg+xml")
		return render.WriteSVG(c.Response().BodyWriter(), scene)
	}
	return c.JSON(scene)
}

func (n *VizNode) modalState(c *fiber.Ctx) error {
	s, err := n.session(c)
	if err != nil {
		return err
	}
	return c.JSON(s.Modal.State())
}

func (n *VizNode) modalShow(c *fiber.Ctx) error {
	s, err := n.session(c)
	if err != nil {
		return err
	}
	var req modalRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := s.Modal.Show(req.URL, req.Label); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return c.JSON(s.Modal.State())
}

func (n *VizNode) modalHide(c *fiber.Ctx) error {
	s, err := n.session(c)
	if err != nil {
		return err
	}
	s.Modal.Hide()
	return c.JSON(s.Modal.State())
}

func (n *VizNode) kpiChart(c *fiber.Ctx) error {
	switch name := c.Params("chart"); name {
	case kpi.ChartStates:
		fills, err := n.kpi.Fills()
		if err != nil {
			return err
		}
		return c.JSON(fills)
	case "data":
		d, ok := n.kpi.Data()
		if !ok {
			return kpi.ErrNotLoaded
		}
		return c.JSON(d)
	default:
		svg, err := n.kpi.RenderSVG(name, c.QueryInt("width", 800), c.QueryInt("height", 400))
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "image/svg+xml")
		return c.Send(svg)
	}
}

func (n *VizNode) kpiReload(c *fiber.Ctx) error {
	if err := n.kpi.Reload(); err != nil {
		return err
	}
	d, _ := n.kpi.Data()
	return c.JSON(fiber.Map{"days": len(d.SalesData), "asins": len(d.AsinData), "states": len(d.BuyerData)})
}

type wsRequest struct {
	Action string `json:"action"`
	Mode   string `json:"mode,omitempty"`
	pointerRequest
}

// handleWebSocket streams the session's demo events and accepts pointer
// actions on the same connection.
func (n *VizNode) handleWebSocket(conn *websocket.Conn) {
	id := conn.Params("id")
	client := &wsClient{conn: conn}
	s, err := n.sessions.get(id)
	if err != nil {
		n.sendWS(client, wsMessage{Type: "error", Data: err.Error()})
		_ = conn.Close()
		return
	}

	n.hub.add(id, client)
	defer func() {
		n.hub.remove(id, client)
		_ = conn.Close()
	}()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		m, err := n.wsAction(s, req)
		result := fiber.Map{"action": req.Action}
		if st, stErr := s.Ctrl.Status(m); stErr == nil {
			result["status"] = st
		}
		if err != nil {
			result["error"] = err.Error()
			result["code"] = statusOf(err)
		}
		n.sendWS(client, wsMessage{Type: "result", SessionID: id, Data: result})
	}
}

func (n *VizNode) wsAction(s *Session, req wsRequest) (demo.Mode, error) {
	ctx := context.Background()
	switch strings.ToLower(req.Action) {
	case "switch":
		m, err := demo.ParseMode(req.Mode)
		if err != nil {
			return "", err
		}
		return m, s.Ctrl.Switch(ctx, m)
	case "drag":
		return demo.ModeLinear, dragMove(ctx, s, req.pointerRequest)
	case "release":
		return demo.ModeLinear, dragEnd(ctx, s, req.pointerRequest)
	case "click":
		return demo.ModeLogistic, plotClick(ctx, s, req.pointerRequest)
	}
	return s.Ctrl.Active(), errors.Wrapf(errBadRequest, "unknown action %q", req.Action)
}

func (n *VizNode) sendWS(c *wsClient, msg wsMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		n.log.Errorf("encode websocket message: %s", err)
		return
	}
	if err := c.send(b); err != nil {
		n.log.Debugf("websocket send: %s", err)
	}
}
