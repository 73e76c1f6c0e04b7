package node

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"vizdemo/common"
	"vizdemo/core/msgbus"
)

type wsMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type wsClient struct {
	mutex sync.Mutex
	conn  *websocket.Conn
}

func (c *wsClient) send(b []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// hub forwards bus messages to websocket clients: demo events go to the
// clients of their session, kpi events go to everyone.
type hub struct {
	mutex   sync.Mutex
	clients map[string]map[*wsClient]struct{}
	log     common.Logger
}

func newHub(log common.Logger) *hub {
	return &hub{clients: make(map[string]map[*wsClient]struct{}), log: log}
}

func (h *hub) add(sessionID string, c *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	set, ok := h.clients[sessionID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[sessionID] = set
	}
	set[c] = struct{}{}
}

func (h *hub) remove(sessionID string, c *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if set, ok := h.clients[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, sessionID)
		}
	}
}

// connected reports whether a websocket is open for the session.
func (h *hub) connected(sessionID string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients[sessionID]) > 0
}

func (h *hub) targets(sessionID string) []*wsClient {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	var out []*wsClient
	for id, set := range h.clients {
		if sessionID != "" && id != sessionID {
			continue
		}
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}

func (h *hub) HandleMsgFromMsgBus(msg *msgbus.BusMessage) error {
	b, err := json.Marshal(wsMessage{Type: msg.MsgType.String(), SessionID: msg.SessionID, Data: msg.Msg})
	if err != nil {
		return err
	}
	sessionID := msg.SessionID
	if msg.MsgType.Type() == common.LocalKPIMsg {
		sessionID = ""
	}
	for _, c := range h.targets(sessionID) {
		if err := c.send(b); err != nil {
			h.log.Debugf("drop websocket client of %s: %s", msg.SessionID, err)
			_ = c.conn.Close()
		}
	}
	return nil
}
