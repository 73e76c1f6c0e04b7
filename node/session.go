package node

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"vizdemo/common"
	"vizdemo/core/demo"
	"vizdemo/core/modal"
	"vizdemo/core/render"
)

const (
	DefaultContainerWidth  = 600
	DefaultContainerHeight = 400
)

var ErrNoSession = errors.New("no such session")

// Session is one browser tab: its two plot areas, the controller driving
// them and the modal the demo menu opens.
type Session struct {
	ID      string
	Created time.Time
	Canvas  *render.Canvas
	Ctrl    *demo.Controller
	Modal   *modal.Modal

	lastSeen atomic.Int64 // unix nanos
}

func (s *Session) touch(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}

func (s *Session) idleSince(t time.Time) time.Duration {
	return t.Sub(time.Unix(0, s.lastSeen.Load()))
}

type sessionRegistry struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
	cfg      demo.Config
	bus      demo.Publisher
	log      common.Logger
	now      func() time.Time
}

func newSessionRegistry(cfg demo.Config, bus demo.Publisher, log common.Logger) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

func (r *sessionRegistry) create(width, height float64) *Session {
	if width <= 0 {
		width = DefaultContainerWidth
	}
	if height <= 0 {
		height = DefaultContainerHeight
	}
	id := uuid.NewString()
	canvas := render.NewCanvas(render.DefaultMargin, common.GetLogger(common.MODULE_RENDER))
	canvas.SetContainerSize(r.cfg.LinearContainer, width, height)
	canvas.SetContainerSize(r.cfg.LogisticContainer, width, height)

	s := &Session{
		ID:      id,
		Created: r.now(),
		Canvas:  canvas,
		Ctrl:    demo.NewController(id, r.cfg, canvas, nil, r.bus, common.GetLogger(common.MODULE_DEMO)),
		Modal:   &modal.Modal{},
	}
	s.touch(s.Created)
	r.mutex.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mutex.Unlock()
	r.log.Infof("session %s created (%.0fx%.0f), %d open", id, width, height, n)
	return s
}

func (r *sessionRegistry) get(id string) (*Session, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNoSession, "%s", id)
	}
	s.touch(r.now())
	return s, nil
}

func (r *sessionRegistry) remove(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// expire drops every session idle for longer than idle, except those keep
// reports as still in use, and returns their ids sorted.
func (r *sessionRegistry) expire(idle time.Duration, keep func(id string) bool) []string {
	now := r.now()
	r.mutex.Lock()
	var gone []string
	for id, s := range r.sessions {
		if s.idleSince(now) <= idle || (keep != nil && keep(id)) {
			continue
		}
		delete(r.sessions, id)
		gone = append(gone, id)
	}
	r.mutex.Unlock()
	sort.Strings(gone)
	return gone
}

func (r *sessionRegistry) len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

// container maps a mode to the plot area it draws in.
func (s *Session) container(m demo.Mode) string {
	cfg := s.Ctrl.Config()
	if m == demo.ModeLinear {
		return cfg.LinearContainer
	}
	return cfg.LogisticContainer
}
