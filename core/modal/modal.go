package modal

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type Demo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Demos are the entries the page offers in its demo menu.
var Demos = []Demo{
	{Name: "Regression Demo", URL: "/ml-demo/"},
	{Name: "KPI Dashboard", URL: "/kpi-demo/"},
}

type State struct {
	Open  bool   `json:"open"`
	Src   string `json:"src"`
	Label string `json:"label"`
}

// Modal is the iframe dialog a demo opens in. Hiding it clears the frame
// source so the demo stops running in the background.
type Modal struct {
	mutex sync.RWMutex
	state State
}

func (m *Modal) Show(url, label string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("modal needs a url")
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.state = State{Open: true, Src: url, Label: strings.TrimSpace(label)}
	return nil
}

func (m *Modal) Hide() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.state = State{}
}

func (m *Modal) State() State {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.state
}
