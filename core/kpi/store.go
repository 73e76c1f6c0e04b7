package kpi

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"vizdemo/common"
	"vizdemo/core/msgbus"
)

var (
	ErrUnknownChart = errors.New("unknown kpi chart")
	ErrNotLoaded    = errors.New("kpi data not loaded")
)

// Store keeps the last good copy of data.json. A failed reload leaves the
// previous data in place.
type Store struct {
	mutex sync.RWMutex
	path  string
	data  *Data
	bus   msgbus.MessageBus
	log   common.Logger
}

func NewStore(path string, bus msgbus.MessageBus, log common.Logger) *Store {
	return &Store{path: path, bus: bus, log: log}
}

func (s *Store) Reload() error {
	d, err := Load(s.path)
	if err != nil {
		s.log.Errorf("reload %s failed: %s", s.path, err)
		return err
	}
	s.Set(d)
	s.log.Infof("loaded %s: %d days, %d asins, %d states",
		s.path, len(d.SalesData), len(d.AsinData), len(d.BuyerData))
	return nil
}

func (s *Store) Set(d *Data) {
	s.mutex.Lock()
	s.data = d
	s.mutex.Unlock()
	if s.bus != nil {
		s.bus.Publish("", common.LocalKPIMsg_DataLoaded, len(d.SalesData))
	}
}

func (s *Store) Data() (*Data, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.data, s.data != nil
}

// RenderSVG draws the sales or asins chart.
func (s *Store) RenderSVG(name string, width, height int) ([]byte, error) {
	d, ok := s.Data()
	if !ok {
		return nil, ErrNotLoaded
	}
	var buf bytes.Buffer
	var err error
	switch name {
	case ChartSales:
		err = SalesChart(&buf, d.SalesData, width, height)
	case ChartAsins:
		err = AsinChart(&buf, d.AsinData, width, height)
	default:
		return nil, errors.Wrapf(ErrUnknownChart, "%q", name)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) Fills() (map[string]string, error) {
	d, ok := s.Data()
	if !ok {
		return nil, ErrNotLoaded
	}
	return StateFills(d.BuyerData, StateNames), nil
}
