package msgbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vizdemo/common"
)

type collector struct {
	mutex sync.Mutex
	msgs  []*BusMessage
	got   chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 64)}
}

func (c *collector) HandleMsgFromMsgBus(msg *BusMessage) error {
	c.mutex.Lock()
	c.msgs = append(c.msgs, msg)
	c.mutex.Unlock()
	c.got <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T, n int) []*BusMessage {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d of %d messages", i, n)
		}
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]*BusMessage(nil), c.msgs...)
}

func TestPublishDeliversInOrder(t *testing.T) {
	mb := New()
	defer mb.Reset()
	c := newCollector()
	mb.Register(common.LocalDemoMsg, c)

	mb.Publish("s1", common.LocalDemoMsg_Loading, 1)
	mb.Publish("s1", common.LocalDemoMsg_Redrawn, 2)
	mb.Publish("s2", common.LocalDemoMsg_Failed, 3)

	msgs := c.wait(t, 3)
	require.Len(t, msgs, 3)
	assert.Equal(t, common.LocalDemoMsg_Loading, msgs[0].MsgType)
	assert.Equal(t, common.LocalDemoMsg_Redrawn, msgs[1].MsgType)
	assert.Equal(t, "s2", msgs[2].SessionID)
	assert.Equal(t, 3, msgs[2].Msg)
}

func TestTopicsAreSeparate(t *testing.T) {
	mb := New()
	defer mb.Reset()
	demo, kpi := newCollector(), newCollector()
	mb.Register(common.LocalDemoMsg, demo)
	mb.Register(common.LocalKPIMsg, kpi)

	mb.Publish("", common.LocalKPIMsg_DataLoaded, nil)
	msgs := kpi.wait(t, 1)
	assert.Equal(t, common.LocalKPIMsg_DataLoaded, msgs[0].MsgType)

	demo.mutex.Lock()
	assert.Empty(t, demo.msgs)
	demo.mutex.Unlock()
}

func TestUnRegisterSubscriberFunc(t *testing.T) {
	mb := New()
	defer mb.Reset()
	stay := newCollector()
	mb.Register(common.LocalDemoMsg, stay)

	var mutex sync.Mutex
	calls := 0
	fn := SubscriberFunc(func(*BusMessage) error {
		mutex.Lock()
		calls++
		mutex.Unlock()
		return nil
	})
	mb.Register(common.LocalDemoMsg, &fn)
	mb.Register(common.LocalDemoMsg, &fn)

	mb.Publish("a", common.LocalDemoMsg_Loading, nil)
	stay.wait(t, 1)
	mb.UnRegister(common.LocalDemoMsg, &fn)
	mb.Publish("a", common.LocalDemoMsg_Redrawn, nil)
	stay.wait(t, 1)

	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, 1, calls)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	mb := New()
	mb.Publish("x", common.LocalDemoMsg_Loading, nil)
	assert.Zero(t, mb.Dropped())
}

func TestFullTopicDrops(t *testing.T) {
	mb := New()
	defer mb.Reset()
	block := make(chan struct{})
	fn := SubscriberFunc(func(*BusMessage) error {
		<-block
		return nil
	})
	mb.Register(common.LocalDemoMsg, &fn)

	for i := 0; i < defaultTopicSize+10; i++ {
		mb.Publish("x", common.LocalDemoMsg_Loading, i)
	}
	assert.Positive(t, mb.Dropped())
	close(block)
}
