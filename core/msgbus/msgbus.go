package msgbus

import (
	"sync"
	"sync/atomic"
	"vizdemo/common"
)

var defaultTopicSize int = 100

type BusMessage struct {
	MsgType   common.LocalMsgType
	SessionID string
	Msg       interface{}
}

type Subscriber interface {
	HandleMsgFromMsgBus(msg *BusMessage) error
}

// SubscriberFunc adapts a plain function to Subscriber. Only pointers to
// SubscriberFunc can be unregistered, since funcs are not comparable.
type SubscriberFunc func(msg *BusMessage) error

func (f *SubscriberFunc) HandleMsgFromMsgBus(msg *BusMessage) error {
	return (*f)(msg)
}

type MessageBus interface {
	Register(topic common.LocalMsgType, sub Subscriber)
	UnRegister(topic common.LocalMsgType, sub Subscriber)
	Publish(sessionID string, t common.LocalMsgType, payload interface{})
	Dropped() uint64
	Reset()
}

type Topic interface {
	Register(sub Subscriber)
	UnRegister(sub Subscriber)
	Publish(msg *BusMessage) bool
	Stop()
}

type topicImpl struct {
	msgChan chan *BusMessage
	subs    atomic.Value //[]Subscriber
	mutex   sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

func newTopic(size int) Topic {
	t := &topicImpl{
		msgChan: make(chan *BusMessage, size),
		stop:    make(chan struct{}),
	}
	t.subs.Store([]Subscriber{})
	go t.handlePublish()
	return t
}

func (t *topicImpl) Register(sub Subscriber) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subs := t.subs.Load().([]Subscriber)
	for _, s := range subs {
		if s == sub {
			return
		}
	}
	newSubs := make([]Subscriber, 0, len(subs)+1)
	newSubs = append(newSubs, subs...)
	t.subs.Store(append(newSubs, sub))
}

func (t *topicImpl) UnRegister(sub Subscriber) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subs := t.subs.Load().([]Subscriber)
	for i, s := range subs {
		if s == sub {
			newSubs := make([]Subscriber, 0, len(subs)-1)
			newSubs = append(newSubs, subs[:i]...)
			t.subs.Store(append(newSubs, subs[i+1:]...))
			return
		}
	}
}

// Publish never blocks the caller; a full topic drops the message.
func (t *topicImpl) Publish(msg *BusMessage) bool {
	select {
	case <-t.stop:
		return false
	case t.msgChan <- msg:
		return true
	default:
		return false
	}
}

func (t *topicImpl) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// handlePublish delivers messages in publish order, one subscriber at a time.
func (t *topicImpl) handlePublish() {
	for {
		select {
		case <-t.stop:
			return
		case msg := <-t.msgChan:
			subs := t.subs.Load().([]Subscriber)
			for _, sub := range subs {
				_ = sub.HandleMsgFromMsgBus(msg)
			}
		}
	}
}

type messageBusImpl struct {
	mutex   sync.Mutex
	topics  map[common.LocalMsgType]Topic
	dropped atomic.Uint64
}

func New() MessageBus {
	return &messageBusImpl{topics: make(map[common.LocalMsgType]Topic)}
}

func (mb *messageBusImpl) Register(topic common.LocalMsgType, sub Subscriber) {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	firstClassTopic := topic.Type()
	t, ok := mb.topics[firstClassTopic]
	if !ok {
		t = newTopic(defaultTopicSize)
		mb.topics[firstClassTopic] = t
	}
	t.Register(sub)
}

func (mb *messageBusImpl) UnRegister(topic common.LocalMsgType, sub Subscriber) {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	if t, ok := mb.topics[topic.Type()]; ok {
		t.UnRegister(sub)
	}
}

// Publish to a topic nobody registered for is a no-op.
func (mb *messageBusImpl) Publish(sessionID string, topic common.LocalMsgType, msg interface{}) {
	mb.mutex.Lock()
	t, ok := mb.topics[topic.Type()]
	mb.mutex.Unlock()
	if !ok {
		return
	}
	if !t.Publish(&BusMessage{MsgType: topic, SessionID: sessionID, Msg: msg}) {
		mb.dropped.Add(1)
	}
}

func (mb *messageBusImpl) Dropped() uint64 {
	return mb.dropped.Load()
}

func (mb *messageBusImpl) Reset() {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	for _, t := range mb.topics {
		t.Stop()
	}
	mb.topics = make(map[common.LocalMsgType]Topic)
}

var singletonMessageBus MessageBus
var once sync.Once

func InitMessageBus() MessageBus {
	once.Do(func() {
		singletonMessageBus = New()
	})
	return singletonMessageBus
}
