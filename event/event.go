package event

import (
	"sync"
	"time"
)

const EventQueueSize = 20

type Type string

type SubscriberId int

type HandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      Type
}

func NewEvent(eventType Type, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Bus 进程内事件总线，发布方不等待订阅方消费
type Bus struct {
	subscribers map[Type]map[SubscriberId]chan Event
	lastSubId   SubscriberId
	mu          sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Type]map[SubscriberId]chan Event),
	}
}

// Subscribe 订阅指定类型的事件，返回订阅id和事件通道
func (b *Bus) Subscribe(eventType Type) (SubscriberId, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSubId++
	subId := b.lastSubId
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberId]chan Event)
	}
	evtCh := make(chan Event, EventQueueSize)
	b.subscribers[eventType][subId] = evtCh
	return subId, evtCh
}

// SubscribeFunc 订阅并用独立goroutine消费
func (b *Bus) SubscribeFunc(eventType Type, handler HandlerFunc) SubscriberId {
	subId, evtCh := b.Subscribe(eventType)
	go func() {
		for evt := range evtCh {
			handler(evt)
		}
	}()
	return subId
}

func (b *Bus) Unsubscribe(eventType Type, subId SubscriberId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[eventType]; ok {
		if evtCh, ok := subs[subId]; ok {
			delete(subs, subId)
			close(evtCh)
		}
	}
}

// Publish 发布事件，订阅方队列满时丢弃，避免阻塞发布方
func (b *Bus) Publish(eventType Type, data any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	evt := NewEvent(eventType, data)
	for _, evtCh := range b.subscribers[eventType] {
		select {
		case evtCh <- evt:
		default:
		}
	}
}
