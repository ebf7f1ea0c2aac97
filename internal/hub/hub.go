// SPDX-License-Identifier: MIT

// Package hub maintains the per-channel subscriber sets and fans stamped
// envelopes out to them. Channels are session ids plus the reserved
// "_download" channel for model download progress.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ManuGH/livecap/internal/events"
	"github.com/ManuGH/livecap/internal/log"
)

// DownloadChannel carries download progress events not tied to a session.
const DownloadChannel = "_download"

var (
	subscribersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "livecap",
		Name:      "hub_subscribers",
		Help:      "Connected subscribers per channel",
	}, []string{"channel"})

	broadcastDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livecap",
		Name:      "hub_broadcast_dropped_total",
		Help:      "Subscribers dropped during broadcast",
	}, []string{"channel", "reason"})
)

// Hub is the subscriber registry. The registry mutex is held only for
// set mutation and snapshotting; sends happen against the snapshot so a
// slow subscriber can never block enumeration.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{channels: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers conn on channel and starts its writer. The initial
// hello frame is enqueued before the subscriber is visible to Broadcast,
// so hello always precedes live events.
func (h *Hub) Subscribe(channel string, conn Conn) *Subscriber {
	sub := newSubscriber(h, channel, conn)

	hello, _ := json.Marshal(map[string]any{"type": string(events.TypeHello), "sid": channel})
	sub.enqueue(hello)

	h.mu.Lock()
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.channels[channel] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	subscribersGauge.WithLabelValues(channel).Inc()
	sub.start()
	return sub
}

// Unsubscribe removes sub and closes its connection. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.remove(sub, "unsubscribe")
}

// Broadcast delivers env to every subscriber of channel. Each send is a
// non-blocking enqueue; a subscriber whose buffer is full is dropped and
// closed. Failures never propagate to other subscribers or the caller.
func (h *Hub) Broadcast(channel string, env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logger := log.WithComponent("hub")
		logger.Error().Err(err).
			Str("channel", channel).
			Msg("envelope marshal failed, event not delivered")
		return
	}

	h.mu.RLock()
	set := h.channels[channel]
	subs := make([]*Subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.enqueue(data) {
			h.remove(sub, "slow_consumer")
		}
	}
}

// SubscriberCount returns the current number of subscribers on channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Close tears down every subscriber. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Subscriber
	for _, set := range h.channels {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		h.remove(sub, "shutdown")
	}
}

func (h *Hub) remove(sub *Subscriber, reason string) {
	h.mu.Lock()
	set, ok := h.channels[sub.channel]
	if ok {
		if _, present := set[sub]; !present {
			ok = false
		} else {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.channels, sub.channel)
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	subscribersGauge.WithLabelValues(sub.channel).Dec()
	if reason != "unsubscribe" {
		broadcastDropped.WithLabelValues(sub.channel, reason).Inc()
	}
	sub.close()
}
