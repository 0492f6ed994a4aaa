package mqtt

import (
	"strings"
	"sync"
)

type subscription struct {
	filter  string
	qos     int
	handler MessageHandler
}

// registry is the set of live subscriptions, keyed by filter. It outlives
// individual connections so a reconnect can replay it.
type registry struct {
	mu   sync.RWMutex
	subs map[string]subscription
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]subscription)}
}

func (r *registry) put(s subscription) {
	r.mu.Lock()
	r.subs[s.filter] = s
	r.mu.Unlock()
}

func (r *registry) drop(filter string) {
	r.mu.Lock()
	delete(r.subs, filter)
	r.mu.Unlock()
}

func (r *registry) all() []subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

// handlers returns every handler whose filter accepts topic.
func (r *registry) handlers(topic string) []MessageHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []MessageHandler
	for _, s := range r.subs {
		if topicsMatch(topicFilter(s.filter), topic) {
			out = append(out, s.handler)
		}
	}
	return out
}

// topicsMatch reports whether topic is accepted by filter, honouring the
// single-level (+) and multi-level (#) wildcards.
func topicsMatch(filter, topic string) bool {
	for {
		fseg, frest, fmore := strings.Cut(filter, "/")
		tseg, trest, tmore := strings.Cut(topic, "/")
		switch {
		case fseg == "#":
			return true
		case fseg != "+" && fseg != tseg:
			return false
		case !tmore:
			return !fmore || frest == "#"
		case !fmore:
			return false
		}
		filter, topic = frest, trest
	}
}

// topicFilter strips the $share/<group>/ prefix of a shared subscription.
func topicFilter(filter string) string {
	rest, ok := strings.CutPrefix(filter, "$share/")
	if !ok {
		return filter
	}
	if _, f, found := strings.Cut(rest, "/"); found {
		return f
	}
	return filter
}
