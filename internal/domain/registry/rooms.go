package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// Rooms maps topics to subscribed connections.
//
// [REVERSE_INDEX]
// Every connection keeps the set of topics it joined, so dropping a
// connection touches only its own topics instead of scanning the index.
//
// [LOCK_ORDER]
// Connection shard first, then topic shard. Never the other way around.
type Rooms struct {
	topics []*topicShard
	conns  []*connShard
}

type topicShard struct {
	mu   sync.RWMutex
	subs map[model.TopicKey]map[uuid.UUID]struct{}
}

type connShard struct {
	mu     sync.RWMutex
	joined map[uuid.UUID]map[model.TopicKey]struct{}
}

func NewRooms(shards int) *Rooms {
	n := normShards(shards)
	r := &Rooms{
		topics: make([]*topicShard, n),
		conns:  make([]*connShard, n),
	}
	for i := 0; i < n; i++ {
		r.topics[i] = &topicShard{subs: make(map[model.TopicKey]map[uuid.UUID]struct{})}
		r.conns[i] = &connShard{joined: make(map[uuid.UUID]map[model.TopicKey]struct{})}
	}
	return r
}

func (r *Rooms) topicShard(key model.TopicKey) *topicShard {
	return r.topics[shardOfTopic(key, len(r.topics))]
}

func (r *Rooms) connShard(connID uuid.UUID) *connShard {
	return r.conns[shardOfID(connID, len(r.conns))]
}

// Subscribe adds connID to the topic, creating the topic lazily.
// It reports whether the subscription is new.
func (r *Rooms) Subscribe(connID uuid.UUID, topic model.TopicKey) bool {
	cs := r.connShard(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	set, ok := cs.joined[connID]
	if !ok {
		set = make(map[model.TopicKey]struct{})
		cs.joined[connID] = set
	}
	if _, dup := set[topic]; dup {
		return false
	}
	set[topic] = struct{}{}

	ts := r.topicShard(topic)
	ts.mu.Lock()
	members, ok := ts.subs[topic]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		ts.subs[topic] = members
	}
	members[connID] = struct{}{}
	ts.mu.Unlock()

	return true
}

// Unsubscribe removes connID from the topic; empty topics are dropped.
func (r *Rooms) Unsubscribe(connID uuid.UUID, topic model.TopicKey) bool {
	cs := r.connShard(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	set, ok := cs.joined[connID]
	if !ok {
		return false
	}
	if _, member := set[topic]; !member {
		return false
	}
	delete(set, topic)
	if len(set) == 0 {
		delete(cs.joined, connID)
	}

	r.removeMember(topic, connID)
	return true
}

// DropConnection removes every subscription of connID and returns the topics it held.
func (r *Rooms) DropConnection(connID uuid.UUID) []model.TopicKey {
	cs := r.connShard(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	set, ok := cs.joined[connID]
	if !ok {
		return nil
	}
	delete(cs.joined, connID)

	out := make([]model.TopicKey, 0, len(set))
	for topic := range set {
		r.removeMember(topic, connID)
		out = append(out, topic)
	}
	return out
}

func (r *Rooms) removeMember(topic model.TopicKey, connID uuid.UUID) {
	ts := r.topicShard(topic)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	members, ok := ts.subs[topic]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(ts.subs, topic)
	}
}

// SubscribersOf returns a copy of the topic's subscriber set; never nil.
func (r *Rooms) SubscribersOf(topic model.TopicKey) []uuid.UUID {
	ts := r.topicShard(topic)
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	members := ts.subs[topic]
	out := make([]uuid.UUID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (r *Rooms) TopicsOf(connID uuid.UUID) []model.TopicKey {
	cs := r.connShard(connID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	set := cs.joined[connID]
	out := make([]model.TopicKey, 0, len(set))
	for topic := range set {
		out = append(out, topic)
	}
	return out
}

func (r *Rooms) IsSubscribed(connID uuid.UUID, topic model.TopicKey) bool {
	cs := r.connShard(connID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	_, ok := cs.joined[connID][topic]
	return ok
}

// Len returns the number of non-empty topics.
func (r *Rooms) Len() int {
	n := 0
	for _, ts := range r.topics {
		ts.mu.RLock()
		n += len(ts.subs)
		ts.mu.RUnlock()
	}
	return n
}
