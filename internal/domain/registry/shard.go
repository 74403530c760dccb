package registry

import (
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

const defaultShards = 32

func shardOfID(id uuid.UUID, n int) int {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return int(h.Sum32() % uint32(n))
}

func shardOfTopic(key model.TopicKey, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.Kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.Target))
	return int(h.Sum32() % uint32(n))
}

func normShards(n int) int {
	if n <= 0 {
		return defaultShards
	}
	return n
}
