// Package redis stores graph checkpoints in Redis using github.com/redis/go-redis/v9.
//
// Each checkpoint is a JSON string under "<prefix>checkpoint:<id>" and the
// ids of a thread are kept in the set "<prefix>thread:<thread>:checkpoints".
// An optional TTL applies to both keys.
package redis
