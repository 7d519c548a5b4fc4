package redis

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

// nsHook prefixes every key argument with the configured namespace.
type nsHook struct {
	namespace string
}

var (
	firstKeyCommands = map[string]bool{
		"get": true, "set": true, "setnx": true, "setex": true, "getdel": true, "getex": true,
		"incr": true, "incrby": true, "decr": true, "decrby": true, "append": true, "strlen": true,
		"expire": true, "pexpire": true, "expireat": true, "persist": true, "ttl": true, "pttl": true, "type": true,
		"hget": true, "hset": true, "hdel": true, "hgetall": true, "hexists": true, "hincrby": true, "hkeys": true, "hlen": true, "hmget": true,
		"lpush": true, "rpush": true, "lpop": true, "rpop": true, "lrange": true, "llen": true, "ltrim": true, "lrem": true,
		"sadd": true, "srem": true, "smembers": true, "sismember": true, "scard": true,
		"zadd": true, "zrem": true, "zrange": true, "zrangebyscore": true, "zscore": true, "zcard": true, "zincrby": true,
	}
	allKeyCommands = map[string]bool{
		"del": true, "unlink": true, "exists": true, "touch": true, "mget": true,
	}
)

func (h *nsHook) appendNamespace(key interface{}) string {
	k := fmt.Sprint(key)
	if strings.HasPrefix(k, h.namespace+":") {
		return k
	}

	return fmt.Sprintf("%s:%s", h.namespace, k)
}

func (h *nsHook) updateCmd(cmd redis.Cmder) {
	args := cmd.Args()
	if len(args) <= 1 {
		return
	}

	name := cmd.Name()
	switch {
	case firstKeyCommands[name]:
		args[1] = h.appendNamespace(args[1])
	case allKeyCommands[name]:
		for i := 1; i < len(args); i++ {
			args[i] = h.appendNamespace(args[i])
		}
	case name == "mset" || name == "msetnx":
		for i := 1; i < len(args); i += 2 {
			args[i] = h.appendNamespace(args[i])
		}
	case name == "eval" || name == "evalsha":
		numKeys, ok := args[2].(int)
		if !ok {
			return
		}
		for i := 3; i < numKeys+3 && i < len(args); i++ {
			args[i] = h.appendNamespace(args[i])
		}
	}
}

func (h *nsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *nsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if len(h.namespace) > 0 {
			h.updateCmd(cmd)
		}

		return next(ctx, cmd)
	}
}

func (h *nsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmd []redis.Cmder) error {
		if len(h.namespace) > 0 {
			for _, c := range cmd {
				h.updateCmd(c)
			}
		}

		return next(ctx, cmd)
	}
}
