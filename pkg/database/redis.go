package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"shop-catalog/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接，分类树缓存与 Kafka 重试计数共用这一个客户端。
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
