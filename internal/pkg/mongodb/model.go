package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Model 自述集合名和索引的 MongoDB 实体
type Model interface {
	// Collection 返回集合名称
	Collection() string

	// EnsureIndexes 创建和维护索引
	EnsureIndexes(ctx context.Context, db *mongo.Database) error
}
