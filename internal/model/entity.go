package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation 归档的对话实体
// 会话在内存中进行，每轮完成后追加到这里做持久化
type Conversation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Title     string             `bson:"title" json:"title"`
	Model     string             `bson:"model" json:"model"`
	Messages  []Message          `bson:"messages" json:"messages,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (c *Conversation) Collection() string {
	return "conversations"
}

// EnsureIndexes 创建和维护索引
func (c *Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "session_id", Value: 1}},
			Options: options.Index().SetName("idx_session").SetUnique(true),
		},
		{
			Keys:    bson.D{bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_updated"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// Message 一轮对话中的单条消息
type Message struct {
	Role       string      `bson:"role" json:"role"`
	Content    string      `bson:"content" json:"content"`
	Timestamp  time.Time   `bson:"timestamp" json:"timestamp"`
	TokenUsage *TokenUsage `bson:"token_usage,omitempty" json:"token_usage,omitempty"`
}
