package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pomelo/internal/model"
)

// ErrNotFound 归档对话不存在
var ErrNotFound = errors.New("conversation not found")

// ConversationRepo 对话归档仓库
// 每轮完成的对话按 session_id 追加到同一份归档文档
type ConversationRepo struct {
	collection *mongo.Collection
}

// NewConversationRepo 创建对话归档仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		collection: db.Collection((&model.Conversation{}).Collection()),
	}
}

// AppendExchange 追加一轮完成的对话
// 会话首轮时顺带创建归档文档（upsert），避免创建和追加两次往返
func (r *ConversationRepo) AppendExchange(ctx context.Context, sessionID, title, modelName string, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	now := time.Now()
	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": msgs}},
		"$set":  bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"session_id": sessionID,
			"title":      title,
			"model":      modelName,
			"created_at": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"session_id": sessionID}, update, opts)
	return err
}

// FindByID 根据归档 ID 查询完整对话
func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var conv model.Conversation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// FindBySessionID 根据会话 ID 查询完整对话
func (r *ConversationRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// List 查询归档对话列表，按最近更新排序
// 列表不带消息内容，详情走 FindByID
func (r *ConversationRepo) List(ctx context.Context, limit, offset int64) ([]*model.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset).
		SetProjection(bson.M{"messages": 0})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []*model.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}

	return convs, nil
}

// Count 归档对话总数
func (r *ConversationRepo) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// Delete 删除归档对话
func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
