package mongodb

import (
	"context"
	"fmt"

	"pomelo/internal/model"
)

// registeredModels 所有需要维护索引的实体
func registeredModels() []Model {
	return []Model{
		&model.Conversation{},
	}
}

// EnsureIndexes 启动时为已注册实体建立索引
func (c *Client) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	for _, m := range registeredModels() {
		if err := m.EnsureIndexes(ctx, c.database); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", m.Collection(), err)
		}
	}
	return nil
}
