package cache

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"pomelo/internal/model"
)

func TestCompletionCacheKey(t *testing.T) {
	Convey("CompletionCacheKey 由请求内容决定", t, func() {
		messages := []model.Message{
			{Role: model.RoleUser, Content: "你好"},
			{Role: model.RoleAssistant, Content: "你好！"},
			{Role: model.RoleUser, Content: "今天天气怎么样"},
		}

		Convey("相同输入得到相同 key", func() {
			k1 := CompletionCacheKey("test-model", messages, nil)
			k2 := CompletionCacheKey("test-model", messages, nil)
			So(k1, ShouldEqual, k2)
			So(strings.HasPrefix(k1, CompletionCacheKeyPrefix), ShouldBeTrue)
		})

		Convey("模型不同 key 不同", func() {
			k1 := CompletionCacheKey("model-a", messages, nil)
			k2 := CompletionCacheKey("model-b", messages, nil)
			So(k1, ShouldNotEqual, k2)
		})

		Convey("历史不同 key 不同", func() {
			other := append([]model.Message{}, messages...)
			other[2].Content = "明天天气怎么样"
			k1 := CompletionCacheKey("test-model", messages, nil)
			k2 := CompletionCacheKey("test-model", other, nil)
			So(k1, ShouldNotEqual, k2)
		})

		Convey("采样参数不同 key 不同", func() {
			low := 0.2
			high := 1.5
			k1 := CompletionCacheKey("test-model", messages, &model.ChatOptions{Temperature: &low})
			k2 := CompletionCacheKey("test-model", messages, &model.ChatOptions{Temperature: &high})
			k3 := CompletionCacheKey("test-model", messages, nil)
			So(k1, ShouldNotEqual, k2)
			So(k1, ShouldNotEqual, k3)
		})

		Convey("角色和正文的边界不会混淆", func() {
			a := []model.Message{{Role: "user", Content: "ab"}}
			b := []model.Message{{Role: "usera", Content: "b"}}
			So(CompletionCacheKey("m", a, nil), ShouldNotEqual, CompletionCacheKey("m", b, nil))
		})
	})
}
