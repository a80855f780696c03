package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pomelo/internal/ai"
	"pomelo/internal/config"
	"pomelo/internal/model"
	"pomelo/internal/pkg/siliconflow"
	"pomelo/internal/repository"
	"pomelo/internal/session"
)

// fixedEstimator 按字符数估算，让测试里的 token 预算可以精确推演
type fixedEstimator struct{}

func (fixedEstimator) Estimate(text string) int { return len([]rune(text)) }

func testServiceConfig() *config.AIConfig {
	return &config.AIConfig{
		Model:         "test-model",
		ContextWindow: 32768,
		Options: config.AIOptionsConfig{
			Temperature: 0.7,
			MaxTokens:   4096,
			TopP:        0.7,
		},
	}
}

func newTestChatService(t *testing.T, upstreamURL string) *ChatService {
	t.Helper()
	cfg := testServiceConfig()
	sf, err := siliconflow.NewClient(siliconflow.Config{
		APIKey:     "sk-test",
		BaseURL:    upstreamURL,
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	sessions := session.NewManager(cfg, fixedEstimator{})
	return NewChatService(sessions, ai.NewClient(cfg, sf), nil, nil, 0)
}

// upstreamMessage 上游请求体中的消息结构
type upstreamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func TestChatService_Chat(t *testing.T) {
	Convey("Chat 完成一轮问答并维护会话历史", t, func(c C) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)

			var body struct {
				Messages []upstreamMessage `json:"messages"`
			}
			c.So(json.NewDecoder(r.Body).Decode(&body), ShouldBeNil)
			// 第二轮请求应携带第一轮的完整历史
			if n == 1 {
				c.So(len(body.Messages), ShouldEqual, 1)
			} else {
				c.So(len(body.Messages), ShouldEqual, 3)
				c.So(body.Messages[0].Role, ShouldEqual, model.RoleUser)
				c.So(body.Messages[1].Role, ShouldEqual, model.RoleAssistant)
			}

			fmt.Fprintf(w, `{
				"choices": [{"message": {"role": "assistant", "content": "回复%d"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
			}`, n)
		}))
		defer srv.Close()

		svc := newTestChatService(t, srv.URL)

		resp1, err := svc.Chat(context.Background(), &model.ChatRequest{Message: "第一个问题"})
		So(err, ShouldBeNil)
		So(resp1.SessionID, ShouldNotBeEmpty)
		So(resp1.Message, ShouldEqual, "回复1")
		So(resp1.FinishReason, ShouldEqual, "stop")
		So(resp1.Truncated, ShouldBeFalse)
		So(resp1.Usage.TotalTokens, ShouldEqual, 7)

		resp2, err := svc.Chat(context.Background(), &model.ChatRequest{
			SessionID: resp1.SessionID,
			Message:   "第二个问题",
		})
		So(err, ShouldBeNil)
		So(resp2.SessionID, ShouldEqual, resp1.SessionID)
		So(resp2.Message, ShouldEqual, "回复2")

		sess, err := svc.sessions.Get(resp1.SessionID)
		So(err, ShouldBeNil)
		snapshot := sess.Snapshot()
		So(len(snapshot), ShouldEqual, 4)
		So(snapshot[3].Content, ShouldEqual, "回复2")
		So(sess.Busy(), ShouldBeFalse)
	})

	Convey("会话忙时并发请求被拒绝", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`)
		}))
		defer srv.Close()

		svc := newTestChatService(t, srv.URL)
		sess := svc.sessions.Create(nil)
		_, err := sess.BeginRequest("占住会话")
		So(err, ShouldBeNil)

		_, err = svc.Chat(context.Background(), &model.ChatRequest{
			SessionID: sess.ID(),
			Message:   "并发请求",
		})
		So(errors.Is(err, session.ErrBusy), ShouldBeTrue)

		// 在途请求不受影响
		So(sess.Busy(), ShouldBeTrue)
		So(len(sess.Snapshot()), ShouldEqual, 1)
	})

	Convey("上游失败保留用户消息，会话可以继续重试", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"upstream exploded"}`)
		}))
		defer srv.Close()

		svc := newTestChatService(t, srv.URL)

		resp, err := svc.Chat(context.Background(), &model.ChatRequest{Message: "会失败的问题"})
		So(resp, ShouldBeNil)
		apiErr, ok := siliconflow.AsAPIError(err)
		So(ok, ShouldBeTrue)
		So(apiErr.Kind, ShouldEqual, siliconflow.ErrKindServerError)

		// 失败后用户消息保留，会话回到空闲可以再次发起请求
		infos := svc.sessions.List()
		So(len(infos), ShouldEqual, 1)
		sess, err := svc.sessions.Get(infos[0].SessionID)
		So(err, ShouldBeNil)
		So(sess.Busy(), ShouldBeFalse)
		snapshot := sess.Snapshot()
		So(len(snapshot), ShouldEqual, 1)
		So(snapshot[0].Content, ShouldEqual, "会失败的问题")

		_, err = svc.Chat(context.Background(), &model.ChatRequest{
			SessionID: sess.ID(),
			Message:   "再试一次",
		})
		So(err, ShouldNotBeNil)
		So(len(sess.Snapshot()), ShouldEqual, 2)
	})

	Convey("调用方取消时回滚本轮对话", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 服务端读完请求体后才能感知客户端断开
			_, _ = io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
		}))
		defer srv.Close()

		svc := newTestChatService(t, srv.URL)
		sess := svc.sessions.Create(nil)

		ctx, cancel := context.WithCancel(context.Background())
		timer := time.AfterFunc(100*time.Millisecond, cancel)
		defer timer.Stop()
		defer cancel()

		_, err := svc.Chat(ctx, &model.ChatRequest{
			SessionID: sess.ID(),
			Message:   "被取消的问题",
		})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)

		// 取消后本轮的用户消息也被回滚
		So(sess.Busy(), ShouldBeFalse)
		So(len(sess.Snapshot()), ShouldEqual, 0)
	})

	Convey("归档失败仅告警，响应照常返回", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[{"message":{"content":"照常回复"},"finish_reason":"stop"}]}`)
		}))
		defer srv.Close()

		// 指向不可达的 MongoDB，归档写入必然失败
		mongoClient, err := mongo.Connect(context.Background(), options.Client().
			ApplyURI("mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=100&connectTimeoutMS=100"))
		So(err, ShouldBeNil)
		defer mongoClient.Disconnect(context.Background())
		repo := repository.NewConversationRepo(mongoClient.Database("pomelo_test"))

		cfg := testServiceConfig()
		sf, err := siliconflow.NewClient(siliconflow.Config{APIKey: "sk-test", BaseURL: srv.URL})
		So(err, ShouldBeNil)
		svc := NewChatService(session.NewManager(cfg, fixedEstimator{}), ai.NewClient(cfg, sf), repo, nil, 0)

		resp, err := svc.Chat(context.Background(), &model.ChatRequest{Message: "这轮归档会失败"})
		So(err, ShouldBeNil)
		So(resp.Message, ShouldEqual, "照常回复")

		// 会话状态不受归档失败影响
		sess, err := svc.sessions.Get(resp.SessionID)
		So(err, ShouldBeNil)
		So(sess.Busy(), ShouldBeFalse)
		So(len(sess.Snapshot()), ShouldEqual, 2)
	})
}

func TestChatService_ChatStream(t *testing.T) {
	Convey("流式对话转发事件并在结束时更新会话", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			frames := []string{
				`data: {"choices":[{"delta":{"content":"你"},"finish_reason":null}]}`,
				`data: {"choices":[{"delta":{"content":"好"},"finish_reason":null}]}`,
				`data: {"choices":[{"delta":{"content":""},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
				`data: [DONE]`,
			}
			for _, f := range frames {
				fmt.Fprintf(w, "%s\n\n", f)
				flusher.Flush()
			}
		}))
		defer srv.Close()

		svc := newTestChatService(t, srv.URL)

		events, sessionID, err := svc.ChatStream(context.Background(), &model.ChatRequest{Message: "打个招呼"})
		So(err, ShouldBeNil)
		So(sessionID, ShouldNotBeEmpty)

		var deltas []string
		var final *model.ChatChunk
		for ev := range events {
			So(ev.Err, ShouldBeNil)
			if ev.Chunk.Done {
				final = ev.Chunk
				continue
			}
			deltas = append(deltas, ev.Chunk.Content)
		}

		So(strings.Join(deltas, ""), ShouldEqual, "你好")
		So(final, ShouldNotBeNil)
		So(final.SessionID, ShouldEqual, sessionID)
		So(final.Truncated, ShouldBeFalse)
		So(final.Usage.TotalTokens, ShouldEqual, 5)

		// 通道关闭后会话已经结清
		sess, err := svc.sessions.Get(sessionID)
		So(err, ShouldBeNil)
		So(sess.Busy(), ShouldBeFalse)
		snapshot := sess.Snapshot()
		So(len(snapshot), ShouldEqual, 2)
		So(snapshot[1].Role, ShouldEqual, model.RoleAssistant)
		So(snapshot[1].Content, ShouldEqual, "你好")
	})

	Convey("上游中断时转发错误事件并保留用户消息", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"断掉的回\"},\"finish_reason\":null}]}\n\n")
			flusher.Flush()
			// 不发 [DONE] 直接断开
		}))
		defer srv.Close()

		svc := newTestChatService(t, srv.URL)

		events, sessionID, err := svc.ChatStream(context.Background(), &model.ChatRequest{Message: "你好"})
		So(err, ShouldBeNil)

		var streamErr error
		for ev := range events {
			if ev.Err != nil {
				streamErr = ev.Err
			}
		}

		var interrupted *ai.StreamInterruptedError
		So(errors.As(streamErr, &interrupted), ShouldBeTrue)
		So(interrupted.Partial, ShouldEqual, "断掉的回")

		sess, err := svc.sessions.Get(sessionID)
		So(err, ShouldBeNil)
		So(sess.Busy(), ShouldBeFalse)
		snapshot := sess.Snapshot()
		So(len(snapshot), ShouldEqual, 1)
		So(snapshot[0].Role, ShouldEqual, model.RoleUser)
	})

	Convey("客户端取消时回滚会话且通道关闭", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for i := 0; i < 200; i++ {
				select {
				case <-r.Context().Done():
					return
				default:
				}
				fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"字\"},\"finish_reason\":null}]}\n\n")
				flusher.Flush()
				time.Sleep(10 * time.Millisecond)
			}
		}))
		defer srv.Close()

		svc := newTestChatService(t, srv.URL)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, sessionID, err := svc.ChatStream(ctx, &model.ChatRequest{Message: "停不下来"})
		So(err, ShouldBeNil)

		// 收到第一个片段后取消
		<-events
		cancel()

		closed := make(chan struct{})
		go func() {
			for range events {
			}
			close(closed)
		}()

		select {
		case <-closed:
		case <-time.After(3 * time.Second):
			t.Fatal("stream channel not closed after cancel")
		}

		// 通道在会话结清之后才关闭，这里可以直接断言
		sess, err := svc.sessions.Get(sessionID)
		So(err, ShouldBeNil)
		So(sess.Busy(), ShouldBeFalse)
		So(len(sess.Snapshot()), ShouldEqual, 0)
	})
}
