package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"pomelo/internal/model"
)

func TestVisionHandler_Describe(t *testing.T) {
	Convey("POST /api/v1/vision/describe", t, func() {
		Convey("返回图像描述和用量统计", func(c C) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var payload struct {
					Model string `json:"model"`
				}
				c.So(json.NewDecoder(r.Body).Decode(&payload), ShouldBeNil)
				c.So(payload.Model, ShouldEqual, "test-vlm")
				fmt.Fprint(w, `{
					"choices": [{"message": {"role": "assistant", "content": "一只橘猫趴在窗台上。"}, "finish_reason": "stop"}],
					"usage": {"prompt_tokens": 120, "completion_tokens": 15, "total_tokens": 135}
				}`)
			}))
			defer upstream.Close()
			engine, _ := newTestRouter(t, upstream.URL)

			w := postJSON(engine, "/api/v1/vision/describe",
				`{"image_url":"https://example.com/cat.jpg","prompt":"图里有什么动物？"}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			var resp model.VisionResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Description, ShouldEqual, "一只橘猫趴在窗台上。")
			So(resp.Usage.TotalTokens, ShouldEqual, 135)
		})

		Convey("缺少 image_url 字段返回 40001", func() {
			engine, _ := newTestRouter(t, "http://127.0.0.1:0")

			w := postJSON(engine, "/api/v1/vision/describe", `{"prompt":"描述一下"}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(t, w).Code, ShouldEqual, CodeInvalidBody)
		})
	})
}
