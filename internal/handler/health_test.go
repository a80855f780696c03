package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHealthHandler(t *testing.T) {
	Convey("健康与就绪检查", t, func() {
		gin.SetMode(gin.TestMode)
		engine := gin.New()
		h := NewHealthHandler(true, false, true)
		engine.GET("/health", h.Health)
		engine.GET("/ready", h.Ready)

		Convey("GET /health", func() {
			w := doRequest(engine, http.MethodGet, "/health")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("GET /ready 带可选组件的启用状态", func() {
			w := doRequest(engine, http.MethodGet, "/ready")

			So(w.Code, ShouldEqual, http.StatusOK)
			var resp struct {
				Status     string `json:"status"`
				Components struct {
					Archive bool `json:"archive"`
					Cache   bool `json:"cache"`
					Storage bool `json:"storage"`
				} `json:"components"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Status, ShouldEqual, "ready")
			So(resp.Components.Archive, ShouldBeTrue)
			So(resp.Components.Cache, ShouldBeFalse)
			So(resp.Components.Storage, ShouldBeTrue)
		})
	})
}
