package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"pomelo/internal/config"
)

func testTranscriptionConfig() *config.AIConfig {
	cfg := testServiceConfig()
	cfg.ASRModel = "FunAudioLLM/SenseVoiceSmall"
	return cfg
}

func TestTranscriptionService_Transcribe(t *testing.T) {
	Convey("上传音频并解析识别文本", t, func(c C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.So(r.ParseMultipartForm(1<<20), ShouldBeNil)
			c.So(r.FormValue("model"), ShouldEqual, "FunAudioLLM/SenseVoiceSmall")

			file, header, err := r.FormFile("file")
			c.So(err, ShouldBeNil)
			defer file.Close()
			c.So(header.Filename, ShouldEqual, "voice.wav")

			content, err := io.ReadAll(file)
			c.So(err, ShouldBeNil)
			c.So(string(content), ShouldEqual, "fake-wav-bytes")

			fmt.Fprint(w, `{"text":"今天天气不错"}`)
		}))
		defer srv.Close()

		svc := NewTranscriptionService(testTranscriptionConfig(), newTestSiliconflowClient(t, srv.URL))

		resp, err := svc.Transcribe(context.Background(), "voice.wav", []byte("fake-wav-bytes"), "")
		So(err, ShouldBeNil)
		So(resp.Text, ShouldEqual, "今天天气不错")
	})

	Convey("指定语言时透传 language 字段", t, func(c C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.So(r.ParseMultipartForm(1<<20), ShouldBeNil)
			c.So(r.FormValue("language"), ShouldEqual, "zh")
			fmt.Fprint(w, `{"text":"中文识别"}`)
		}))
		defer srv.Close()

		svc := NewTranscriptionService(testTranscriptionConfig(), newTestSiliconflowClient(t, srv.URL))

		resp, err := svc.Transcribe(context.Background(), "audio.mp3", []byte("bytes"), "zh")
		So(err, ShouldBeNil)
		So(resp.Text, ShouldEqual, "中文识别")
	})

	Convey("空音频直接报错不请求上游", t, func() {
		svc := NewTranscriptionService(testTranscriptionConfig(), newTestSiliconflowClient(t, "http://127.0.0.1:0"))

		_, err := svc.Transcribe(context.Background(), "empty.mp3", nil, "")
		So(err, ShouldNotBeNil)
	})
}
