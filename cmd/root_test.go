package cmd

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func TestSetDefaults(t *testing.T) {
	Convey("配置默认值", t, func() {
		setDefaults()

		Convey("服务端默认监听与运行模式", func() {
			So(viper.GetString("server.host"), ShouldEqual, "0.0.0.0")
			So(viper.GetInt("server.port"), ShouldEqual, 8080)
			So(viper.GetString("server.mode"), ShouldEqual, "release")
		})

		Convey("AI 模型与重试默认值", func() {
			So(viper.GetString("ai.base_url"), ShouldEqual, "https://api.siliconflow.cn/v1")
			So(viper.GetString("ai.model"), ShouldEqual, "Qwen/Qwen2.5-7B-Instruct")
			So(viper.GetInt("ai.max_retries"), ShouldEqual, 3)
			So(viper.GetInt("ai.context_window"), ShouldEqual, 32768)
		})

		Convey("语音合成默认模型与发音人", func() {
			So(viper.GetString("ai.tts_model"), ShouldEqual, "fishaudio/fish-speech-1.5")
			So(viper.GetString("ai.tts_voice"), ShouldEqual, "fnlp/MOSS-TTSD-v0.5:alex")
			So(viper.GetString("ai.asr_model"), ShouldEqual, "FunAudioLLM/SenseVoiceSmall")
		})

		Convey("外部依赖默认关闭", func() {
			So(viper.GetString("mongo.uri"), ShouldBeEmpty)
			So(viper.GetString("redis.addr"), ShouldBeEmpty)
		})
	})
}
