package config

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 7080,
			Mode: "release",
		},
		AI: AIConfig{
			APIKey:        "sk-test",
			BaseURL:       "https://api.siliconflow.cn/v1",
			Model:         "Qwen/Qwen2.5-7B-Instruct",
			ContextWindow: 32768,
			Timeout:       60 * time.Second,
			MaxRetries:    3,
			Options: AIOptionsConfig{
				Temperature: 0.7,
				MaxTokens:   4096,
				TopP:        0.7,
			},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	Convey("Config.Validate 校验配置有效性", t, func() {
		Convey("合法配置应通过校验", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("校验结果是确定性的，多次调用结论一致", func() {
			cfg := validConfig()
			So(cfg.Validate(), ShouldBeNil)
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("缺少 API Key 应失败", func() {
			cfg := validConfig()
			cfg.AI.APIKey = ""
			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "api_key")
		})

		Convey("max_tokens 必须为正数", func() {
			cfg := validConfig()
			cfg.AI.Options.MaxTokens = 0
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.AI.Options.MaxTokens = -1
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("temperature 必须在 [0, 2] 区间内", func() {
			cfg := validConfig()

			cfg.AI.Options.Temperature = 0
			So(cfg.Validate(), ShouldBeNil)

			cfg.AI.Options.Temperature = 2
			So(cfg.Validate(), ShouldBeNil)

			cfg.AI.Options.Temperature = 2.1
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.AI.Options.Temperature = -0.1
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("top_p 必须在 (0, 1] 区间内", func() {
			cfg := validConfig()
			cfg.AI.Options.TopP = 0
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.AI.Options.TopP = 1.2
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("timeout 必须为正数", func() {
			cfg := validConfig()
			cfg.AI.Timeout = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("context_window 必须大于 max_tokens", func() {
			cfg := validConfig()
			cfg.AI.ContextWindow = cfg.AI.Options.MaxTokens
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("非法端口应失败", func() {
			cfg := validConfig()
			cfg.Server.Port = 0
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("非法运行模式应失败", func() {
			cfg := validConfig()
			cfg.Server.Mode = "production"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("非法存储类型应失败", func() {
			cfg := validConfig()
			cfg.Storage.Type = "s3"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("HistoryBudget 为上下文窗口扣除回复预算", func() {
			cfg := validConfig()
			So(cfg.AI.HistoryBudget(), ShouldEqual, 32768-4096)
		})
	})
}
