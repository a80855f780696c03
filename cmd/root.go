package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pomelo/internal/config"
	"pomelo/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pomelo",
	Short: "Pomelo - SiliconFlow AI chat service",
	Long: `Pomelo is a multi-turn AI chat service backed by the SiliconFlow API.
It provides session-based chat with streaming output, plus speech synthesis,
speech recognition and image understanding endpoints.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.pomelo")
	}

	// 环境变量设置
	viper.SetEnvPrefix("POMELO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 密钥额外认官方变量名，方便直接复用已有环境
	_ = viper.BindEnv("ai.api_key", "POMELO_AI_API_KEY", "SILICONFLOW_API_KEY")

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	// SSE 长连接不能被写超时掐断
	viper.SetDefault("server.write_timeout", "0s")

	// AI
	viper.SetDefault("ai.base_url", "https://api.siliconflow.cn/v1")
	viper.SetDefault("ai.model", "Qwen/Qwen2.5-7B-Instruct")
	viper.SetDefault("ai.vlm_model", "Qwen/Qwen2-VL-7B-Instruct")
	viper.SetDefault("ai.tts_model", "fishaudio/fish-speech-1.5")
	viper.SetDefault("ai.tts_voice", "fnlp/MOSS-TTSD-v0.5:alex")
	viper.SetDefault("ai.asr_model", "FunAudioLLM/SenseVoiceSmall")
	viper.SetDefault("ai.context_window", 32768)
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.max_retries", 3)
	viper.SetDefault("ai.options.temperature", 0.7)
	viper.SetDefault("ai.options.max_tokens", 4096)
	viper.SetDefault("ai.options.top_p", 0.7)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// MongoDB（留空表示不启用归档）
	viper.SetDefault("mongo.uri", "")
	viper.SetDefault("mongo.database", "pomelo")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis（留空表示不启用缓存）
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "10m")
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
