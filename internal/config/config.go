package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用程序配置
type Config struct {
	SlackBotToken   string        // Slack Bot Token（xoxb-）
	SlackAppToken   string        // Slack App-Level Token（xapp-，Socket Mode 使用）
	ReportChannel   string        // 报告频道 ID（群组侧）
	CommandPrefix   string        // 斜杠命令前缀
	LeadingHelpText string        // help 命令的前置说明文本（可选）
	MongoURI        string        // MongoDB 连接 URI
	MongoDBName     string        // MongoDB 数据库名称
	PromptTTL       time.Duration // 身份选择提示的存活时间（过期由清理任务删除）
	GCInterval      time.Duration // 周期清理间隔（0 表示仅手动触发）
	GCRatePerSecond float64       // 清理扫描的远程请求速率上限
	ProfileCacheTTL time.Duration // 用户资料缓存存活时间
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "relay_bot"
	}

	commandPrefix := strings.TrimSpace(os.Getenv("COMMAND_PREFIX"))
	if commandPrefix == "" {
		commandPrefix = "relay-"
	}

	cfg := &Config{
		SlackBotToken:   os.Getenv("SLACK_BOT_TOKEN"),
		SlackAppToken:   os.Getenv("SLACK_APP_TOKEN"),
		ReportChannel:   strings.TrimSpace(os.Getenv("REPORT_CHANNEL")),
		CommandPrefix:   commandPrefix,
		LeadingHelpText: os.Getenv("LEADING_HELP_TEXT"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDBName:     mongoDBName,
	}

	if cfg.SlackBotToken == "" {
		return nil, fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if cfg.SlackAppToken == "" {
		return nil, fmt.Errorf("SLACK_APP_TOKEN is required")
	}
	if cfg.ReportChannel == "" {
		return nil, fmt.Errorf("REPORT_CHANNEL is required")
	}

	// 解析 PROMPT_TTL_HOURS（默认 48 小时）
	promptTTLHours, err := parsePositiveInt("PROMPT_TTL_HOURS", 48)
	if err != nil {
		return nil, err
	}
	cfg.PromptTTL = time.Duration(promptTTLHours) * time.Hour

	// 解析 GC_INTERVAL_HOURS（默认 0，表示不开启周期清理）
	gcIntervalStr := strings.TrimSpace(os.Getenv("GC_INTERVAL_HOURS"))
	if gcIntervalStr != "" {
		hours, err := strconv.Atoi(gcIntervalStr)
		if err != nil || hours < 0 {
			return nil, fmt.Errorf("invalid GC_INTERVAL_HOURS: %s", gcIntervalStr)
		}
		cfg.GCInterval = time.Duration(hours) * time.Hour
	}

	// 解析 GC_REQUESTS_PER_SECOND（默认 2）
	gcRateStr := strings.TrimSpace(os.Getenv("GC_REQUESTS_PER_SECOND"))
	if gcRateStr == "" {
		cfg.GCRatePerSecond = 2
	} else {
		rate, err := strconv.ParseFloat(gcRateStr, 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid GC_REQUESTS_PER_SECOND: %s", gcRateStr)
		}
		cfg.GCRatePerSecond = rate
	}

	// 解析 PROFILE_CACHE_TTL_SECONDS（默认 300 秒）
	cacheTTLSeconds, err := parsePositiveInt("PROFILE_CACHE_TTL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.ProfileCacheTTL = time.Duration(cacheTTLSeconds) * time.Second

	return cfg, nil
}

// parsePositiveInt 解析必须为正整数的环境变量，未设置时返回默认值
func parsePositiveInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if value < 1 {
		return 0, fmt.Errorf("%s must be >= 1, got %d", name, value)
	}
	return value, nil
}
