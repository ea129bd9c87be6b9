package app

import (
	"context"
	"fmt"

	"relay_bot/internal/config"
	"relay_bot/internal/logger"
	"relay_bot/internal/mongo"
	"relay_bot/internal/slack"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	MongoDB *mongo.Client
	Bot     *slack.Bot
}

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会返回错误
func New(cfg *config.Config) (*App, error) {
	app := &App{}

	mongoClient, err := mongo.NewClient(mongo.Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDBName,
	})
	if err != nil {
		return nil, fmt.Errorf("init MongoDB failed: %w", err)
	}
	app.MongoDB = mongoClient
	logger.L().Info("MongoDB initialized successfully")

	bot, err := slack.InitFromConfig(cfg, mongoClient.Database())
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init Slack bot failed: %w", err)
	}
	app.Bot = bot

	return app, nil
}

// Run 运行 Bot（阻塞直到 ctx 取消）
func (a *App) Run(ctx context.Context) error {
	return a.Bot.Start(ctx)
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return nil
}
