package slack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relay_bot/internal/config"
	"relay_bot/internal/logger"
	"relay_bot/internal/slack/repository"
	"relay_bot/internal/slack/service"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.mongodb.org/mongo-driver/mongo"
)

// Config Slack Bot 配置
type Config struct {
	BotToken        string        // Bot Token（xoxb-）
	AppToken        string        // App-Level Token（xapp-，Socket Mode 使用）
	ReportChannel   string        // 报告频道 ID
	CommandPrefix   string        // 斜杠命令前缀
	LeadingHelpText string        // help 输出的前置说明
	PromptTTL       time.Duration // 选择提示存活时间
	GCInterval      time.Duration // 周期清理间隔（0 关闭）
	GCRatePerSecond float64       // 清理扫描速率上限
	ProfileCacheTTL time.Duration // 用户资料缓存存活时间
}

// Bot Slack Bot 服务
type Bot struct {
	api        *slack.Client
	socket     *socketmode.Client
	chat       service.ChatClient
	records    repository.RelayRecordRepository
	relay      service.RelayService
	forwarding service.ForwardingService
	reactions  service.ReactionService
	cleaner    service.CleanerService
	identity   service.IdentityService
	pool       *WorkerPool
	scheduler  *cleanupScheduler
	commands   map[string]commandHandler
	cfg        Config
	botUserID  string
}

// New 创建 Slack Bot 实例
func New(cfg Config, db *mongo.Database) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack bot token cannot be empty")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("slack app token cannot be empty")
	}
	if cfg.ReportChannel == "" {
		return nil, fmt.Errorf("report channel cannot be empty")
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	// 识别机器人自身，事件分类时过滤自己产生的消息
	auth, err := api.AuthTestContext(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Slack: %w", err)
	}

	records := repository.NewRelayRecordRepository(db)
	chat := NewChatClient(api)
	identity := service.NewIdentityService(chat, cfg.ProfileCacheTTL)
	forwarding := service.NewForwardingService(records, chat, identity, cfg.ReportChannel)
	relay := service.NewRelayService(records, chat, identity, forwarding, cfg.ReportChannel)
	reactions := service.NewReactionService(records, chat)
	cleaner := service.NewCleanerService(records, chat, cfg.ReportChannel, cfg.PromptTTL, cfg.GCRatePerSecond)

	bot := &Bot{
		api:        api,
		socket:     socketmode.New(api),
		chat:       chat,
		records:    records,
		relay:      relay,
		forwarding: forwarding,
		reactions:  reactions,
		cleaner:    cleaner,
		identity:   identity,
		pool:       NewWorkerPool(4, 64),
		cfg:        cfg,
		botUserID:  auth.UserID,
	}

	bot.registerCommands()

	if err := records.EnsureIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	if cfg.GCInterval > 0 {
		bot.scheduler = newCleanupScheduler(cleaner, cfg.GCInterval)
	}

	logger.L().Infof("Slack bot initialized: bot_user=%s report_channel=%s", auth.UserID, cfg.ReportChannel)
	return bot, nil
}

// InitFromConfig 从应用配置初始化 Slack Bot
func InitFromConfig(cfg *config.Config, db *mongo.Database) (*Bot, error) {
	return New(Config{
		BotToken:        cfg.SlackBotToken,
		AppToken:        cfg.SlackAppToken,
		ReportChannel:   cfg.ReportChannel,
		CommandPrefix:   cfg.CommandPrefix,
		LeadingHelpText: cfg.LeadingHelpText,
		PromptTTL:       cfg.PromptTTL,
		GCInterval:      cfg.GCInterval,
		GCRatePerSecond: cfg.GCRatePerSecond,
		ProfileCacheTTL: cfg.ProfileCacheTTL,
	}, db)
}

// Start 启动 Bot（阻塞直到 ctx 取消）
func (b *Bot) Start(ctx context.Context) error {
	logger.L().Info("Starting Slack bot...")

	if b.scheduler != nil {
		b.scheduler.start()
		defer b.scheduler.stop()
	}

	go b.dispatchLoop(ctx)

	err := b.socket.RunContext(ctx)
	b.pool.Shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("socket mode stopped: %w", err)
	}
	logger.L().Info("Slack bot stopped")
	return nil
}

// dispatchLoop 顶层事件分发。所有 handler 经工作池异步执行；
// 未预期的失败统一转成一条道歉消息，事件流本身永不中断。
func (b *Bot) dispatchLoop(ctx context.Context) {
	for evt := range b.socket.Events {
		switch evt.Type {
		case socketmode.EventTypeConnecting:
			logger.L().Debug("Connecting to Slack...")

		case socketmode.EventTypeConnectionError:
			logger.L().Warnf("Slack connection error: %v", evt.Data)

		case socketmode.EventTypeConnected:
			logger.L().Info("Connected to Slack")

		case socketmode.EventTypeEventsAPI:
			eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			b.socket.Ack(*evt.Request)
			b.dispatchEventsAPI(ctx, &eventsAPI)

		case socketmode.EventTypeInteractive:
			callback, ok := evt.Data.(slack.InteractionCallback)
			if !ok {
				continue
			}
			b.socket.Ack(*evt.Request)
			b.pool.Submit(HandlerTask{
				Ctx:  ctx,
				Name: "interaction",
				Run: func(ctx context.Context) error {
					return b.handleInteraction(ctx, &callback)
				},
				OnError: b.taskErrorHandler(callback.Channel.ID, callback.User.ID),
			})

		case socketmode.EventTypeSlashCommand:
			cmd, ok := evt.Data.(slack.SlashCommand)
			if !ok {
				continue
			}
			b.socket.Ack(*evt.Request)

			handler, ok := b.commands[cmd.Command]
			if !ok {
				// 未注册的命令只需确认，避免无意义的报错
				logger.L().Debugf("Unhandled slash command: %s", cmd.Command)
				continue
			}
			b.pool.Submit(HandlerTask{
				Ctx:  ctx,
				Name: cmd.Command,
				Run: func(ctx context.Context) error {
					return handler(ctx, &cmd)
				},
				OnError: b.taskErrorHandler(cmd.ChannelID, cmd.UserID),
			})
		}
	}
}

// dispatchEventsAPI 分发 Events API 回调
func (b *Bot) dispatchEventsAPI(ctx context.Context, eventsAPI *slackevents.EventsAPIEvent) {
	if eventsAPI.Type != slackevents.CallbackEvent {
		return
	}

	switch inner := eventsAPI.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.pool.Submit(HandlerTask{
			Ctx:  ctx,
			Name: "message",
			Run: func(ctx context.Context) error {
				return b.handleMessageEvent(ctx, inner)
			},
			OnError: b.taskErrorHandler(inner.Channel, inner.User),
		})

	case *slackevents.ReactionAddedEvent:
		b.pool.Submit(HandlerTask{
			Ctx:  ctx,
			Name: "reaction_added",
			Run: func(ctx context.Context) error {
				return b.handleReactionAdded(ctx, inner)
			},
			OnError: b.taskErrorHandler("", ""),
		})

	case *slackevents.ReactionRemovedEvent:
		b.pool.Submit(HandlerTask{
			Ctx:  ctx,
			Name: "reaction_removed",
			Run: func(ctx context.Context) error {
				return b.handleReactionRemoved(ctx, inner)
			},
			OnError: b.taskErrorHandler("", ""),
		})

	default:
		logger.L().Debugf("Unhandled events API event: %s", eventsAPI.InnerEvent.Type)
	}
}

// taskErrorHandler 任务失败的统一收口。可预期的业务信号只记日志；
// 其余失败给用户一条通用道歉，进程保持存活。
func (b *Bot) taskErrorHandler(channel, user string) func(ctx context.Context, err error) {
	return func(ctx context.Context, err error) {
		if errors.Is(err, service.ErrNoSelection) ||
			errors.Is(err, service.ErrAlreadyForwarded) ||
			errors.Is(err, service.ErrUnauthorized) {
			logger.L().Infof("Handled expected condition: %v", err)
			return
		}

		logger.L().Errorf("Handler failed: %v", err)

		if channel == "" || user == "" {
			return
		}
		if postErr := b.chat.PostEphemeral(ctx, channel, user,
			"Something went wrong. If this persists, please contact a maintainer.", nil); postErr != nil {
			logger.L().Errorf("Failed to send apology: %v", postErr)
		}
	}
}
