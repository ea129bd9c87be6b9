package slack

import (
	"context"
	"fmt"
	"strings"

	"relay_bot/internal/logger"

	"github.com/slack-go/slack"
)

// registerCommands 注册所有斜杠命令处理器
func (b *Bot) registerCommands() {
	b.commands = map[string]commandHandler{
		b.commandName("help"):     b.handleHelpCommand,
		b.commandName("clean-db"): b.handleCleanCommand,
		b.commandName("contact"):  b.requireReportChannelMember(b.handleContactCommand),
	}

	logger.L().Debugf("Registered %d slash commands with prefix %q", len(b.commands), b.cfg.CommandPrefix)
}

// commandName 给命令名加上配置的前缀
func (b *Bot) commandName(name string) string {
	return "/" + b.cfg.CommandPrefix + name
}

// handleHelpCommand 处理 help 命令：按静态清单枚举命令与快捷方式
func (b *Bot) handleHelpCommand(ctx context.Context, cmd *slack.SlashCommand) error {
	text, err := buildHelpText(b.cfg.LeadingHelpText)
	if err != nil {
		return err
	}
	b.respondEphemeral(ctx, cmd, text)
	return nil
}

// handleCleanCommand 处理 clean-db 命令：触发清理并汇报结果
func (b *Bot) handleCleanCommand(ctx context.Context, cmd *slack.SlashCommand) error {
	logger.L().Infof("Relay record sweep triggered by %s", cmd.UserID)

	report, err := b.cleaner.Clean(ctx)
	if err != nil {
		return err
	}

	b.respondEphemeral(ctx, cmd, fmt.Sprintf(
		"Removed %d of %d records where the DM or the forwarded message no longer exists.",
		report.Deleted, report.Scanned))
	return nil
}

// handleContactCommand 处理 contact 命令：创建或复用一个包含目标用户的
// 多人私聊并发送开场说明
func (b *Bot) handleContactCommand(ctx context.Context, cmd *slack.SlashCommand) error {
	target, ok := parseUserMention(cmd.Text)
	if !ok {
		b.respondEphemeral(ctx, cmd, fmt.Sprintf("Usage: %s @user", b.commandName("contact")))
		return nil
	}

	conversation, err := b.chat.OpenGroupConversation(ctx, []string{cmd.UserID, target})
	if err != nil {
		return err
	}
	if err := b.chat.InviteToConversation(ctx, conversation, []string{target}); err != nil {
		return err
	}

	if _, err := b.chat.PostMessage(ctx, conversation,
		fmt.Sprintf("<@%s> would like to talk with <@%s> privately.", cmd.UserID, target), nil); err != nil {
		return err
	}

	b.respondEphemeral(ctx, cmd, fmt.Sprintf("Opened a private conversation with <@%s>.", target))
	logger.L().Infof("Private conversation opened: invoker=%s target=%s channel=%s", cmd.UserID, target, conversation)
	return nil
}

// parseUserMention 从命令参数中解析目标用户 ID。
// 接受 <@U123>、<@U123|name> 与裸 U123 三种写法。
func parseUserMention(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if strings.HasPrefix(text, "<@") {
		text = strings.TrimPrefix(text, "<@")
		if end := strings.IndexAny(text, "|>"); end >= 0 {
			text = text[:end]
		}
	}

	if !strings.HasPrefix(text, "U") && !strings.HasPrefix(text, "W") {
		return "", false
	}
	return text, true
}
