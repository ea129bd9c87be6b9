package slack

import (
	"context"

	"relay_bot/internal/logger"
	"relay_bot/internal/slack/service"

	"github.com/slack-go/slack"
)

// commandHandler 斜杠命令处理函数
type commandHandler func(ctx context.Context, cmd *slack.SlashCommand) error

// requireReportChannelMember 中间件：仅允许报告频道成员执行。
// 资格以传输侧的实时成员列表为准，不落任何本地状态。
func (b *Bot) requireReportChannelMember(next commandHandler) commandHandler {
	return func(ctx context.Context, cmd *slack.SlashCommand) error {
		members, err := b.chat.ChannelMembers(ctx, b.cfg.ReportChannel)
		if err != nil {
			b.respondEphemeral(ctx, cmd, "Could not verify your membership. Please try again later.")
			return err
		}

		isMember := false
		for _, member := range members {
			if member == cmd.UserID {
				isMember = true
				break
			}
		}
		if !isMember {
			logger.L().Warnf("Non-member %s attempted privileged command %s", cmd.UserID, cmd.Command)
			b.respondEphemeral(ctx, cmd, "This command is restricted to members of the report channel.")
			return service.ErrUnauthorized
		}

		return next(ctx, cmd)
	}
}
