package slack

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed manifest.yml
var manifestYAML []byte

// manifest 静态功能清单，help 命令据此枚举命令与快捷方式
type manifest struct {
	Features struct {
		SlashCommands []manifestCommand  `yaml:"slash_commands"`
		Shortcuts     []manifestShortcut `yaml:"shortcuts"`
	} `yaml:"features"`
}

type manifestCommand struct {
	Command     string `yaml:"command"`
	UsageHint   string `yaml:"usage_hint"`
	Description string `yaml:"description"`
}

type manifestShortcut struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"` // message / global
	Description string `yaml:"description"`
}

// buildHelpText 渲染 help 命令的输出
func buildHelpText(leading string) (string, error) {
	var m manifest
	if err := yaml.Unmarshal(manifestYAML, &m); err != nil {
		return "", fmt.Errorf("failed to parse manifest: %w", err)
	}

	var text strings.Builder
	if leading != "" {
		text.WriteString(leading)
		text.WriteString("\n")
	}
	text.WriteString("Commands:")

	commands := m.Features.SlashCommands
	for _, cmd := range commands {
		if cmd.UsageHint != "" {
			text.WriteString(fmt.Sprintf("\n`%s %s`: %s", cmd.Command, cmd.UsageHint, cmd.Description))
		} else {
			text.WriteString(fmt.Sprintf("\n`%s`: %s", cmd.Command, cmd.Description))
		}
	}
	if len(commands) == 0 {
		text.WriteString("\nNo commands available.\n")
	} else {
		text.WriteString("\n")
	}

	text.WriteString("\nShortcuts:")
	messageShortcuts := "Message shortcuts:"
	globalShortcuts := "Global shortcuts:"
	for _, shortcut := range m.Features.Shortcuts {
		switch shortcut.Type {
		case "message":
			messageShortcuts += fmt.Sprintf("\n`%s`: %s", shortcut.Name, shortcut.Description)
		case "global":
			globalShortcuts += fmt.Sprintf("\n`%s`: %s", shortcut.Name, shortcut.Description)
		}
	}
	if len(m.Features.Shortcuts) == 0 {
		text.WriteString("\nNo shortcuts available.")
	} else {
		if messageShortcuts != "Message shortcuts:" {
			text.WriteString("\n" + messageShortcuts)
		}
		if globalShortcuts != "Global shortcuts:" {
			text.WriteString("\n" + globalShortcuts)
		}
	}

	return text.String(), nil
}
