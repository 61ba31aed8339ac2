package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/vikingbot/vikingbot/pkg/agent"
	"github.com/vikingbot/vikingbot/pkg/bus"
)

// chatCmd runs a local debug REPL against the agent loop directly, bypassing
// every channel adapter — useful for exercising tool calls and session
// behavior without standing up Telegram/Slack/etc.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Local interactive REPL against the agent loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			provider, err := newProvider(cfg)
			if err != nil {
				return err
			}
			msgBus := bus.NewMessageBus(0)
			defer msgBus.Close()
			agentLoop := agent.NewAgentLoop(cfg, msgBus, provider)

			rl, err := readline.New("vikingbot> ")
			if err != nil {
				return fmt.Errorf("init readline: %w", err)
			}
			defer rl.Close()

			sessionKey := "cli:repl"
			ctx := context.Background()
			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt {
					if len(line) == 0 {
						break
					}
					continue
				} else if err == io.EOF {
					break
				}

				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == "/exit" || line == "/quit" {
					break
				}

				resp, err := agentLoop.ProcessDirect(ctx, line, sessionKey)
				if err != nil {
					fmt.Fprintln(rl.Stderr(), "error:", err)
					continue
				}
				fmt.Fprintln(rl.Stdout(), resp)
			}
			return nil
		},
	}
}
