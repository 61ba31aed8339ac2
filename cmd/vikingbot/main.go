// Command vikingbot runs the multi-channel chat-assistant gateway: it wires
// the message bus, channel adapters, sandboxed tool execution, the agent
// loop, and the cron scheduler together, then blocks until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vikingbot/vikingbot/pkg/agent"
	"github.com/vikingbot/vikingbot/pkg/auth"
	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/channels"
	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/cron"
	"github.com/vikingbot/vikingbot/pkg/email"
	"github.com/vikingbot/vikingbot/pkg/logger"
	"github.com/vikingbot/vikingbot/pkg/providers"
	"github.com/vikingbot/vikingbot/pkg/tools"
)

var version = "dev"

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "vikingbot",
		Short: "VikingBot — multi-channel chat-assistant gateway",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default: $VIKINGBOT_CONFIG or none)")

	root.AddCommand(versionCmd(), runCmd(), chatCmd(), cronListCmd(), sandboxCleanupCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vikingbot %s\n", version)
		},
	}
}

func resolveConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return os.Getenv("VIKINGBOT_CONFIG")
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

// newProvider picks the LLM provider from whichever credential is
// configured: a direct API key first, then a stored OAuth credential, then
// OpenRouter as an OpenAI-compatible fallback. When a fallback model is
// configured, the chosen provider wraps itself in a FallbackProvider that
// retries a failed primary-model call against the fallback model on the
// same backend.
func newProvider(cfg *config.Config) (providers.LLMProvider, error) {
	base, err := newBaseProvider(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Agents.Defaults.FallbackModel == "" {
		return base, nil
	}
	return providers.NewFallbackProvider(base, base, cfg.Agents.Defaults.Model, cfg.Agents.Defaults.FallbackModel), nil
}

func newBaseProvider(cfg *config.Config) (providers.LLMProvider, error) {
	if cfg.Providers.Anthropic.APIKey != "" {
		return providers.NewClaudeProvider(cfg.Providers.Anthropic.APIKey), nil
	}
	if cred, err := auth.GetCredential("anthropic"); err == nil && cred != nil {
		oauthCfg := auth.AnthropicOAuthConfig()
		return providers.NewClaudeProviderOAuth(oauthTokenSource(cred, oauthCfg)), nil
	}
	if cfg.Providers.OpenAI.APIKey != "" {
		return providers.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL, cfg.Agents.Defaults.Model), nil
	}
	if cred, err := auth.GetCredential("openai"); err == nil && cred != nil {
		oauthCfg := auth.OpenAIOAuthConfig()
		return providers.NewOpenAIProviderOAuth(cfg.Providers.OpenAI.BaseURL, cfg.Agents.Defaults.Model, oauthTokenSource(cred, oauthCfg)), nil
	}
	if cfg.Providers.OpenRouter.APIKey != "" {
		return providers.NewOpenAIProvider(cfg.Providers.OpenRouter.APIKey, cfg.Providers.OpenRouter.APIBase, cfg.Agents.Defaults.Model), nil
	}
	return nil, fmt.Errorf("no LLM provider configured: set an API key or run the OAuth onboarding flow")
}

// oauthTokenSource returns a token source that refreshes cred in place once
// it's within its expiry window, persisting the refreshed credential.
func oauthTokenSource(cred *auth.AuthCredential, oauthCfg auth.OAuthProviderConfig) func() (string, error) {
	return func() (string, error) {
		if cred.NeedsRefresh() {
			refreshed, err := auth.RefreshAccessToken(cred, oauthCfg)
			if err != nil {
				return "", fmt.Errorf("refresh oauth token: %w", err)
			}
			cred = refreshed
			if err := auth.SetCredential(oauthCfg.Provider, cred); err != nil {
				logger.WarnCF("auth", "failed to persist refreshed credential", map[string]interface{}{"error": err.Error()})
			}
		}
		return cred.AccessToken, nil
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the gateway: channels, agent loop, and cron scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway()
		},
	}
}

func runGateway() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	msgBus := bus.NewMessageBus(0)
	defer msgBus.Close()

	agentLoop := agent.NewAgentLoop(cfg, msgBus, provider)

	chanManager := channels.NewManager(cfg.ChannelsConfig, msgBus)
	wireTelegramTool(agentLoop, chanManager)

	var scheduler *cron.Scheduler
	if cfg.Cron.Enabled {
		scheduler, err = cron.NewScheduler(cfg.CronJobsPath(), msgBus, time.Duration(cfg.Cron.PollSeconds)*time.Second)
		if err != nil {
			return fmt.Errorf("init cron scheduler: %w", err)
		}
	}

	var emailMonitor *email.EmailMonitor
	if cfg.Tools.Email.Enabled && len(cfg.Tools.Email.Accounts) > 0 {
		cheapModel := cfg.Agents.Defaults.FallbackModel
		if cheapModel == "" {
			cheapModel = cfg.Agents.Defaults.Model
		}
		emailMonitor = email.NewEmailMonitor(
			cfg.Tools.Email.Accounts,
			provider,
			cheapModel,
			cfg.WorkspacePath(),
			msgBus,
			cfg.Tools.Email.NotifyChannel,
			cfg.Tools.Email.NotifyChatID,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 3)
	go func() { errCh <- agentLoop.Run(ctx) }()
	go func() { errCh <- chanManager.StartAll(ctx) }()
	if scheduler != nil {
		go func() { errCh <- scheduler.Run(ctx) }()
	}
	if emailMonitor != nil {
		emailMonitor.Start(cfg.Tools.Email.PollMinutes)
	}

	logger.InfoCF("main", "vikingbot started", map[string]interface{}{
		"channels": chanManager.EnabledChannels(),
		"cron":     cfg.Cron.Enabled,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.ErrorCF("main", "component exited", map[string]interface{}{"error": err.Error()})
		}
	}

	cancel()
	agentLoop.Stop()
	if emailMonitor != nil {
		emailMonitor.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := chanManager.StopAll(shutdownCtx); err != nil {
		logger.WarnCF("main", "channel shutdown error", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// wireTelegramTool registers manage_telegram against the bot client the
// manager already constructed, once a Telegram channel exists to pull it
// from — the tool is only useful once the channel itself is running.
func wireTelegramTool(agentLoop *agent.AgentLoop, chanManager *channels.Manager) {
	for _, name := range chanManager.EnabledChannels() {
		if !strings.HasPrefix(name, "telegram:") {
			continue
		}
		ch, ok := chanManager.Get(name)
		if !ok {
			continue
		}
		tg, ok := ch.(*channels.TelegramChannel)
		if !ok {
			continue
		}
		agentLoop.RegisterTool(tools.NewManageTelegramTool(tg.Bot()))
		return
	}
}

func cronListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect the cron scheduler's persisted jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every persisted cron job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sched, err := cron.NewScheduler(cfg.CronJobsPath(), bus.NewMessageBus(1), time.Duration(cfg.Cron.PollSeconds)*time.Second)
			if err != nil {
				return err
			}
			jobs := sched.ListJobs()
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no cron jobs")
				return nil
			}
			for _, j := range jobs {
				schedule := j.Schedule.Expression
				if schedule == "" {
					schedule = j.Schedule.Interval.String()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tenabled=%v\tschedule=%s\ttarget=%s\n", j.ID, j.Enabled, schedule, j.TargetSessionKey)
			}
			return nil
		},
	})
	return cmd
}

func sandboxCleanupCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage sandboxed session workspaces",
	}
	parent.AddCommand(sandboxCleanupSubCmd())
	return parent
}

func sandboxCleanupSubCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Tear down every session sandbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			provider, err := newProvider(cfg)
			if err != nil {
				return err
			}
			msgBus := bus.NewMessageBus(1)
			defer msgBus.Close()
			agentLoop := agent.NewAgentLoop(cfg, msgBus, provider)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := agentLoop.CleanupSandboxes(ctx); err != nil {
				return fmt.Errorf("sandbox cleanup: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sandboxes cleaned up")
			return nil
		},
	}
}
