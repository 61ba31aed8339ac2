package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/vikingbot/vikingbot/pkg/logger"
	"github.com/vikingbot/vikingbot/pkg/media"
	"github.com/vikingbot/vikingbot/pkg/providers"
	"github.com/vikingbot/vikingbot/pkg/skills"
	"github.com/vikingbot/vikingbot/pkg/specialists"
	"github.com/vikingbot/vikingbot/pkg/tools"
	"github.com/vikingbot/vikingbot/pkg/workspace"
)

type ContextBuilder struct {
	workspace         string
	skillsLoader      *skills.SkillsLoader
	specialistLoader  *specialists.SpecialistLoader
	memory            *MemoryStore
	tools             *tools.ToolRegistry // Direct reference to tool registry
}

func getGlobalConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vikingbot")
}

func NewContextBuilder(workspace string) *ContextBuilder {
	// builtin skills: skills directory in current project
	// Use the skills/ directory under the current working directory
	wd, _ := os.Getwd()
	builtinSkillsDir := filepath.Join(wd, "skills")
	globalSkillsDir := filepath.Join(getGlobalConfigDir(), "skills")

	return &ContextBuilder{
		workspace:    workspace,
		skillsLoader: skills.NewSkillsLoader(workspace, globalSkillsDir, builtinSkillsDir),
		memory:       NewMemoryStore(workspace),
	}
}

// SetToolsRegistry sets the tools registry for dynamic tool summary generation.
func (cb *ContextBuilder) SetToolsRegistry(registry *tools.ToolRegistry) {
	cb.tools = registry
}

// SetSpecialistLoader sets the specialist loader for system prompt generation.
func (cb *ContextBuilder) SetSpecialistLoader(loader *specialists.SpecialistLoader) {
	cb.specialistLoader = loader
}

func (cb *ContextBuilder) getIdentity() string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	workspacePath, _ := filepath.Abs(filepath.Join(cb.workspace))
	runtime := fmt.Sprintf("%s %s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	// Build tools section dynamically
	toolsSection := cb.buildToolsSection()

	return fmt.Sprintf(`# Identity

You are the agent running inside this sandbox, reached through whichever
chat channel (Telegram, Discord, Slack, ...) the inbound message arrived
on. Your own persona, tone, and priorities come from the bootstrap files
below (AGENTS.md, SOUL.md, USER.md, IDENTITY.md) — read them as your
actual instructions, not as background color.

## Current Time
%s

## Runtime
%s

## Workspace
Your workspace is at: %s
- Memory: %s/memory/MEMORY.md
- Event log: %s/memory/HISTORY.md
- Skills: %s/skills/{skill-name}/SKILL.md

%s

## Sandbox Access

This workspace is yours for the lifetime of this session's sandbox. You can:

- **Run shell commands** via the shell tool, scoped to this workspace.
- **Read and write files** under your workspace.
- **Delegate to specialists** — consult_specialist, create_specialist, feed_specialist,
  and link_topic let you build and route to domain personas with their own scoped memory.
- **Spawn sub-agents** via the spawn tool for exploration or research that shouldn't
  pollute this conversation's history.

## Important Rules

1. **Always use tools** — when an action is needed, call the appropriate tool. Do not
   claim to have done something you did not actually execute.

2. **Be proactive** — when a user asks for a multi-step outcome, carry out all the
   steps yourself rather than describing what you would do.

3. **Memory** — durable facts about the user or ongoing work belong in
   %s/memory/MEMORY.md.

4. **Semantic memory search** — you have a search_memory tool. Use it proactively:
   - At the start of a conversation, to recall relevant prior context.
   - When the user references something from the past ("remember when...", "like I said...").
   - When the user asks about their own preferences, plans, deadlines, or personal info.
   - Whenever you are unsure — search first, then respond.`,
		now, runtime, workspacePath, workspacePath, workspacePath, workspacePath, toolsSection, workspacePath)
}

func (cb *ContextBuilder) buildToolsSection() string {
	if cb.tools == nil {
		return ""
	}

	summaries := cb.tools.GetSummaries()
	if len(summaries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Available Tools\n\n")
	sb.WriteString("**CRITICAL**: You MUST use tools to perform actions. Do NOT pretend to execute commands or schedule tasks.\n\n")
	sb.WriteString("You have access to the following tools:\n\n")
	for _, s := range summaries {
		sb.WriteString(s)
		sb.WriteString("\n")
	}

	return sb.String()
}

func (cb *ContextBuilder) BuildSystemPrompt() string {
	parts := []string{}

	// Core identity section
	parts = append(parts, cb.getIdentity())

	// Bootstrap files
	bootstrapContent := cb.LoadBootstrapFiles()
	if bootstrapContent != "" {
		parts = append(parts, bootstrapContent)
	}

	// Always-loaded skills — full SKILL.md content injected directly rather
	// than left to progressive loading.
	if alwaysNames := cb.skillsLoader.GetAlwaysSkills(); len(alwaysNames) > 0 {
		if content := cb.skillsLoader.LoadSkillsForContext(alwaysNames); content != "" {
			parts = append(parts, "# Active Skills\n\n"+content)
		}
	}

	// Skills - show summary with key actions so agent knows what's available
	skillsSummary := cb.skillsLoader.BuildSkillsSummary()
	if skillsSummary != "" {
		parts = append(parts, fmt.Sprintf(`# Skills

The following skills extend your capabilities. Each skill lists its available actions below. Run scripts via the shell tool. For full details, read the SKILL.md file.

%s`, skillsSummary))
	}

	// Specialists summary
	if cb.specialistLoader != nil {
		specialistsSummary := cb.specialistLoader.BuildSpecialistsSummary()
		if specialistsSummary != "" {
			parts = append(parts, fmt.Sprintf(`# Specialists

The following domain specialists are available. Use the consult_specialist tool to delegate domain-specific questions to them. Each specialist has its own persona and scoped memory.

%s`, specialistsSummary))
		}
	}

	// Memory context
	memoryContext := cb.memory.GetMemoryContext()
	if memoryContext != "" {
		parts = append(parts, "# Memory\n\n"+memoryContext)
	}

	// Join with "---" separator
	return strings.Join(parts, "\n\n---\n\n")
}

func (cb *ContextBuilder) LoadBootstrapFiles() string {
	var result string
	for _, filename := range workspace.BootstrapFiles {
		filePath := filepath.Join(cb.workspace, filename)
		if data, err := os.ReadFile(filePath); err == nil {
			result += fmt.Sprintf("## %s\n\n%s\n\n", filename, string(data))
		}
	}

	return result
}

func (cb *ContextBuilder) BuildMessages(history []providers.Message, summary string, currentMessage string, mediaParts []media.ContentPart, channel, chatID string) []providers.Message {
	messages := []providers.Message{}

	systemPrompt := cb.BuildSystemPrompt()

	// Add Current Session info if provided
	if channel != "" && chatID != "" {
		systemPrompt += fmt.Sprintf("\n\n## Current Session\nChannel: %s\nChat ID: %s", channel, chatID)
	}

	// Log system prompt summary for debugging (debug mode only)
	logger.DebugCF("agent", "System prompt built",
		map[string]interface{}{
			"total_chars":   len(systemPrompt),
			"total_lines":   strings.Count(systemPrompt, "\n") + 1,
			"section_count": strings.Count(systemPrompt, "\n\n---\n\n") + 1,
		})

	// Log preview of system prompt (avoid logging huge content)
	preview := systemPrompt
	if len(preview) > 500 {
		preview = preview[:500] + "... (truncated)"
	}
	logger.DebugCF("agent", "System prompt preview",
		map[string]interface{}{
			"preview": preview,
		})

	if summary != "" {
		systemPrompt += "\n\n## Summary of Previous Conversation\n\n" + summary
	}

	//This fix prevents the session memory from LLM failure due to elimination of toolu_IDs required from LLM
	// --- INICIO DEL FIX ---
	//Diegox-17
	for len(history) > 0 && (history[0].Role == "tool") {
		logger.DebugCF("agent", "Removing orphaned tool message from history to prevent LLM error",
			map[string]interface{}{"role": history[0].Role})
		history = history[1:]
	}
	//Diegox-17
	// --- FIN DEL FIX ---

	messages = append(messages, providers.Message{
		Role:    "system",
		Content: systemPrompt,
	})

	messages = append(messages, history...)

	// Build user message — multimodal if media parts are present
	userMsg := providers.Message{
		Role:    "user",
		Content: currentMessage,
	}
	if len(mediaParts) > 0 {
		userMsg.ContentParts = mediaParts
		logger.DebugCF("agent", "Building multimodal user message",
			map[string]interface{}{
				"text_len":    len(currentMessage),
				"media_parts": len(mediaParts),
			})
	}
	messages = append(messages, userMsg)

	return messages
}

// BuildSpecialistMessages builds a message list using a specialist's persona as the system prompt.
func (cb *ContextBuilder) BuildSpecialistMessages(history []providers.Message, summary string, currentMessage string, mediaParts []media.ContentPart, channel, chatID, specialistName string) []providers.Message {
	// Try to load specialist persona
	var persona string
	if cb.specialistLoader != nil {
		p, ok := cb.specialistLoader.LoadSpecialist(specialistName)
		if ok {
			persona = p
		}
	}

	if persona == "" {
		// Fallback to normal messages if specialist not found
		logger.WarnCF("agent", "Specialist not found, falling back to normal mode",
			map[string]interface{}{
				"specialist": specialistName,
			})
		return cb.BuildMessages(history, summary, currentMessage, mediaParts, channel, chatID)
	}

	// Build specialist system prompt — minimal, persona-focused
	now := time.Now().Format("2006-01-02 15:04 (Monday)")

	systemPrompt := persona + "\n\n## Current Time\n" + now

	// Add USER.md for user context
	userMD := filepath.Join(cb.workspace, "USER.md")
	if data, err := os.ReadFile(userMD); err == nil {
		systemPrompt += "\n\n## User Profile\n\n" + string(data)
	}

	// Add skills summary so specialist knows what's available
	if cb.skillsLoader != nil {
		skillsSummary := cb.skillsLoader.BuildSkillsSummary()
		if skillsSummary != "" {
			systemPrompt += fmt.Sprintf("\n\n## Skills\nYou have access to skills that extend your capabilities. Each skill lists its available actions. Run scripts via the shell tool.\n%s", skillsSummary)
		}
	}

	// Full tool awareness — topic-linked specialists get the full tool registry
	systemPrompt += "\n\n## Tools\nYou have access to all agent tools including: shell (run scripts), read_file, write_file, edit_file, list_dir, web_search, search_memory, and message (send messages to user). Use them as needed."

	systemPrompt += "\n\n## Instructions\n\nYou ARE this specialist. Stay in character. When answering, cite your sources (who said it, when, where) so the user can verify. Be thorough and draw on all relevant knowledge available to you. Do NOT describe yourself as a general AI assistant."

	if channel != "" && chatID != "" {
		systemPrompt += fmt.Sprintf("\n\n## Current Session\nChannel: %s\nChat ID: %s\nSpecialist: %s", channel, chatID, specialistName)
	}

	if summary != "" {
		systemPrompt += "\n\n## Summary of Previous Conversation\n\n" + summary
	}

	// Strip orphaned tool messages from history
	for len(history) > 0 && history[0].Role == "tool" {
		history = history[1:]
	}

	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
	}
	messages = append(messages, history...)

	userMsg := providers.Message{
		Role:    "user",
		Content: currentMessage,
	}
	if len(mediaParts) > 0 {
		userMsg.ContentParts = mediaParts
	}
	messages = append(messages, userMsg)

	return messages
}

// AddToolResult appends one tool's result message, identified by the call
// ID the assistant's tool_calls entry carried. toolName is unused by the
// message itself but kept in the signature for call-site readability.
func (cb *ContextBuilder) AddToolResult(messages []providers.Message, toolCallID, toolName, result string) []providers.Message {
	return append(messages, providers.Message{
		Role:       "tool",
		Content:    result,
		ToolCallID: toolCallID,
	})
}

// AddAssistantMessage appends the assistant's turn, carrying along any
// tool_calls it requested so the next iteration's tool result messages
// have a matching ID to reference.
func (cb *ContextBuilder) AddAssistantMessage(messages []providers.Message, content string, toolCalls []providers.ToolCall) []providers.Message {
	return append(messages, providers.Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// GetSkillsInfo returns information about loaded skills.
func (cb *ContextBuilder) GetSkillsInfo() map[string]interface{} {
	allSkills := cb.skillsLoader.ListSkills()
	skillNames := make([]string, 0, len(allSkills))
	for _, s := range allSkills {
		skillNames = append(skillNames, s.Name)
	}
	return map[string]interface{}{
		"total":     len(allSkills),
		"available": len(allSkills),
		"names":     skillNames,
	}
}
