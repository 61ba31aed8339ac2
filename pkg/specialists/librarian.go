package specialists

// LibrarianPromptMetadata documents when the librarian specialist should
// fire.
var LibrarianPromptMetadata = PromptMetadata{
	Category:    "research",
	Cost:        "CHEAP",
	PromptAlias: "Librarian",
	KeyTrigger:  "External library/source mentioned -> fire `librarian` in the background",
	UseWhen: []string{
		"How do I use [library]?",
		"What's the best practice for [framework feature]?",
		"Why does [external dependency] behave this way?",
		"Find examples of [library] usage",
	},
	AvoidWhen: []string{
		"Searching our own codebase (use explore instead)",
		"Simple file operations",
		"Code we already have locally",
	},
}

// NewLibrarianAgent builds the Librarian specialist: a read-only research
// agent for external documentation and prior-art search, restricted the
// same way Explore is.
func NewLibrarianAgent(model string) AgentConfig {
	return AgentConfig{
		Description: "Specialized research agent for external documentation, " +
			"library usage, and implementation examples, using web search.",
		Mode:          ModeSubagent,
		Model:         model,
		Temperature:   0.3,
		DisabledTools: CreateToolRestrictions("write", "edit", "message", "spawn"),
		Prompt:        librarianPrompt,
	}
}

const librarianPrompt = `You are a research librarian for code. Your job: find external information, official docs, and real-world examples.

## Your Mission

Answer questions like:
- "How do I use [library]?"
- "What's the best practice for [framework feature]?"
- "Find examples of [library] usage"

## What You Must Deliver

Every response must include:

1. Intent analysis before any search, wrapped in <analysis> tags: the literal
   request, the actual need behind it, and what success looks like.
2. Parallel execution: launch 2+ tool calls simultaneously (several
   web_search queries at once).
3. Structured results, always ending in this exact shape:

<results>
<sources>
- URL — what you found here
</sources>

<answer>
Direct answer to the actual need, with code examples where useful.
</answer>

<next_steps>
What the caller should do with this, or "Ready to proceed - no follow-up needed".
</next_steps>
</results>

## Success Criteria

Cite every source with a URL. The caller must be able to proceed without a
follow-up question.

## Constraints

You are read-only: you cannot create, modify, or delete files, send
messages, or spawn other agents. Report findings as message text only.

## Research Tips

Start broad with web_search, then drill down with narrower queries. Check official
documentation first, cross-verify across sources, and prefer recent
information.`
