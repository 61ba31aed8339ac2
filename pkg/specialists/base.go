package specialists

// AgentMode distinguishes the primary conversational agent from the
// lightweight subagents it can spawn.
type AgentMode string

const (
	ModePrimary AgentMode = "primary"
	ModeSubagent AgentMode = "subagent"
)

// PromptMetadata documents when a specialist should (and shouldn't) be
// invoked. Not consumed by the agent loop directly — surfaced in the
// spawn tool's description so the calling model can pick the right one.
type PromptMetadata struct {
	Category    string
	Cost        string // FREE, CHEAP, EXPENSIVE
	PromptAlias string
	KeyTrigger  string
	UseWhen     []string
	AvoidWhen   []string
}

// AgentConfig is the complete configuration for a specialist: its prompt,
// model, sampling temperature, and the tools it is barred from using.
type AgentConfig struct {
	Description   string
	Mode          AgentMode
	Model         string // empty inherits the caller's model
	Temperature   float64
	Prompt        string
	DisabledTools []string
}

// CreateToolRestrictions builds a DisabledTools list. The short names
// "write" and "edit" also disable the registered file tools "write_file" and
// "edit_file", since ToolRegistry.WithoutNames matches exact tool names.
func CreateToolRestrictions(disabledTools ...string) []string {
	out := append([]string{}, disabledTools...)
	for _, name := range disabledTools {
		switch name {
		case "write":
			out = append(out, "write_file")
		case "edit":
			out = append(out, "edit_file")
		}
	}
	return out
}
