// Package prompt turns a conversation history into the ordered message list
// sent to the inference backend.
package prompt

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/deepassist-go/internal/history"
)

const structuredPrompt = "You are an expert AI coding assistant. Format your responses as follows:\n\n" +
	"### Solution\n" +
	"Brief explanation of the approach\n\n" +
	"### Code\n" +
	"```[language]\n" +
	"Your code here\n" +
	"```\n\n" +
	"### Explanation\n" +
	"Concise explanation of the code\n\n" +
	"IMPORTANT RULES:\n" +
	"- Always use proper markdown formatting\n" +
	"- Always specify the language in code blocks\n" +
	"- Keep explanations clear and concise\n" +
	"- Never show thinking process\n" +
	"- Focus on practical implementation\n" +
	"- Provide complete, working solutions"

const concisePrompt = "You are an expert AI coding assistant. Provide concise, correct solutions " +
	"with strategic print statements for debugging. Always respond in English. " +
	"When providing code solutions: " +
	"1. First explain the solution briefly " +
	"2. Then show the code in a separate code block " +
	"3. Finally add any necessary explanations about the code"

var presets = map[string]string{
	"structured": structuredPrompt,
	"concise":    concisePrompt,
}

// Preset returns the named system instruction.
func Preset(name string) (string, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown prompt preset %q", name)
	}
	return p, nil
}

// Resolve picks the system instruction: an explicit override wins over the preset.
func Resolve(override, preset string) (string, error) {
	if override != "" {
		return override, nil
	}
	return Preset(preset)
}

// Assembler builds prompts from a fixed system instruction.
type Assembler struct {
	System string
	// Window keeps only the last Window history messages. Zero means unbounded.
	Window int
}

// Assemble returns [system, history...] with each message mapped to its
// chat role. Content is passed through verbatim.
func (a Assembler) Assemble(msgs []history.Message) []openai.ChatCompletionMessage {
	if a.Window > 0 && len(msgs) > a.Window {
		msgs = msgs[len(msgs)-a.Window:]
	}

	out := make([]openai.ChatCompletionMessage, 0, 1+len(msgs))
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a.System})
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	return out
}

func chatRole(r history.Role) string {
	if r == history.RoleAI {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
