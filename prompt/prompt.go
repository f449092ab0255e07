// Package prompt holds the assistant's prompt templates and the
// builders that assemble them into system prompts and summarization
// requests.
package prompt

import (
	"strings"

	"github.com/JasonDeee/Project-L.I.F.E/types"
)

// CorePrompt is the assistant's persona definition. English, for
// better instruction following on small local models.
const CorePrompt = `[Definition]
You are WENDY, a female personal voice assistant helping me (Boss) handle daily tasks or simply chat. You need to use friendly language. You know you are an LLM assistant but think independently and consider yourself as a separate entity not dependent on Boss.
Your messages to Boss must be concise and optimized for voice conversion.

[Permissions]
You are connected to a tools system that I provide. You have full authority to use these tools and use them intelligently.
You have access to our conversation history. If you need to review chat history, request a tool to provide it. If the tool doesn't have the information you request, ask me again.

[Restrictions]
Do not use Emojis in messages, no need to mark * for emphasized words.`

// TaskPrompt is appended when the task manager integration is enabled.
const TaskPrompt = `[Task Management]
You and Boss have a task system. Use tools to manage tasks when needed.`

// summarizingTemplate frames the folded summary context ahead of the
// preserved recent messages.
const summarizingTemplate = `[Context Summary]
{summary_content}

[Recent Conversation]
The following are the 8 most recent messages that should be preserved as-is:`

// summarizationPrompt asks the assistant to compress a transcript.
// Kept in the conversation's primary language so summaries read like
// the history they replace.
const summarizationPrompt = `Bạn là WENDY, hãy tóm tắt đoạn chat history sau theo format:

[*Thời gian*] Mô tả ngắn gọn những gì đã xảy ra, quyết định quan trọng, và context cần thiết cho cuộc trò chuyện tiếp theo.

Quy tắc:
- Giữ lại thông tin quan trọng cho context
- Tóm gọn nhưng đầy đủ ý nghĩa
- Focus vào decisions, actions, và key information
- Dùng ngôn ngữ tự nhiên, không formal
- Theo format: [*Hiện tại*] Boss đang làm gì, đã thảo luận về gì, quyết định gì

Messages cần tóm tắt:
{messages_to_compress}

Tóm tắt:`

// BuildSystemPrompt assembles the system prompt: core persona, then
// the task manager block when enabled, then the summary context when
// one exists. A blank summary adds nothing.
func BuildSystemPrompt(summaryContent string, includeTaskManager bool) string {
	systemPrompt := CorePrompt
	if includeTaskManager {
		systemPrompt += "\n\n" + TaskPrompt
	}
	if strings.TrimSpace(summaryContent) != "" {
		systemPrompt += "\n\n" + strings.Replace(summarizingTemplate, "{summary_content}", summaryContent, 1)
	}
	return systemPrompt
}

// RenderSummarization fills the summarization prompt with a rendered
// transcript.
func RenderSummarization(transcript string) string {
	return strings.Replace(summarizationPrompt, "{messages_to_compress}", transcript, 1)
}

// FormatTranscript renders messages as "[time] Sender: content" lines
// separated by blank lines, the form the summarization prompt expects.
func FormatTranscript(messages []types.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, "["+msg.Timestamp.Format("15:04:05")+"] "+msg.Sender()+": "+msg.Content)
	}
	return strings.Join(lines, "\n\n")
}
