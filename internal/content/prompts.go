package content

import (
	"fmt"
	"strings"
)

// Task selects the instruction template wrapped around caller text.
type Task string

const (
	TaskGenerate  Task = "generate"
	TaskEnhance   Task = "enhance"
	TaskSummarize Task = "summarize"
)

const DefaultSummaryChars = 200

const defaultSystemInstruction = `You are an expert author of educational content.
Your job is to produce high quality lectures and educational video scripts.
The content must be:
- easy to understand and clearly worded
- logically structured
- suitable for being read aloud on video
- concise but complete
- written in a friendly, approachable tone`

const enhanceTemplate = `Improve the following script so it works better as an educational video:

%s

Requirements:
- Keep the main ideas unchanged
- Improve the phrasing
- Add an engaging hook or intro if needed
- Make sure the structure is clear
- Length suitable for a 2-5 minute spoken video`

const summarizeTemplate = `Summarize the content of the following script in about %d characters:

%s`

func enhancePrompt(script string) string {
	return fmt.Sprintf(enhanceTemplate, strings.TrimSpace(script))
}

func summarizePrompt(script string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultSummaryChars
	}
	return fmt.Sprintf(summarizeTemplate, maxChars, strings.TrimSpace(script))
}
