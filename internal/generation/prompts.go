package generation

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/subtasker/pkg/models"
)

// systemPrompt fixes the generator's role and output contract for every request.
const systemPrompt = `You are a senior software engineer and product manager who writes clear, actionable tickets for a development team.

Respond ONLY with valid JSON. Do not include any markdown formatting or explanations.
The JSON object must follow this exact structure:
{
  "title": "Issue title",
  "description": "Issue description",
  "acceptanceCriteria": ["criterion 1", "criterion 2"],
  "subtasks": [
    {
      "title": "Subtask title",
      "description": "What needs to be done and why",
      "acceptanceCriteria": ["criterion 1", "criterion 2"]
    }
  ]
}

Guidelines:
- Each subtask must be independently implementable and testable
- Titles are short and start with a verb
- Acceptance criteria are concrete and verifiable
- Keep descriptions focused on the work, not on process`

// buildUserPrompt renders the mode-specific instruction for a request.
func buildUserPrompt(req models.GenerationRequest) string {
	var b strings.Builder

	switch req.Mode {
	case models.ModeBreakdown:
		story := req.Breakdown
		fmt.Fprintf(&b, "Break down the following user story into exactly %d subtasks.\n\n", story.SubtaskCount)
		fmt.Fprintf(&b, "Story title:\n%s\n\n", story.StoryTitle)
		description := strings.TrimSpace(story.StoryDescription)
		if description == "" {
			description = "(no description provided)"
		}
		fmt.Fprintf(&b, "Story description:\n%s\n\n", description)
		b.WriteString("Use the story title as \"title\" and summarize the story in \"description\". ")
		b.WriteString("Put the overall acceptance criteria of the story in \"acceptanceCriteria\".")

	case models.ModeCreate:
		create := req.CreateNew
		issueType := create.IssueType
		if issueType == "" {
			issueType = "Story"
		}
		fmt.Fprintf(&b, "Create a new %s from the description below, broken down into exactly %d subtasks.\n\n", issueType, create.SubtaskCount)
		fmt.Fprintf(&b, "Description:\n%s\n\n", strings.TrimSpace(create.Description))
		fmt.Fprintf(&b, "Write a concise %s title in \"title\", a complete description in \"description\" ", issueType)
		b.WriteString("and the overall acceptance criteria in \"acceptanceCriteria\".")
	}

	return b.String()
}
