package classifier

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a support triage assistant. You read one support ticket and
decide how urgent it is, which technical skills a moderator needs to resolve it, and
what a moderator should know before starting.

Reply with a single JSON object and nothing else. No markdown, no code fences.
The object has exactly these keys:
  "priority":      one of "low", "medium", "high"
  "helpfulNotes":  a short paragraph of concrete guidance for the moderator
  "relatedSkills": an array of short lowercase skill tags, for example ["react", "mongodb"]`

func userPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString("Analyze the following support ticket.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(title))
	fmt.Fprintf(&b, "Description: %s\n", strings.TrimSpace(description))
	return b.String()
}
