package parser

import (
	"fmt"
	"time"
)

const promptTemplate = `You are an assistant that turns a short to-do note into a structured task.
Today is %s at %s.

Extract exactly these four fields from the note:
1. task_name: a short description of what has to be done. Required.
2. assignee: the person responsible, or null if nobody is named. Recognize first-person references such as "me" or "I".
3. due_date_time: when the task is due, resolved against today's date and written as YYYY-MM-DDTHH:MM:SS, or null if no time is given. Use 09:00:00 when only a day is mentioned.
4. priority_hint: one of P1, P2, P3, P4 if the note states a priority, otherwise null.

Respond with ONLY a JSON object that has the keys "task_name", "assignee", "due_date_time" and "priority_hint". Do not add explanations or markdown.

Example (when today is Wednesday, May 29, 2024):
Note: "Schedule meeting with Marketing team for next Tuesday at 3pm P1"
{"task_name": "Schedule meeting with Marketing team", "assignee": null, "due_date_time": "2024-06-04T15:00:00", "priority_hint": "P1"}

Example (when today is Wednesday, May 29, 2024):
Note: "Buy groceries tomorrow assigned to John"
{"task_name": "Buy groceries", "assignee": "John", "due_date_time": "2024-05-30T09:00:00", "priority_hint": null}

Note: %q
`

// BuildPrompt renders the extraction instructions anchored to now.
func BuildPrompt(now time.Time, input string) string {
	return fmt.Sprintf(promptTemplate,
		now.Format("Monday, January 02, 2006"),
		now.Format("03:04 PM"),
		input,
	)
}
