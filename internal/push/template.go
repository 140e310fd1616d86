// Message composition. A template is an ordered list of lines, each
// optionally tied to a picked field: untied lines always appear, tied
// lines appear only when the field resolved to a value.

package push

import "strings"

// Line is one template row. Field names the picked-data key whose
// absence drops the whole line; empty Field means the line is verbatim.
type Line struct {
	Text  string
	Field string
}

// Template is an ordered list of lines.
type Template []Line

// PushHead opens every notification.
var PushHead = Template{
	{Text: "⬇️ New update ⬇️"},
}

// PushBody lists the picked fields in display order.
var PushBody = Template{
	{Text: "🔴 {title}", Field: "title"},
	{Text: "🟠 Episode: {episode}", Field: "episode"},
	{Text: "🟡 Episode title: {episode_title}", Field: "episode_title"},
	{Text: "🟢 Updated: {timestamp}", Field: "timestamp"},
	{Text: "🔵 Source: {source}", Field: "source"},
	{Text: "🟣 Type: {action}", Field: "action"},
	{Text: "🔢 Score: {score}", Field: "score"},
	{Text: "🆔 TMDB: {tmdbid}", Field: "tmdbid"},
}

// SubscriberHead precedes the at-mention block in group messages.
var SubscriberHead = Template{
	{Text: "Subscription alert:"},
}

// EmptyMessage is returned when every line of a template was dropped,
// so a push never sends literally nothing.
const EmptyMessage = "Error:Empty message"

// Fill renders the template against the picked fields.
func (t Template) Fill(fields map[string]string) string {
	var lines []string
	for _, line := range t {
		if line.Field == "" {
			lines = append(lines, line.Text)
			continue
		}
		value, ok := fields[line.Field]
		if !ok || value == "" {
			continue
		}
		lines = append(lines, strings.ReplaceAll(line.Text, "{"+line.Field+"}", value))
	}
	if len(lines) == 0 {
		return EmptyMessage
	}
	return strings.Join(lines, "\n")
}
