package llm

import "strings"

// CleanMarkdownWrapper strips a surrounding ``` or ```json fence and any
// chatter before the first brace or after the last one.
func CleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if nl := strings.IndexByte(content, '\n'); nl >= 0 {
			content = content[nl+1:]
		} else {
			content = strings.TrimPrefix(content, "json")
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return content
	}
	end := strings.LastIndexAny(content, "}]")
	if end < start {
		return content[start:]
	}
	return content[start : end+1]
}
