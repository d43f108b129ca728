package service

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

const maxSanitizePasses = 4

// cleanText strips markup and turns the entities the policy emits back into plain text, so
// names like "Kopi & Co" survive unchanged. Unescaping can surface markup that was hidden in
// entities, so the policy runs again until the text stops changing. Input that never settles
// is returned in its escaped form.
func cleanText(policy *bluemonday.Policy, value string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		cleaned := html.UnescapeString(policy.Sanitize(value))
		if cleaned == value {
			return cleaned
		}
		value = cleaned
	}
	return policy.Sanitize(value)
}
