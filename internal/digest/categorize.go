package digest

import (
	"strings"

	"inboxpilot/internal/model"
)

// Bulk category keyword sets, checked in order against title+body.
// The first category with any keyword hit wins; no hit at all falls
// through to automated.
var bulkCategories = []struct {
	name     string
	keywords []string
}{
	{model.BulkMarketing, []string{
		"unsubscribe", "sale", "discount", "offer", "deal", "promo", "% off", "limited time",
	}},
	{model.BulkNewsletters, []string{
		"newsletter", "digest", "roundup", "edition", "issue #", "this week in",
	}},
	{model.BulkSocial, []string{
		"liked", "commented", "followed", "mentioned you", "friend request", "new follower", "tagged you",
	}},
}

// CategorizeBulk assigns a weekly bulk category to a low tier item.
func CategorizeBulk(title, body string) string {
	text := strings.ToLower(title + " " + body)
	for _, cat := range bulkCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				return cat.name
			}
		}
	}
	return model.BulkAutomated
}
