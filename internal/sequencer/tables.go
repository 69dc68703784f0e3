// internal/sequencer/tables.go
package sequencer

import "strings"

// Static vocabulary tables for prompt classification. These are data, not
// logic: the sequencer compiles them into matchers exactly once at
// construction, never per call.

// platformEntry maps a well-known site name to its category. The vocabulary
// doubles as the command classifier's notion of a known platform; the
// sequencer itself only counts distinct names.
type platformEntry struct {
	Name     string
	Category string
}

var platformTable = []platformEntry{
	{"gmail", "email"},
	{"outlook", "email"},
	{"yahoo mail", "email"},
	{"protonmail", "email"},

	{"google", "search"},
	{"bing", "search"},
	{"duckduckgo", "search"},

	{"youtube", "video"},
	{"netflix", "video"},
	{"twitch", "video"},
	{"vimeo", "video"},

	{"reddit", "social"},
	{"linkedin", "social"},
	{"twitter", "social"},
	{"facebook", "social"},
	{"instagram", "social"},
	{"tiktok", "social"},
	{"pinterest", "social"},
	{"mastodon", "social"},

	{"amazon", "shopping"},
	{"ebay", "shopping"},
	{"etsy", "shopping"},
	{"walmart", "shopping"},
	{"aliexpress", "shopping"},

	{"github", "dev"},
	{"gitlab", "dev"},
	{"stackoverflow", "dev"},
	{"stack overflow", "dev"},
	{"hacker news", "dev"},
	{"hackernews", "dev"},

	{"wikipedia", "reference"},
	{"wiktionary", "reference"},

	{"cnn", "news"},
	{"bbc", "news"},
	{"nytimes", "news"},
	{"reuters", "news"},
	{"bloomberg", "news"},

	{"slack", "productivity"},
	{"discord", "productivity"},
	{"zoom", "productivity"},
	{"notion", "productivity"},
	{"trello", "productivity"},
	{"jira", "productivity"},
	{"dropbox", "productivity"},
	{"google drive", "productivity"},
	{"google docs", "productivity"},
	{"google maps", "maps"},

	{"spotify", "music"},
	{"soundcloud", "music"},

	{"booking.com", "travel"},
	{"airbnb", "travel"},
	{"expedia", "travel"},
}

// actionVerbs is the fixed verb vocabulary used for multi-goal detection and
// for verb-gated comma/"and" splitting. Multi-word entries must come before
// their single-word prefixes so the longest form wins when building the
// alternation.
var actionVerbs = []string{
	"go to",
	"navigate to",
	"visit",
	"open",
	"search",
	"find",
	"check",
	"output",
}

// sequenceConnectors separate consecutive goals in free-running prose. The
// comma-prefixed form is matched literally before the bare word so ", then"
// consumes its comma.
var sequenceConnectors = []string{
	", then",
	"then",
	"after that",
	"afterwards",
	"followed by",
	"next",
	"finally",
	"lastly",
}

// leadingConjunctions are stripped off the front of segmented chunks.
var leadingConjunctions = []string{
	"and then", "and", "then", "also", "next", "finally", "lastly",
	"afterwards", "after that", "followed by",
}

// PlatformCategory reports the category of a known platform name, matching
// case-insensitively. Unknown names return "" and false.
func PlatformCategory(name string) (string, bool) {
	for _, e := range platformTable {
		if strings.EqualFold(e.Name, name) {
			return e.Category, true
		}
	}
	return "", false
}
