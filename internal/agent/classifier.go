// internal/agent/classifier.go
package agent

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
)

// Classifier turns goal descriptions into browser commands without a model.
// It only claims goals it can compile unambiguously; everything else falls
// through to the LLM. Keeping the common cases deterministic makes runs
// cheaper and reproducible.
type Classifier struct {
	navigateRe  *regexp.Regexp
	searchOnRe  *regexp.Regexp
	searchForRe *regexp.Regexp
	plainSearch *regexp.Regexp
	clickRe     *regexp.Regexp
	fillRe      *regexp.Regexp
	extractRe   *regexp.Regexp
	snapshotRe  *regexp.Regexp
	hostRe      *regexp.Regexp
	selectorRe  *regexp.Regexp
	bareWordRe  *regexp.Regexp
}

// searchTemplates maps the platforms the sequencer already knows about to
// their query URLs. Platforms in the table without a template stay with the
// LLM, which can work out site-specific search flows.
var searchTemplates = map[string]string{
	"google":     "https://www.google.com/search?q=%s",
	"bing":       "https://www.bing.com/search?q=%s",
	"duckduckgo": "https://duckduckgo.com/?q=%s",
	"youtube":    "https://www.youtube.com/results?search_query=%s",
	"wikipedia":  "https://en.wikipedia.org/wiki/Special:Search?search=%s",
	"reddit":     "https://www.reddit.com/search/?q=%s",
	"github":     "https://github.com/search?q=%s",
	"amazon":     "https://www.amazon.com/s?k=%s",
}

// NewClassifier compiles the rule set.
func NewClassifier() *Classifier {
	return &Classifier{
		navigateRe:  regexp.MustCompile(`(?i)^\s*(?:go\s+to|navigate\s+to|visit|open)\s+(.+?)\s*$`),
		searchOnRe:  regexp.MustCompile(`(?i)^\s*(?:search|look\s+up)\s+(?:for\s+)?(.+?)\s+on\s+([a-zA-Z][\w .]*?)\s*$`),
		searchForRe: regexp.MustCompile(`(?i)^\s*search\s+([a-zA-Z][\w .]*?)\s+for\s+(.+?)\s*$`),
		plainSearch: regexp.MustCompile(`(?i)^\s*(?:search\s+for|google)\s+(.+?)\s*$`),
		clickRe:     regexp.MustCompile(`(?i)^\s*(?:click|press|tap)(?:\s+on)?\s+(.+?)\s*$`),
		fillRe:      regexp.MustCompile(`(?i)^\s*(?:type|enter|fill\s+in|input)\s+"([^"]*)"\s+(?:into|in|to)\s+(.+?)\s*$`),
		extractRe:   regexp.MustCompile(`(?i)^\s*(?:extract|scrape|copy|read)\s+(?:the\s+)?(?:text\s+(?:of|from)\s+)?(.+?)\s*$`),
		snapshotRe:  regexp.MustCompile(`(?i)^\s*(?:check|look\s+at|output|show|list|describe)\b`),

		// A bare hostname like "mail.example.com" or a full URL.
		hostRe: regexp.MustCompile(`(?i)^(?:https?://)?[a-z0-9][a-z0-9.-]*\.[a-z]{2,}(?:/\S*)?$`),
		// Things that read like CSS selectors rather than prose.
		selectorRe: regexp.MustCompile(`^[#.\[]|^[a-zA-Z][\w-]*(?:[#.\[][^\s]*)?$`),
		bareWordRe: regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`),
	}
}

// Classify compiles a goal description into a Command. The second return
// value reports whether the classifier could claim the goal.
func (c *Classifier) Classify(description string) (Command, bool) {
	desc := strings.TrimSpace(description)

	if m := c.navigateRe.FindStringSubmatch(desc); m != nil {
		if target := c.navigationTarget(m[1]); target != "" {
			return Command{Action: ActionNavigate, Target: target}, true
		}
		// "open the first search result" and friends need page context.
		return Command{}, false
	}

	if cmd, ok := c.searchCommand(desc); ok {
		return cmd, true
	}

	if m := c.fillRe.FindStringSubmatch(desc); m != nil {
		if sel := c.selectorIn(m[2]); sel != "" {
			return Command{Action: ActionFill, Target: sel, Value: m[1]}, true
		}
		return Command{}, false
	}

	if m := c.clickRe.FindStringSubmatch(desc); m != nil {
		if sel := c.selectorIn(m[1]); sel != "" {
			return Command{Action: ActionClick, Target: sel}, true
		}
		return Command{}, false
	}

	if m := c.extractRe.FindStringSubmatch(desc); m != nil {
		if sel := c.selectorIn(m[1]); sel != "" {
			return Command{Action: ActionExtract, Target: sel}, true
		}
		// Free-text extraction targets read the whole page.
		return Command{Action: ActionSnapshot}, true
	}

	if c.snapshotRe.MatchString(desc) {
		return Command{Action: ActionSnapshot}, true
	}

	return Command{}, false
}

// searchCommand resolves "search ..." phrasings into a navigation to the
// platform's query URL. Only platforms from the sequencer's vocabulary with
// a known search template are claimed; everything else stays with the LLM.
func (c *Classifier) searchCommand(desc string) (Command, bool) {
	if m := c.searchOnRe.FindStringSubmatch(desc); m != nil {
		return c.searchNavigate(m[2], m[1])
	}
	if m := c.searchForRe.FindStringSubmatch(desc); m != nil {
		return c.searchNavigate(m[1], m[2])
	}
	if m := c.plainSearch.FindStringSubmatch(desc); m != nil {
		return c.searchNavigate("google", m[1])
	}
	return Command{}, false
}

func (c *Classifier) searchNavigate(platform, query string) (Command, bool) {
	name := strings.ToLower(strings.TrimSpace(platform))
	if _, known := sequencer.PlatformCategory(name); !known {
		return Command{}, false
	}
	tmpl, ok := searchTemplates[name]
	if !ok {
		return Command{}, false
	}
	query = strings.Trim(strings.TrimSpace(query), `"'`)
	if query == "" {
		return Command{}, false
	}
	return Command{Action: ActionNavigate, Target: fmt.Sprintf(tmpl, url.QueryEscape(query))}, true
}

// navigationTarget extracts a URL from the phrase after a navigation verb,
// or "" when the phrase is not address-like.
func (c *Classifier) navigationTarget(phrase string) string {
	phrase = strings.Trim(phrase, `"' `)
	// "the inbox" stays prose on purpose; only address-context articles are
	// stripped so "open the website example.com" still resolves.
	for _, prefix := range []string{"the website ", "the site ", "the page "} {
		if rest := strings.TrimPrefix(phrase, prefix); rest != phrase {
			phrase = rest
			break
		}
	}

	// Phrases like "gmail.com and check the inbox" keep only the address.
	fields := strings.Fields(phrase)
	if len(fields) == 0 {
		return ""
	}
	candidate := strings.Trim(fields[0], ".,;")
	if c.hostRe.MatchString(candidate) {
		return candidate
	}

	// A single bare word is treated as a site name: "open reddit".
	if len(fields) == 1 && c.bareWordRe.MatchString(candidate) {
		return candidate + ".com"
	}
	return ""
}

// selectorIn accepts quoted selectors and selector-shaped tokens; prose like
// "the login button" is rejected so the LLM can resolve it.
func (c *Classifier) selectorIn(phrase string) string {
	phrase = strings.TrimSpace(phrase)
	if len(phrase) > 1 && phrase[0] == '"' && phrase[len(phrase)-1] == '"' {
		return phrase[1 : len(phrase)-1]
	}
	if strings.ContainsAny(phrase, " \t") {
		return ""
	}
	if c.selectorRe.MatchString(phrase) && strings.ContainsAny(phrase, "#.[") {
		return phrase
	}
	return ""
}
