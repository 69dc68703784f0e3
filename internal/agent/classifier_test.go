// File: internal/agent/classifier_test.go
package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pilot-cli/internal/agent"
)

// -- Test Cases --

func TestClassify_Navigation(t *testing.T) {
	c := agent.NewClassifier()

	tests := []struct {
		desc   string
		target string
	}{
		{"go to gmail.com", "gmail.com"},
		{"Navigate to https://example.com/login", "https://example.com/login"},
		{"visit the website mail.example.co.uk", "mail.example.co.uk"},
		{"open reddit", "reddit.com"},
		{"go to gmail.com and check my inbox", "gmail.com"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cmd, ok := c.Classify(tt.desc)
			require.True(t, ok)
			assert.Equal(t, agent.ActionNavigate, cmd.Action)
			assert.Equal(t, tt.target, cmd.Target)
		})
	}
}

func TestClassify_NavigationNeedsContext(t *testing.T) {
	c := agent.NewClassifier()

	// Targets that are prose, not addresses, must go to the LLM.
	for _, desc := range []string{
		"open the inbox",
		"open the first search result",
		"go to my profile settings page",
	} {
		_, ok := c.Classify(desc)
		assert.False(t, ok, desc)
	}
}

func TestClassify_Search(t *testing.T) {
	c := agent.NewClassifier()

	tests := []struct {
		desc   string
		target string
	}{
		{"search for cute cats on youtube", "https://www.youtube.com/results?search_query=cute+cats"},
		{"search wikipedia for Go programming language", "https://en.wikipedia.org/wiki/Special:Search?search=Go+programming+language"},
		{"look up chromedp on github", "https://github.com/search?q=chromedp"},
		{"search for best pizza near me", "https://www.google.com/search?q=best+pizza+near+me"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cmd, ok := c.Classify(tt.desc)
			require.True(t, ok)
			assert.Equal(t, agent.ActionNavigate, cmd.Action)
			assert.Equal(t, tt.target, cmd.Target)
		})
	}
}

func TestClassify_SearchUnknownPlatformStaysWithLLM(t *testing.T) {
	c := agent.NewClassifier()

	// Platforms outside the vocabulary, and known platforms without a
	// query URL, both need the planner.
	for _, desc := range []string{
		"search intranet for the onboarding doc",
		"search netflix for documentaries",
	} {
		_, ok := c.Classify(desc)
		assert.False(t, ok, desc)
	}
}

func TestClassify_SelectorActions(t *testing.T) {
	c := agent.NewClassifier()

	cmd, ok := c.Classify(`click "#submit-button"`)
	require.True(t, ok)
	assert.Equal(t, agent.ActionClick, cmd.Action)
	assert.Equal(t, "#submit-button", cmd.Target)

	cmd, ok = c.Classify(`type "hello world" into #search-input`)
	require.True(t, ok)
	assert.Equal(t, agent.ActionFill, cmd.Action)
	assert.Equal(t, "#search-input", cmd.Target)
	assert.Equal(t, "hello world", cmd.Value)

	cmd, ok = c.Classify(`extract .article-body`)
	require.True(t, ok)
	assert.Equal(t, agent.ActionExtract, cmd.Action)
	assert.Equal(t, ".article-body", cmd.Target)
}

func TestClassify_ProseSelectorsRejected(t *testing.T) {
	c := agent.NewClassifier()

	_, ok := c.Classify("click the login button")
	assert.False(t, ok, "prose click targets need the LLM to resolve a selector")

	_, ok = c.Classify(`type "query" into the search box`)
	assert.False(t, ok)
}

func TestClassify_Snapshot(t *testing.T) {
	c := agent.NewClassifier()

	for _, desc := range []string{
		"check the inbox",
		"output the unread count",
		"list the search results",
		"extract the first paragraph",
	} {
		cmd, ok := c.Classify(desc)
		require.True(t, ok, desc)
		assert.Equal(t, agent.ActionSnapshot, cmd.Action, desc)
	}
}

func TestClassify_Unclaimed(t *testing.T) {
	c := agent.NewClassifier()

	for _, desc := range []string{
		"log in with my saved credentials",
		"reply to the newest email",
		"scroll down until the footer is visible",
	} {
		_, ok := c.Classify(desc)
		assert.False(t, ok, desc)
	}
}
