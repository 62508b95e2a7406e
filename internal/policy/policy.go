// Package policy holds the rule tables the tracker applies to app names:
// category classification and work-mode blocking profiles.
package policy

import (
	"strings"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// CategoryOther is assigned when no rule matches.
const CategoryOther = "Other"

// CategoryRule maps app name fragments to a category.
// Fragments are matched case-insensitively as substrings of the app name.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Apps     []string `yaml:"apps"`
}

// DefaultCategoryRules returns the built-in classification table.
// Order matters: the first matching rule wins.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Category: "Development", Apps: []string{"Visual Studio Code", "Code", "WebStorm", "IntelliJ IDEA", "GoLand", "Sublime Text", "Atom", "Notepad++", "Xcode"}},
		{Category: "Browser", Apps: []string{"Google Chrome", "Chrome", "Firefox", "Safari", "Microsoft Edge", "Opera"}},
		{Category: "Design", Apps: []string{"Figma", "Adobe Photoshop", "Adobe Illustrator", "Sketch", "Canva"}},
		{Category: "Communication", Apps: []string{"Slack", "Discord", "Microsoft Teams", "Zoom", "Skype", "WeChat", "QQ", "Feishu", "Lark"}},
		{Category: "Productivity", Apps: []string{"Notion", "Microsoft Word", "Microsoft Excel", "Microsoft PowerPoint", "Trello", "Asana", "Obsidian"}},
		{Category: "Entertainment", Apps: []string{"Spotify", "Netflix", "YouTube", "Steam", "Epic Games Launcher", "Dota 2"}},
		{Category: "System", Apps: []string{"Task Manager", "System Preferences", "System Settings", "Control Panel", "Terminal", "iTerm2", "Command Prompt", "Finder"}},
	}
}

// Categorizer implements domain.Categorizer over an ordered rule table.
type Categorizer struct {
	rules []CategoryRule
}

// NewCategorizer creates a categorizer with the default rules.
func NewCategorizer() *Categorizer {
	return NewCategorizerWithRules(DefaultCategoryRules())
}

// NewCategorizerWithRules creates a categorizer with custom rules.
func NewCategorizerWithRules(rules []CategoryRule) *Categorizer {
	lowered := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		apps := make([]string, 0, len(r.Apps))
		for _, a := range r.Apps {
			if a = strings.TrimSpace(a); a != "" {
				apps = append(apps, strings.ToLower(a))
			}
		}
		lowered = append(lowered, CategoryRule{Category: r.Category, Apps: apps})
	}
	return &Categorizer{rules: lowered}
}

// Categorize returns the category of appName, or CategoryOther.
func (c *Categorizer) Categorize(appName string) string {
	name := strings.ToLower(appName)
	for _, r := range c.rules {
		for _, fragment := range r.Apps {
			if strings.Contains(name, fragment) {
				return r.Category
			}
		}
	}
	return CategoryOther
}

// Ensure Categorizer implements domain.Categorizer.
var _ domain.Categorizer = (*Categorizer)(nil)
