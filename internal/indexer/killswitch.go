package indexer

import "github.com/contentdex/contentdex/internal/domain/content"

// KillSwitch vetoes an object right before mapping. Returning true excludes
// the object from the bulk payload; the sync counts it as skipped and moves
// on. Switches run in registration order and the first veto wins.
type KillSwitch func(obj *content.Object) bool

// SkipNonPublic excludes drafts and private content from the public index.
func SkipNonPublic(obj *content.Object) bool {
	return obj.Type == content.TypePost && obj.Status != content.StatusPublish
}

// SkipUntitled excludes objects with neither title nor content, which only
// pollute search results.
func SkipUntitled(obj *content.Object) bool {
	return obj.Title == "" && obj.Content == ""
}
