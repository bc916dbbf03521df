/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package outputcache

import "sort"

// TagIndex maps tags to the keys of entries that carry them.
// A tag disappears from the index as soon as no keys are associated with it.
// TagIndex is not safe for concurrent use.
type TagIndex struct {
	keysByTag map[string]map[string]struct{}
	tagsByKey map[string][]string
}

// NewTagIndex creates a new empty TagIndex.
func NewTagIndex() *TagIndex {
	return &TagIndex{
		keysByTag: make(map[string]map[string]struct{}),
		tagsByKey: make(map[string][]string),
	}
}

// Set replaces tags associated with the key.
func (ti *TagIndex) Set(key string, tags []string) {
	ti.RemoveKey(key)
	if len(tags) == 0 {
		return
	}
	uniqTags := make([]string, 0, len(tags))
	for _, tag := range tags {
		keys, ok := ti.keysByTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			ti.keysByTag[tag] = keys
		}
		if _, dup := keys[key]; dup {
			continue
		}
		keys[key] = struct{}{}
		uniqTags = append(uniqTags, tag)
	}
	ti.tagsByKey[key] = uniqTags
}

// RemoveKey removes the key from all tags it's associated with.
func (ti *TagIndex) RemoveKey(key string) {
	for _, tag := range ti.tagsByKey[key] {
		keys := ti.keysByTag[tag]
		delete(keys, key)
		if len(keys) == 0 {
			delete(ti.keysByTag, tag)
		}
	}
	delete(ti.tagsByKey, key)
}

// Keys returns a snapshot of keys associated with the tag.
func (ti *TagIndex) Keys(tag string) []string {
	keys := make([]string, 0, len(ti.keysByTag[tag]))
	for key := range ti.keysByTag[tag] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Tags returns all known tags in sorted order.
func (ti *TagIndex) Tags() []string {
	tags := make([]string, 0, len(ti.keysByTag))
	for tag := range ti.keysByTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
