package core

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NameCollator compares student names using a locale's collation rules.
// Chinese locales order Han characters by pinyin. A NameCollator is not safe
// for concurrent use; create one per sort.
type NameCollator struct {
	c *collate.Collator
}

// NewNameCollator returns a collator for tag, falling back to DefaultLocale
// for the undetermined tag.
func NewNameCollator(tag language.Tag) *NameCollator {
	if tag == language.Und {
		tag = DefaultLocale
	}
	return &NameCollator{c: collate.New(tag)}
}

// Compare returns -1, 0 or 1 as a sorts before, equal to, or after b.
func (n *NameCollator) Compare(a, b string) int {
	return n.c.CompareString(a, b)
}

// Less reports whether a sorts strictly before b.
func (n *NameCollator) Less(a, b string) bool {
	return n.Compare(a, b) < 0
}
