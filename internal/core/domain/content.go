package domain

import "time"

// SourceType identifies the kind of store content a unit came from.
type SourceType string

// Known source types.
const (
	SourceTypeProduct SourceType = "product"
	SourceTypePage    SourceType = "page"
	SourceTypePolicy  SourceType = "policy"
	SourceTypeFAQ     SourceType = "faq"
	SourceTypeSetting SourceType = "setting"
)

// AllSourceTypes lists every scannable source type in scan order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceTypeProduct,
		SourceTypePage,
		SourceTypePolicy,
		SourceTypeFAQ,
		SourceTypeSetting,
	}
}

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeProduct, SourceTypePage, SourceTypePolicy, SourceTypeFAQ, SourceTypeSetting:
		return true
	}
	return false
}

// ContentUnit is a single scannable piece of store content.
// Units are created transiently per scan pass and consumed immediately
// by the chunking engine; they are never persisted directly.
type ContentUnit struct {
	// SourceID is the stable external identifier (e.g. "product:1042").
	SourceID string

	// SourceType classifies the unit.
	SourceType SourceType

	// Title is the human-readable title.
	Title string

	// RawText is the full text content before chunking.
	RawText string

	// URL is the public location of the content, if any.
	URL string

	// Language is a BCP 47 language tag (e.g. "en", "de").
	Language string

	// LastModifiedAt is when the content last changed in the store.
	LastModifiedAt time.Time
}

// ChangeType describes what happened to a piece of source content.
type ChangeType string

// Content change kinds.
const (
	ChangeTypeUpdated ChangeType = "updated"
	ChangeTypeRemoved ChangeType = "removed"
)

// ContentChangeEvent signals that a single source changed in the store.
// Host platform hooks are translated into these events by an adapter so
// the pipeline stays decoupled from any particular CMS event system.
type ContentChangeEvent struct {
	// SourceID identifies the changed content.
	SourceID string

	// ChangeType is what happened.
	ChangeType ChangeType
}
