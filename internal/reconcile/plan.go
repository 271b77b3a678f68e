package reconcile

import (
	"github.com/ykaravaev/secretarybot/internal/database"
)

// PlanKind identifies the notification shape produced for one observed
// message transition. The set is closed; Classify covers every
// (prior, next) content-type pairing with exactly one kind.
type PlanKind int

const (
	// PlanFreshNotice renders only the new version; no prior version was ever
	// captured, so no diff is possible.
	PlanFreshNotice PlanKind = iota

	// PlanTextDiff renders a single before/after quoted text message.
	PlanTextDiff

	// PlanGroupedMediaDiff sends both attachments as one media group followed
	// by a text-diff summary.
	PlanGroupedMediaDiff

	// PlanSingleContentDiff resends one side's content with a combined
	// before/after caption.
	PlanSingleContentDiff

	// PlanSplitBeforeAfter sends the before side and the after side as two
	// consecutive messages, each individually captioned.
	PlanSplitBeforeAfter

	// PlanTombstone announces that a previously captured message was deleted,
	// re-rendering its last known version.
	PlanTombstone

	// PlanProtectedRelay re-captures a protected replied-to message so its
	// content is not lost to the owner.
	PlanProtectedRelay
)

// String returns the kind's wire/log name.
func (k PlanKind) String() string {
	switch k {
	case PlanFreshNotice:
		return "fresh_notice"
	case PlanTextDiff:
		return "text_diff"
	case PlanGroupedMediaDiff:
		return "grouped_media_diff"
	case PlanSingleContentDiff:
		return "single_content_diff"
	case PlanSplitBeforeAfter:
		return "split_before_after"
	case PlanTombstone:
		return "tombstone"
	case PlanProtectedRelay:
		return "protected_relay"
	}
	return "unknown"
}

// Plan is a synthesized notification payload: what to tell the owner about
// one observed transition. Before is the last persisted version (nil when the
// message was never captured), After the newly captured one (nil for
// tombstones).
type Plan struct {
	Kind        PlanKind
	OwnerChatID int64
	Before      *database.CapturedMessage
	After       *database.CapturedMessage
}

// SingleSide picks the version a single-content diff should render:
// content-bearing beats text, and the prior version wins when both sides
// carry content.
func (p *Plan) SingleSide() *database.CapturedMessage {
	switch {
	case p.Before == nil:
		return p.After
	case p.Before.ContentType.ContentBearing():
		return p.Before
	case p.After != nil && p.After.ContentType.ContentBearing():
		return p.After
	}
	return p.Before
}

// Classify maps a (prior, next) version pair onto exactly one plan kind.
// prior may be nil when the original message was never captured.
func Classify(prior, next *database.CapturedMessage) PlanKind {
	switch {
	case prior == nil:
		return PlanFreshNotice
	case prior.ContentType == database.ContentTypeText && next.ContentType == database.ContentTypeText:
		return PlanTextDiff
	case prior.ContentType.MediaGroupEligible() && next.ContentType.MediaGroupEligible():
		return PlanGroupedMediaDiff
	case !prior.ContentType.NoteLike() && !next.ContentType.NoteLike():
		return PlanSingleContentDiff
	}
	return PlanSplitBeforeAfter
}
