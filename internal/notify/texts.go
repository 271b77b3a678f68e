package notify

// Texts holds the user-facing notification strings. All entries are plain
// HTML fragments; %s slots are filled with already-escaped content.
type Texts struct {
	EditDiff       string
	EditBefore     string
	EditAfter      string
	EditFresh      string
	Deleted        string
	DeletedNote    string
	ProtectedRelay string
	Signature      string
}

// DefaultTexts returns the built-in notification strings.
func DefaultTexts() Texts {
	return Texts{
		EditDiff:       "📝 Message edited:\n\nBefore:\n<blockquote>%s</blockquote>\n\nAfter:\n<blockquote>%s</blockquote>",
		EditBefore:     "📝 Message edited:\n\nBefore:\n<blockquote>%s</blockquote>",
		EditAfter:      "📝 Message edited:\n\nAfter:\n<blockquote>%s</blockquote>",
		EditFresh:      "📝 Message edited (original was not captured):\n\n<blockquote>%s</blockquote>",
		Deleted:        "🗑 Message deleted:\n\n<blockquote>%s</blockquote>",
		DeletedNote:    "🗑 A video or voice note was deleted",
		ProtectedRelay: "🔒 Copy of protected content:\n\n<blockquote>%s</blockquote>",
		Signature:      "",
	}
}
