package model

import (
	"os"
)

// AttachmentKind is the closed set of attachment classes the pipeline
// understands. Consumers switch over it exhaustively; there is no
// "unknown" member, unclassifiable media is treated as a document.
type AttachmentKind uint8

const (
	KindImage AttachmentKind = iota
	KindVideo
	KindAudio
	KindDocument
)

// String - human-readable kind name for logs and metrics.
func (k AttachmentKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindDocument:
		return "document"
	default:
		return "document"
	}
}

// AttachmentRef points at a piece of media still living in the source
// platform's store. FileID is an opaque locator only the platform
// client can resolve.
type AttachmentRef struct {
	Kind     AttachmentKind // Classified media kind.
	FileID   string         // Opaque handle into the source media store.
	Filename string         // Suggested filename, may be empty.
}

// ProcessedAttachment is a materialized, transformed attachment ready
// for upload. It owns its file on local storage until Discard is called
// or ownership is released through NormalizedMessage.ReleaseFiles.
type ProcessedAttachment struct {
	Kind      AttachmentKind // Media kind after classification.
	LocalPath string         // Path of the temporary artifact.
	Filename  string         // Upload filename.
	Size      int64          // Artifact size in bytes.
}

// Discard removes the owned file. Missing files are not an error so the
// cleanup step stays idempotent.
func (a *ProcessedAttachment) Discard() error {
	if a.LocalPath == "" {
		return nil
	}
	if err := os.Remove(a.LocalPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
