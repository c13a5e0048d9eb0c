package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidDocument = errors.New("invalid_document")
	ErrInvalidURL      = errors.New("invalid_document_url")
	ErrRenderFailed    = errors.New("render_failed")
	ErrUploadFailed    = errors.New("document_upload_failed")
)

// Renderer produces a PDF for a proposal.
type Renderer interface {
	Render(ctx context.Context, p Proposal) ([]byte, error)
}

// Storage uploads content and returns its public URL.
type Storage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type Issued struct {
	Document Document
	Outcome  RenderKind
}

type Service interface {
	IssueProposal(ctx context.Context, p Proposal) (Issued, error)
	IssueReceipt(ctx context.Context, p Proposal) (Issued, error)
	AttachIdentity(ctx context.Context, subscriptionID snowflake.ID, url string) (Document, error)
	List(ctx context.Context, subscriptionID snowflake.ID) ([]Document, error)
}
