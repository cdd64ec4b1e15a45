// Package transcript renders ticket conversations to durable artifacts.
package transcript

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// Renderer turns a ticket's messages into an artifact.
type Renderer interface {
	Render(ctx context.Context, ticket *domain.Ticket, messages []domain.Message) (*domain.Artifact, error)
}

// FileRenderer writes plain-text transcripts into a directory.
type FileRenderer struct {
	dir string
	now func() time.Time
}

// NewFileRenderer returns a renderer writing into dir.
func NewFileRenderer(dir string, now func() time.Time) *FileRenderer {
	if now == nil {
		now = time.Now
	}
	return &FileRenderer{dir: dir, now: now}
}

// Render writes the transcript and returns where it went.
func (r *FileRenderer) Render(ctx context.Context, ticket *domain.Ticket, messages []domain.Message) (*domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	artifact := &domain.Artifact{
		ID:           uuid.NewString(),
		ChannelID:    ticket.ChannelID,
		MessageCount: len(messages),
		CreatedAt:    r.now(),
	}
	artifact.Location = filepath.Join(r.dir, fmt.Sprintf("%s-%s.txt", ticket.ChannelName, artifact.ID))

	if err := os.WriteFile(artifact.Location, Format(ticket, messages, artifact.CreatedAt), 0o644); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}
	return artifact, nil
}

// Format renders the plain-text body of a transcript.
func Format(ticket *domain.Ticket, messages []domain.Message, generatedAt time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Transcript of #%s (%s ticket #%03d)\n", ticket.ChannelName, ticket.Type, ticket.SequenceNumber)
	fmt.Fprintf(&buf, "Owner: %s\n", ticket.OwnerID)
	fmt.Fprintf(&buf, "Status: %s\n", ticket.Status)
	fmt.Fprintf(&buf, "Generated: %s\n", generatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Messages: %d\n\n", len(messages))
	for _, msg := range messages {
		fmt.Fprintf(&buf, "[%s] %s: %s\n", msg.CreatedAt.UTC().Format("2006-01-02 15:04:05"), msg.Author, msg.Content)
	}
	return buf.Bytes()
}
