package bot

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/schidstorm/pdf-bot/pkg/convert"
	"github.com/schidstorm/pdf-bot/pkg/logger"
)

type Kind int

const (
	KindUnsupported Kind = iota
	KindPhoto
	KindImageDocument
	KindUnsupportedDocument
	KindText
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindImageDocument:
		return "image-document"
	case KindUnsupportedDocument:
		return "unsupported-document"
	case KindText:
		return "text"
	case KindCommand:
		return "command"
	default:
		return "unsupported"
	}
}

type FileRef struct {
	FileID   string
	MIME     string
	FileName string
	Size     int64
}

// Message is the part of an incoming chat message the bot looks at.
type Message struct {
	Text     string
	Photo    *FileRef
	Document *FileRef
}

// Conversation is the chat a message came from.
type Conversation interface {
	convert.Sink
	Reply(ctx context.Context, text string) error
	NotifyUploading(ctx context.Context) error
	Fetch(ctx context.Context, file FileRef, dst string) error
}

type Converter interface {
	Convert(ctx context.Context, req convert.Request, sink convert.Sink) convert.Outcome
}

func Classify(msg Message) Kind {
	switch {
	case msg.Photo != nil:
		return KindPhoto
	case msg.Document != nil:
		if strings.HasPrefix(msg.Document.MIME, "image/") {
			return KindImageDocument
		}
		return KindUnsupportedDocument
	case strings.HasPrefix(msg.Text, "/"):
		return KindCommand
	case msg.Text != "":
		return KindText
	default:
		return KindUnsupported
	}
}

// commandName turns "/start@some_bot arg" into "/start".
func commandName(text string) string {
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

// imageSuffix picks the scratch file extension for an incoming image.
func imageSuffix(file FileRef, kind Kind) string {
	if kind == KindPhoto {
		return ".jpg"
	}
	if ext := filepath.Ext(file.FileName); ext != "" {
		return strings.ToLower(ext)
	}
	if exts, err := mime.ExtensionsByType(file.MIME); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}

type Dispatcher struct {
	converter   Converter
	maxFileSize int64
}

func NewDispatcher(converter Converter) *Dispatcher {
	return &Dispatcher{converter: converter}
}

func (d *Dispatcher) WithMaxFileSize(size int64) *Dispatcher {
	d.maxFileSize = size
	return d
}

// Dispatch answers one message. Errors only show up in the log, the user
// always gets either a document or a text reply.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, conv Conversation) {
	id := uuid.NewString()
	kind := Classify(msg)
	log := logger.Logger(d).WithField("request", id).WithField("kind", kind)

	reply := func(text string) {
		if text == "" {
			return
		}
		if err := conv.Reply(ctx, text); err != nil {
			log.WithError(err).Warn("Failed to send reply")
		}
	}

	var req convert.Request
	switch kind {
	case KindCommand:
		reply(commandReply(commandName(msg.Text)))
		return
	case KindUnsupportedDocument:
		log.WithField("mime", msg.Document.MIME).Info("Rejected document")
		reply(ReplyUnsupported)
		return
	case KindUnsupported:
		reply(ReplyHelp)
		return
	case KindText:
		req = convert.Request{ID: id, Kind: convert.TextSource, Text: msg.Text}
	case KindPhoto, KindImageDocument:
		file := msg.Photo
		if kind == KindImageDocument {
			file = msg.Document
		}
		if d.maxFileSize > 0 && file.Size > d.maxFileSize {
			log.WithField("size", file.Size).Info("Rejected large image")
			reply(ReplyTooLarge)
			return
		}

		ref := *file
		req = convert.Request{
			ID:          id,
			Kind:        convert.ImageSource,
			ImageSuffix: imageSuffix(ref, kind),
			Image: convert.SourceFunc(func(ctx context.Context, dst string) error {
				return conv.Fetch(ctx, ref, dst)
			}),
		}
	}

	if err := conv.NotifyUploading(ctx); err != nil {
		log.WithError(err).Debug("Failed to send chat action")
	}

	outcome := d.converter.Convert(ctx, req, conv)
	reply(outcomeReply(kind, outcome))
}
