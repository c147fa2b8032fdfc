package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/schidstorm/pdf-bot/pkg/convert"
	"github.com/schidstorm/pdf-bot/pkg/ocr"
	"github.com/schidstorm/pdf-bot/pkg/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverter struct {
	outcome  convert.Outcome
	fetch    bool
	requests []convert.Request
}

func (f *fakeConverter) Convert(ctx context.Context, req convert.Request, sink convert.Sink) convert.Outcome {
	f.requests = append(f.requests, req)
	if f.fetch && req.Image != nil {
		dst := filepath.Join(os.TempDir(), "pdf-bot-dispatch-test"+req.ImageSuffix)
		defer os.Remove(dst)
		if err := req.Image.Fetch(ctx, dst); err != nil {
			return convert.Outcome{Kind: convert.Failure, Reason: errors.Join(convert.ErrFetch, err)}
		}
	}
	if f.outcome.Kind == convert.Success && f.outcome.Document != nil {
		if err := sink.Deliver(ctx, *f.outcome.Document); err != nil {
			return convert.Outcome{Kind: convert.Failure, Reason: err}
		}
	}
	return f.outcome
}

type fakeConversation struct {
	mutex     sync.Mutex
	replies   []string
	documents []convert.Document
	fetched   []FileRef
	notified  int
}

func (f *fakeConversation) Reply(ctx context.Context, text string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeConversation) NotifyUploading(ctx context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.notified++
	return nil
}

func (f *fakeConversation) Fetch(ctx context.Context, file FileRef, dst string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.fetched = append(f.fetched, file)
	return os.WriteFile(dst, []byte("image"), 0o600)
}

func (f *fakeConversation) Deliver(ctx context.Context, doc convert.Document) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.documents = append(f.documents, doc)
	return nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want Kind
	}{
		{"photo", Message{Photo: &FileRef{FileID: "p"}}, KindPhoto},
		{"png document", Message{Document: &FileRef{MIME: "image/png"}}, KindImageDocument},
		{"zip document", Message{Document: &FileRef{MIME: "application/zip"}}, KindUnsupportedDocument},
		{"command", Message{Text: "/start"}, KindCommand},
		{"text", Message{Text: "Привіт"}, KindText},
		{"sticker", Message{}, KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.msg))
		})
	}
}

func TestCommands(t *testing.T) {
	tests := map[string]string{
		"/start":            ReplyGreeting,
		"/help":             ReplyGreeting,
		"/start@pdf_bot go": ReplyGreeting,
		"/unknown":          ReplyHelp,
	}

	for text, want := range tests {
		conv := &fakeConversation{}
		converter := &fakeConverter{}
		NewDispatcher(converter).Dispatch(context.Background(), Message{Text: text}, conv)

		assert.Equal(t, []string{want}, conv.replies, text)
		assert.Empty(t, converter.requests)
	}
}

func TestDispatchText(t *testing.T) {
	doc := &convert.Document{Name: "text.pdf", Data: []byte("%PDF")}
	converter := &fakeConverter{outcome: convert.Outcome{Kind: convert.Success, Document: doc}}
	conv := &fakeConversation{}

	NewDispatcher(converter).Dispatch(context.Background(), Message{Text: "Привіт, світ!"}, conv)

	require.Len(t, converter.requests, 1)
	req := converter.requests[0]
	assert.Equal(t, convert.TextSource, req.Kind)
	assert.Equal(t, "Привіт, світ!", req.Text)
	assert.NotEmpty(t, req.ID)

	assert.Len(t, conv.documents, 1)
	assert.Empty(t, conv.replies)
	assert.Equal(t, 1, conv.notified)
}

func TestDispatchImageDocumentFetchesFile(t *testing.T) {
	converter := &fakeConverter{fetch: true, outcome: convert.Outcome{Kind: convert.EmptyResult}}
	conv := &fakeConversation{}
	file := &FileRef{FileID: "abc", MIME: "image/png", FileName: "Scan.PNG", Size: 10}

	NewDispatcher(converter).Dispatch(context.Background(), Message{Document: file}, conv)

	require.Len(t, converter.requests, 1)
	assert.Equal(t, convert.ImageSource, converter.requests[0].Kind)
	assert.Equal(t, ".png", converter.requests[0].ImageSuffix)
	assert.Equal(t, []FileRef{*file}, conv.fetched)
	assert.Equal(t, []string{ReplyNoTextFound}, conv.replies)
}

func TestDispatchRejectsLargeImages(t *testing.T) {
	converter := &fakeConverter{}
	conv := &fakeConversation{}

	NewDispatcher(converter).WithMaxFileSize(100).
		Dispatch(context.Background(), Message{Photo: &FileRef{FileID: "p", Size: 101}}, conv)

	assert.Empty(t, converter.requests)
	assert.Equal(t, []string{ReplyTooLarge}, conv.replies)
}

func TestDispatchUnsupportedDocument(t *testing.T) {
	converter := &fakeConverter{}
	conv := &fakeConversation{}

	NewDispatcher(converter).Dispatch(context.Background(), Message{Document: &FileRef{MIME: "application/zip"}}, conv)

	assert.Empty(t, converter.requests)
	assert.Equal(t, []string{ReplyUnsupported}, conv.replies)
}

func TestOutcomeReplies(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		outcome convert.Outcome
		want    string
	}{
		{"success", KindPhoto, convert.Outcome{Kind: convert.Success}, ""},
		{"no text on image", KindPhoto, convert.Outcome{Kind: convert.EmptyResult}, ReplyNoTextFound},
		{"empty text", KindText, convert.Outcome{Kind: convert.EmptyResult}, ReplyEmptyText},
		{"bad image", KindImageDocument, convert.Outcome{Kind: convert.Failure, Reason: errors.Join(ocr.ErrDecode, errors.New("png: invalid format"))}, ReplyBadImage},
		{"nothing printable", KindText, convert.Outcome{Kind: convert.Failure, Reason: convert.ErrNothingPrintable}, ReplyNotPrintable},
		{"engine", KindPhoto, convert.Outcome{Kind: convert.Failure, Reason: ocr.ErrEngine}, ReplyFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeReply(tt.kind, tt.outcome))
		})
	}
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "", Caption(convert.Document{Step: sanitize.StepUnchanged}))
	assert.Equal(t, CaptionTranslit, Caption(convert.Document{Step: sanitize.StepTransliterated}))
	assert.Equal(t, CaptionStripped, Caption(convert.Document{Step: sanitize.StepStripped}))
}

func TestImageSuffix(t *testing.T) {
	assert.Equal(t, ".jpg", imageSuffix(FileRef{}, KindPhoto))
	assert.Equal(t, ".tiff", imageSuffix(FileRef{FileName: "a.TIFF"}, KindImageDocument))
	assert.Equal(t, ".img", imageSuffix(FileRef{MIME: "image/x-unknown-thing"}, KindImageDocument))
}
