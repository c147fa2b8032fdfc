package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/schidstorm/pdf-bot/pkg/convert"
	tele "gopkg.in/telebot.v4"
)

var pollRetryWait = time.Second

// UpdatePoller long-polls getUpdates and hands every failed poll to
// OnError, so a 409 from a second instance is never swallowed.
type UpdatePoller struct {
	Timeout        time.Duration
	AllowedUpdates []string
	OnError        func(error)

	lastUpdateID int
}

func (p *UpdatePoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		updates, err := p.getUpdates(b)
		if err != nil {
			if p.OnError != nil {
				p.OnError(err)
			}
			select {
			case <-stop:
				return
			case <-time.After(pollRetryWait):
			}
			continue
		}

		for _, update := range updates {
			p.lastUpdateID = update.ID
			select {
			case dest <- update:
			case <-stop:
				return
			}
		}
	}
}

func (p *UpdatePoller) getUpdates(b *tele.Bot) ([]tele.Update, error) {
	params := map[string]string{
		"offset":  strconv.Itoa(p.lastUpdateID + 1),
		"timeout": strconv.Itoa(int(p.Timeout / time.Second)),
	}
	if len(p.AllowedUpdates) > 0 {
		data, _ := json.Marshal(p.AllowedUpdates)
		params["allowed_updates"] = string(data)
	}

	data, err := b.Raw("getUpdates", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []tele.Update `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

type telegramConsumer struct {
	bot     *tele.Bot
	webhook bool
}

func (t *telegramConsumer) ClearSubscription() error {
	if t.webhook {
		// setWebhook replaces any earlier registration on its own
		return nil
	}
	return t.bot.RemoveWebhook()
}

func (t *telegramConsumer) Start() {
	t.bot.Start()
}

func (t *telegramConsumer) Stop() {
	t.bot.Stop()
}

type telegramConversation struct {
	bot *tele.Bot
	c   tele.Context
}

func (t telegramConversation) Reply(ctx context.Context, text string) error {
	return t.c.Send(text)
}

func (t telegramConversation) NotifyUploading(ctx context.Context) error {
	return t.c.Notify(tele.UploadingDocument)
}

func (t telegramConversation) Fetch(ctx context.Context, file FileRef, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.bot.Download(&tele.File{FileID: file.FileID}, dst)
}

func (t telegramConversation) Deliver(ctx context.Context, doc convert.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := tele.FromReader(bytes.NewReader(doc.Data))
	if doc.Path != "" {
		file = tele.FromDisk(doc.Path)
	}

	return t.c.Reply(&tele.Document{
		File:     file,
		FileName: doc.Name,
		MIME:     "application/pdf",
		Caption:  Caption(doc),
	})
}

func messageFromTelegram(m *tele.Message) Message {
	if m == nil {
		return Message{}
	}

	msg := Message{Text: m.Text}
	if m.Photo != nil {
		msg.Photo = &FileRef{
			FileID: m.Photo.FileID,
			MIME:   "image/jpeg",
			Size:   m.Photo.FileSize,
		}
	}
	if m.Document != nil {
		msg.Document = &FileRef{
			FileID:   m.Document.FileID,
			MIME:     m.Document.MIME,
			FileName: m.Document.FileName,
			Size:     m.Document.FileSize,
		}
	}
	return msg
}
