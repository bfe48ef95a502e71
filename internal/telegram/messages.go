package telegram

import (
	"context"
	"time"

	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/messages"
	"github.com/gotd/td/tg"

	"github.com/hkuds/tgcopy/internal/platform"
)

const historyBatch = 100

// IterMessages implements platform.Client. Messages come newest first.
func (c *Client) IterMessages(ctx context.Context, from platform.Entity) platform.MessageIter {
	_, raw, err := c.manager()
	if err != nil {
		return &historyIter{err: err}
	}
	p, err := inputPeer(from)
	if err != nil {
		return &historyIter{err: err}
	}
	return &historyIter{
		c:    c,
		iter: query.Messages(raw).GetHistory(p).BatchSize(historyBatch).Iter(),
	}
}

type historyIter struct {
	c    *Client
	iter *messages.Iterator
	cur  platform.Message
	err  error
}

func (it *historyIter) Next(ctx context.Context) bool {
	if it.err != nil || it.iter == nil {
		return false
	}
	for it.iter.Next(ctx) {
		if msg, ok := convertMessage(it.iter.Value().Msg); ok {
			it.cur = msg
			return true
		}
	}
	if err := it.iter.Err(); err != nil {
		it.err = it.c.wrap(ctx, err, "iterate history")
	}
	return false
}

func (it *historyIter) Value() platform.Message { return it.cur }

func (it *historyIter) Err() error { return it.err }

// convertMessage maps a history element to a platform.Message. Service
// messages yield an empty message so they are counted but never copied.
func convertMessage(m tg.NotEmptyMessage) (platform.Message, bool) {
	switch m := m.(type) {
	case *tg.Message:
		return platform.Message{
			ID:    m.ID,
			Date:  time.Unix(int64(m.Date), 0),
			Text:  m.Message,
			Media: convertMedia(m.Media),
		}, true
	case *tg.MessageService:
		return platform.Message{ID: m.ID, Date: time.Unix(int64(m.Date), 0)}, true
	}
	return platform.Message{}, false
}

// convertMedia returns nil for messages without an attachment. Link
// previews are part of the text and are not attachments.
func convertMedia(media tg.MessageMediaClass) *platform.Media {
	switch media := media.(type) {
	case *tg.MessageMediaPhoto:
		if media.Photo == nil {
			return nil
		}
		p, ok := media.Photo.AsNotEmpty()
		if !ok {
			return nil
		}
		return &platform.Media{
			Kind:   platform.MediaPhoto,
			Handle: &tg.InputMediaPhoto{ID: p.AsInput()},
		}
	case *tg.MessageMediaDocument:
		if media.Document == nil {
			return nil
		}
		d, ok := media.Document.AsNotEmpty()
		if !ok {
			return nil
		}
		return &platform.Media{
			Kind:     platform.MediaDocument,
			MimeType: d.MimeType,
			FileName: documentName(d),
			Size:     d.Size,
			Handle:   &tg.InputMediaDocument{ID: d.AsInput()},
		}
	case nil, *tg.MessageMediaEmpty, *tg.MessageMediaWebPage:
		return nil
	}
	return &platform.Media{Kind: platform.MediaOther}
}

func documentName(d *tg.Document) string {
	for _, attr := range d.Attributes {
		if f, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return f.FileName
		}
	}
	return ""
}
