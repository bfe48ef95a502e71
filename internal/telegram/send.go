package telegram

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/platform"
)

// SendMessage implements platform.Client.
func (c *Client) SendMessage(ctx context.Context, to platform.Entity, text string) error {
	_, raw, err := c.manager()
	if err != nil {
		return err
	}
	p, err := inputPeer(to)
	if err != nil {
		return err
	}

	if _, err := message.NewSender(raw).To(p).Text(ctx, text); err != nil {
		return c.wrap(ctx, err, "send message")
	}
	return nil
}

// SendFile implements platform.Client. The attachment is re-sent by
// reference, without downloading it.
func (c *Client) SendFile(ctx context.Context, to platform.Entity, media *platform.Media) error {
	_, raw, err := c.manager()
	if err != nil {
		return err
	}
	p, err := inputPeer(to)
	if err != nil {
		return err
	}
	input, err := inputMedia(media)
	if err != nil {
		return err
	}

	if _, err := message.NewSender(raw).To(p).Media(ctx, message.Media(input)); err != nil {
		return c.wrap(ctx, err, "send file")
	}
	c.log.Debug("Sent file",
		zap.Int64("to", to.ID),
		zap.String("mime", media.MimeType),
		zap.Int64("size", media.Size))
	return nil
}

func inputMedia(media *platform.Media) (tg.InputMediaClass, error) {
	if media == nil {
		return nil, errors.New("no media")
	}
	input, ok := media.Handle.(tg.InputMediaClass)
	if !ok || input == nil {
		return nil, errors.Errorf("unsupported media kind %d", media.Kind)
	}
	return input, nil
}
