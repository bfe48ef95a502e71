package telegram

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/constant"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/platform"
)

const (
	dialogBatch = 100
	// channelIDBase is subtracted from channel identifiers in marked form.
	channelIDBase int64 = -1000000000000
)

// MarkedID converts a peer into the signed identifier shown to users:
// users keep their ID, basic groups are negated and channels are offset by
// -10^12.
func MarkedID(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return channelIDBase - p.ChannelID
	}
	return 0
}

// GetDialogs implements platform.Client.
func (c *Client) GetDialogs(ctx context.Context) ([]platform.Dialog, error) {
	manager, raw, err := c.manager()
	if err != nil {
		return nil, err
	}

	var out []platform.Dialog
	iter := query.GetDialogs(raw).BatchSize(dialogBatch).Iter()
	for iter.Next(ctx) {
		elem := iter.Value()
		if err := applyEntities(ctx, manager, elem.Entities); err != nil {
			c.log.Debug("Apply dialog entities", zap.Error(err))
		}
		if d, ok := dialogFromElem(elem); ok {
			out = append(out, d)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, c.wrap(ctx, err, "get dialogs")
	}

	c.log.Debug("Fetched dialogs", zap.Int("count", len(out)))
	return out, nil
}

func dialogFromElem(elem dialogs.Elem) (platform.Dialog, bool) {
	dlg, ok := elem.Dialog.(*tg.Dialog)
	if !ok {
		return platform.Dialog{}, false
	}

	d := platform.Dialog{
		ID:          MarkedID(dlg.Peer),
		UnreadCount: dlg.UnreadCount,
	}
	d.Title, d.Kind = describePeer(dlg.Peer, elem.Entities)
	return d, true
}

func describePeer(p tg.PeerClass, ents peer.Entities) (string, platform.ChatKind) {
	switch p := p.(type) {
	case *tg.PeerUser:
		title := ""
		if u, ok := ents.User(p.UserID); ok {
			title = userName(u)
		}
		return title, platform.ChatPrivate
	case *tg.PeerChat:
		title := ""
		if ch, ok := ents.Chat(p.ChatID); ok {
			title = ch.Title
		}
		return title, platform.ChatGroup
	case *tg.PeerChannel:
		title := ""
		if ch, ok := ents.Channel(p.ChannelID); ok {
			title = ch.Title
		}
		return title, platform.ChatChannel
	}
	return "", platform.ChatUnknown
}

func userName(u *tg.User) string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}

func applyEntities(ctx context.Context, m *peers.Manager, ents peer.Entities) error {
	users := make([]tg.UserClass, 0, len(ents.Users()))
	for _, u := range ents.Users() {
		users = append(users, u)
	}
	chats := make([]tg.ChatClass, 0, len(ents.Chats())+len(ents.Channels()))
	for _, ch := range ents.Chats() {
		chats = append(chats, ch)
	}
	for _, ch := range ents.Channels() {
		chats = append(chats, ch)
	}
	return m.Apply(ctx, users, chats)
}

// GetEntity implements platform.Client. Peers the session has not seen yet
// are looked up by walking the dialog list once.
func (c *Client) GetEntity(ctx context.Context, id int64) (platform.Entity, error) {
	manager, _, err := c.manager()
	if err != nil {
		return platform.Entity{}, err
	}

	p, err := manager.ResolveTDLibID(ctx, constant.TDLibPeerID(id))
	if err != nil {
		c.log.Debug("Peer not cached, loading dialogs", zap.Int64("id", id), zap.Error(err))
		if _, derr := c.GetDialogs(ctx); derr != nil {
			return platform.Entity{}, derr
		}
		p, err = manager.ResolveTDLibID(ctx, constant.TDLibPeerID(id))
	}
	if err != nil {
		return platform.Entity{}, c.wrap(ctx, err, "resolve peer")
	}
	return entityFromPeer(id, p), nil
}

func entityFromPeer(id int64, p peers.Peer) platform.Entity {
	e := platform.Entity{
		ID:     id,
		Title:  p.VisibleName(),
		Kind:   platform.ChatUnknown,
		Handle: p.InputPeer(),
	}
	switch p.(type) {
	case peers.User:
		e.Kind = platform.ChatPrivate
	case peers.Chat:
		e.Kind = platform.ChatGroup
	case peers.Channel:
		e.Kind = platform.ChatChannel
	}
	return e
}

func inputPeer(e platform.Entity) (tg.InputPeerClass, error) {
	p, ok := e.Handle.(tg.InputPeerClass)
	if !ok || p == nil {
		return nil, errors.Errorf("entity %d has no input peer", e.ID)
	}
	return p, nil
}
