package server

import (
	"errors"

	"github.com/aspirewithalina/chatserver/internal/store"
)

// handleReadMessages advances the delivery flags on a batch of messages and
// re-fans-out consistent views: the room's refreshed message list goes to
// every connected participant other than the reader, and every connected
// participant gets its own recomputed room-summary list. Flag transitions
// are monotonic; a message already read stays read.
func (cs *ChatServer) handleReadMessages(msg *ClientMessage) {
	p := msg.ReadMessages
	switch {
	case p.RoomId == "":
		msg.client.queueMessage(ErrReadMessages(msg.Id, "Missing roomId"))
		return
	case len(p.MessageIds) == 0:
		msg.client.queueMessage(ErrReadMessages(msg.Id, "Missing messageIds"))
		return
	}

	res, err := cs.db.MarkMessages(p.MessageIds, true, true)
	if err != nil {
		cs.log.Println("MarkMessages:", err)
		msg.client.queueMessage(ErrReadMessages(msg.Id, "failed to update messages"))
		return
	}
	if len(res.NotFound) > 0 {
		cs.log.Printf("readMessages: %d unknown message ids in room %q: %v",
			len(res.NotFound), p.RoomId, res.NotFound)
	}

	cs.stats.Incr(statReadReceiptBatches)

	room, err := cs.db.GetRoom(p.RoomId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			msg.client.queueMessage(ErrReadMessages(msg.Id, "room not found"))
		} else {
			cs.log.Println("GetRoom:", err)
			msg.client.queueMessage(ErrReadMessages(msg.Id, "failed to load room"))
		}
		return
	}

	msgs, err := cs.db.ListRoomMessages(room.RoomId)
	if err != nil {
		cs.log.Println("ListRoomMessages:", err)
		msg.client.queueMessage(ErrReadMessages(msg.Id, "failed to load messages"))
		return
	}

	participants, err := cs.hydrateParticipants(room.Participants, "")
	if err != nil {
		cs.log.Println("hydrateParticipants:", err)
		msg.client.queueMessage(ErrReadMessages(msg.Id, "failed to load participants"))
		return
	}

	refreshed := MessagesListMsg(0, room.RoomId, participants, wireMessages(msgs))
	for _, identity := range room.Participants {
		c, ok := cs.presence.Lookup(identity)
		if !ok || c == msg.client {
			continue
		}
		c.queueMessage(refreshed)
	}

	// summaries differ per recipient, so each connected participant gets
	// its own freshly computed list, the reader included
	for _, identity := range room.Participants {
		c, ok := cs.presence.Lookup(identity)
		if !ok {
			continue
		}

		summaries, err := cs.roomSummaries(identity)
		if err != nil {
			cs.log.Printf("roomSummaries for %q: %v", identity, err)
			continue
		}

		c.queueMessage(RoomsListMsg(0, summaries))
	}
}
