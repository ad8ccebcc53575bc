package server

import (
	"errors"

	"github.com/google/uuid"

	"github.com/aspirewithalina/chatserver/internal/store"
	"github.com/aspirewithalina/chatserver/internal/types"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// handleRegister creates or updates the user record and attaches this
// connection as the identity's live handle. The upsert is atomic per
// identity at the store, so concurrent registrations never create duplicate
// records; the presence attach is last-write-wins.
func (cs *ChatServer) handleRegister(msg *ClientMessage) {
	p := msg.Register
	if errMsg, ok := requiredRegisterParams(p); !ok {
		msg.client.queueMessage(ErrRegister(msg.Id, errMsg))
		return
	}

	user, err := cs.db.UpsertUser(store.UpsertUserParams{
		UserId:            p.UserId,
		UserType:          p.UserType,
		PreferredName:     p.PreferredName,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		ProfilePictureUrl: p.ProfilePictureUrl,
	})
	if err != nil {
		cs.log.Println("UpsertUser:", err)
		msg.client.queueMessage(ErrRegister(msg.Id, "failed to register user"))
		return
	}

	msg.client.identity = p.UserId
	cs.presence.Register(p.UserId, msg.client)

	msg.client.queueMessage(UserRegisteredMsg(msg.Id, user.UserId))
}

func requiredRegisterParams(p *RegisterParams) (string, bool) {
	switch {
	case p.UserId == "":
		return "Missing userId", false
	case p.UserType == "":
		return "Missing userType", false
	case p.PreferredName == "":
		return "Missing preferredName", false
	case p.FirstName == "":
		return "Missing firstName", false
	case p.LastName == "":
		return "Missing lastName", false
	}
	return "", true
}

func (cs *ChatServer) handleListRooms(msg *ClientMessage) {
	p := msg.ListRooms
	if p.UserId == "" {
		msg.client.queueMessage(ErrListRooms(msg.Id, "Missing userId"))
		return
	}

	summaries, err := cs.roomSummaries(p.UserId)
	if err != nil {
		cs.log.Println("roomSummaries:", err)
		msg.client.queueMessage(ErrListRooms(msg.Id, "failed to list rooms"))
		return
	}

	msg.client.queueMessage(RoomsListMsg(msg.Id, summaries))
}

func (cs *ChatServer) handleListMessages(msg *ClientMessage) {
	p := msg.ListMessages
	if p.RoomId == "" {
		msg.client.queueMessage(ErrListMessages(msg.Id, "Missing roomId"))
		return
	}

	room, err := cs.db.GetRoom(p.RoomId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			msg.client.queueMessage(ErrListMessages(msg.Id, "room not found"))
		} else {
			cs.log.Println("GetRoom:", err)
			msg.client.queueMessage(ErrListMessages(msg.Id, "failed to list messages"))
		}
		return
	}

	page, pageSize := p.Page, p.PageSize
	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	msgs, err := cs.db.GetMessages(room.RoomId, page, pageSize)
	if err != nil {
		cs.log.Println("GetMessages:", err)
		msg.client.queueMessage(ErrListMessages(msg.Id, "failed to list messages"))
		return
	}

	participants, err := cs.hydrateParticipants(room.Participants, "")
	if err != nil {
		cs.log.Println("hydrateParticipants:", err)
		msg.client.queueMessage(ErrListMessages(msg.Id, "failed to list messages"))
		return
	}

	msg.client.queueMessage(MessagesListMsg(msg.Id, room.RoomId, participants, wireMessages(msgs)))
}

func (cs *ChatServer) handleSendMessage(msg *ClientMessage) {
	p := msg.SendMessage
	switch {
	case p.RoomId == "":
		msg.client.queueMessage(ErrSendMessage(msg.Id, "Missing roomId"))
		return
	case p.Sender == "":
		msg.client.queueMessage(ErrSendMessage(msg.Id, "Missing sender"))
		return
	case p.Content == "" && p.ImageUrl == "" && p.AudioUrl == "":
		msg.client.queueMessage(ErrSendMessage(msg.Id, "Missing content"))
		return
	}

	room, err := cs.db.GetRoom(p.RoomId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			msg.client.queueMessage(ErrSendMessage(msg.Id, "room not found"))
		} else {
			cs.log.Println("GetRoom:", err)
			msg.client.queueMessage(ErrSendMessage(msg.Id, "failed to send message"))
		}
		return
	}

	saved, err := cs.db.CreateMessage(store.Message{
		MessageId:    uuid.NewString(),
		RoomId:       room.RoomId,
		Sender:       p.Sender,
		Content:      p.Content,
		ImageUrl:     p.ImageUrl,
		ThumbnailUrl: p.ThumbnailUrl,
		AudioUrl:     p.AudioUrl,
		Timestamp:    p.Timestamp,
	})
	if err != nil {
		cs.log.Println("CreateMessage:", err)
		msg.client.queueMessage(ErrSendMessage(msg.Id, "failed to send message"))
		return
	}

	cs.stats.Incr(statMessagesSent)

	// every connected participant gets the push; the sender's copy is its
	// delivery confirmation
	cs.broadcastToRoom(room, NewMessageMsg(msg.Id, wireMessage(saved)), "")
}

// handleCreateRoom resolves the canonical room for the participant set (or
// creates one under a caller-supplied id) and appends the opening message.
func (cs *ChatServer) handleCreateRoom(msg *ClientMessage) {
	p := msg.CreateRoom
	switch {
	case p.Sender == "":
		msg.client.queueMessage(ErrCreateRoom(msg.Id, "Missing sender", p))
		return
	case len(p.Participants) == 0:
		msg.client.queueMessage(ErrCreateRoom(msg.Id, "Missing participants", p))
		return
	case p.Content == "" && p.ImageUrl == "" && p.AudioUrl == "":
		msg.client.queueMessage(ErrCreateRoom(msg.Id, "Missing content", p))
		return
	}

	identities, err := cs.resolveParticipants(p.Sender, p.Participants)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			msg.client.queueMessage(ErrCreateRoom(msg.Id, "sender is not a registered user", p))
		} else {
			cs.log.Println("resolveParticipants:", err)
			msg.client.queueMessage(ErrCreateRoom(msg.Id, "failed to create room", p))
		}
		return
	}

	var room store.Room
	if p.RoomId != "" {
		room, err = cs.db.CreateRoom(p.RoomId, identities)
		if err != nil {
			if errors.Is(err, store.ErrRoomExists) {
				msg.client.queueMessage(ErrCreateRoom(msg.Id, "room already exists", p))
			} else {
				cs.log.Println("CreateRoom:", err)
				msg.client.queueMessage(ErrCreateRoom(msg.Id, "failed to create room", p))
			}
			return
		}
	} else {
		rid, err := cs.generateRoomId()
		if err != nil {
			cs.log.Println("generateRoomId:", err)
			msg.client.queueMessage(ErrCreateRoom(msg.Id, "failed to create room", p))
			return
		}

		room, _, err = cs.db.FindOrCreateRoomByParticipants(rid, identities)
		if err != nil {
			cs.log.Println("FindOrCreateRoomByParticipants:", err)
			msg.client.queueMessage(ErrCreateRoom(msg.Id, "failed to create room", p))
			return
		}
	}

	saved, err := cs.db.CreateMessage(store.Message{
		MessageId:    uuid.NewString(),
		RoomId:       room.RoomId,
		Sender:       p.Sender,
		Content:      p.Content,
		ImageUrl:     p.ImageUrl,
		ThumbnailUrl: p.ThumbnailUrl,
		AudioUrl:     p.AudioUrl,
		Timestamp:    p.Timestamp,
	})
	if err != nil {
		cs.log.Println("CreateMessage:", err)
		msg.client.queueMessage(ErrCreateRoom(msg.Id, "failed to create room", p))
		return
	}

	cs.stats.Incr(statMessagesSent)

	msgs, err := cs.db.ListRoomMessages(room.RoomId)
	if err != nil {
		cs.log.Println("ListRoomMessages:", err)
		msgs = []store.Message{saved}
	}

	participants, err := cs.hydrateParticipants(room.Participants, "")
	if err != nil {
		cs.log.Println("hydrateParticipants:", err)
		msg.client.queueMessage(ErrCreateRoom(msg.Id, "failed to create room", p))
		return
	}

	msg.client.queueMessage(RoomCreatedMsg(msg.Id, room.RoomId, participants, wireMessages(msgs)))
	cs.broadcastToRoom(room, NewMessageMsg(0, wireMessage(saved)), p.Sender)
}

// resolveParticipants returns the distinct identity set for a new room:
// the sender plus every participant that resolves to a registered user.
// Unresolved participants are dropped with a warning; an unresolved sender
// is ErrNotFound.
func (cs *ChatServer) resolveParticipants(sender string, participants []string) ([]string, error) {
	candidates := append([]string{sender}, participants...)
	users, err := cs.db.GetUsers(candidates)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(users))
	for _, u := range users {
		known[u.UserId] = struct{}{}
	}

	if _, ok := known[sender]; !ok {
		return nil, store.ErrNotFound
	}

	seen := make(map[string]struct{}, len(candidates))
	identities := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := known[id]; !ok {
			cs.log.Printf("dropping unknown participant %q", id)
			continue
		}
		identities = append(identities, id)
	}

	return identities, nil
}

// roomSummaries assembles one user's personal room list: every room they
// belong to, annotated with its latest non-deleted message. Counterpart
// details are resolved with one batched lookup across all rooms rather than
// one store round trip per room.
func (cs *ChatServer) roomSummaries(userId string) ([]types.RoomSummary, error) {
	rooms, err := cs.db.ListRoomsForUser(userId)
	if err != nil {
		return nil, err
	}

	roomIds := make([]string, len(rooms))
	distinct := make(map[string]struct{})
	for i, room := range rooms {
		roomIds[i] = room.RoomId
		for _, id := range room.Participants {
			if id != userId {
				distinct[id] = struct{}{}
			}
		}
	}

	latest, err := cs.db.LatestMessages(roomIds)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(distinct))
	for id := range distinct {
		ids = append(ids, id)
	}
	users, err := cs.db.GetUsers(ids)
	if err != nil {
		return nil, err
	}

	userMap := make(map[string]types.User, len(users))
	for _, u := range users {
		userMap[u.UserId] = wireUser(u)
	}

	summaries := make([]types.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		participants := make([]types.User, 0, len(room.Participants))
		for _, id := range room.Participants {
			if id == userId {
				continue
			}
			if u, ok := userMap[id]; ok {
				participants = append(participants, u)
			}
		}

		var latestMessage *types.Message
		if m, ok := latest[room.RoomId]; ok {
			wm := wireMessage(m)
			latestMessage = &wm
		}

		summaries = append(summaries, types.RoomSummary{
			RoomId:        room.RoomId,
			Participants:  participants,
			LatestMessage: latestMessage,
		})
	}

	return summaries, nil
}

// hydrateParticipants resolves identities to user records with one batched
// lookup, optionally omitting one identity.
func (cs *ChatServer) hydrateParticipants(identities []string, exclude string) ([]types.User, error) {
	ids := make([]string, 0, len(identities))
	for _, id := range identities {
		if id != exclude {
			ids = append(ids, id)
		}
	}

	users, err := cs.db.GetUsers(ids)
	if err != nil {
		return nil, err
	}

	participants := make([]types.User, 0, len(users))
	for _, u := range users {
		participants = append(participants, wireUser(u))
	}

	return participants, nil
}

func wireUser(u store.User) types.User {
	return types.User{
		UserId:            u.UserId,
		UserType:          u.UserType,
		PreferredName:     u.PreferredName,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		ProfilePictureUrl: u.ProfilePictureUrl,
	}
}

func wireMessage(m store.Message) types.Message {
	return types.Message{
		MessageId:    m.MessageId,
		RoomId:       m.RoomId,
		Sender:       m.Sender,
		Content:      m.Content,
		ImageUrl:     m.ImageUrl,
		ThumbnailUrl: m.ThumbnailUrl,
		AudioUrl:     m.AudioUrl,
		Timestamp:    m.Timestamp,
		Received:     m.Received,
		Read:         m.Read,
		Deleted:      m.Deleted,
	}
}

func wireMessages(msgs []store.Message) []types.Message {
	wire := make([]types.Message, len(msgs))
	for i, m := range msgs {
		wire[i] = wireMessage(m)
	}
	return wire
}
