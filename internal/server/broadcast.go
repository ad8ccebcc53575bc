package server

import (
	"github.com/aspirewithalina/chatserver/internal/store"
)

// broadcastToRoom delivers msg to every currently connected participant of
// the room, skipping excludeIdentity when non-empty. The participant set is
// snapshotted up front; a participant disconnecting mid-broadcast loses only
// its own delivery. Offline participants are skipped without retry or
// queuing.
func (cs *ChatServer) broadcastToRoom(room store.Room, msg *ServerMessage, excludeIdentity string) {
	participants := append([]string(nil), room.Participants...)

	for _, identity := range participants {
		if identity == excludeIdentity {
			continue
		}

		c, ok := cs.presence.Lookup(identity)
		if !ok {
			continue
		}

		if !c.queueMessage(msg) {
			cs.log.Printf("dropped %s delivery to %q: send buffer full", msg.EventName(), identity)
		}
	}
}

// sendToParticipant delivers msg to a single identity. Offline is a no-op,
// reported to the caller, not an error.
func (cs *ChatServer) sendToParticipant(identity string, msg *ServerMessage) bool {
	c, ok := cs.presence.Lookup(identity)
	if !ok {
		return false
	}

	return c.queueMessage(msg)
}
