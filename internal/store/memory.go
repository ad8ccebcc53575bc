package store

import (
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It honors the
// same atomicity contracts as the Postgres implementation (upsert-by-key,
// unique participants key, batched flag updates) and backs the test suite.
type MemoryRepository struct {
	mu         sync.Mutex
	users      map[string]User
	rooms      map[string]Room
	roomsByKey map[string]string
	messages   []Message
	msgIndex   map[string]int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[string]User),
		rooms:      make(map[string]Room),
		roomsByKey: make(map[string]string),
		msgIndex:   make(map[string]int),
	}
}

func (m *MemoryRepository) Ping() error  { return nil }
func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) UpsertUser(params UpsertUserParams) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	u, ok := m.users[params.UserId]
	if !ok {
		u = User{UserId: params.UserId, CreatedAt: now}
	}

	u.UserType = params.UserType
	u.PreferredName = params.PreferredName
	u.FirstName = params.FirstName
	u.LastName = params.LastName
	u.ProfilePictureUrl = params.ProfilePictureUrl
	u.UpdatedAt = now
	m.users[params.UserId] = u

	return u, nil
}

func (m *MemoryRepository) GetUser(userId string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userId]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryRepository) GetUsers(userIds []string) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var users []User
	for _, id := range userIds {
		if u, ok := m.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (m *MemoryRepository) CreateRoom(roomId string, participants []string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ParticipantsKey(participants)
	if _, ok := m.rooms[roomId]; ok {
		return Room{}, ErrRoomExists
	}
	if _, ok := m.roomsByKey[key]; ok {
		return Room{}, ErrRoomExists
	}

	room := Room{
		RoomId:       roomId,
		Participants: append([]string(nil), participants...),
		CreatedAt:    time.Now().UTC(),
	}
	m.rooms[roomId] = room
	m.roomsByKey[key] = roomId

	return room, nil
}

func (m *MemoryRepository) FindOrCreateRoomByParticipants(roomId string, participants []string) (Room, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ParticipantsKey(participants)
	if id, ok := m.roomsByKey[key]; ok {
		return m.rooms[id], false, nil
	}

	room := Room{
		RoomId:       roomId,
		Participants: append([]string(nil), participants...),
		CreatedAt:    time.Now().UTC(),
	}
	m.rooms[roomId] = room
	m.roomsByKey[key] = roomId

	return room, true, nil
}

func (m *MemoryRepository) GetRoom(roomId string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomId]
	if !ok {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (m *MemoryRepository) ListRoomsForUser(userId string) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rooms []Room
	for _, room := range m.rooms {
		for _, p := range room.Participants {
			if p == userId {
				rooms = append(rooms, room)
				break
			}
		}
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomId < rooms[j].RoomId })
	return rooms, nil
}

func (m *MemoryRepository) CreateMessage(msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.Seq = int64(len(m.messages) + 1)
	msg.Received = false
	msg.Read = false
	msg.Deleted = false
	msg.CreatedAt = time.Now().UTC()

	m.msgIndex[msg.MessageId] = len(m.messages)
	m.messages = append(m.messages, msg)

	return msg, nil
}

func (m *MemoryRepository) GetMessages(roomId string, page, pageSize int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.roomMessages(roomId)

	// newest page first, each page returned in chronological order
	end := len(msgs) - (page-1)*pageSize
	if end <= 0 {
		return nil, nil
	}
	start := end - pageSize
	if start < 0 {
		start = 0
	}

	return append([]Message(nil), msgs[start:end]...), nil
}

func (m *MemoryRepository) ListRoomMessages(roomId string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.roomMessages(roomId), nil
}

func (m *MemoryRepository) MarkMessages(messageIds []string, received, read bool) (MarkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res MarkResult
	for _, id := range messageIds {
		idx, ok := m.msgIndex[id]
		if !ok {
			res.NotFound = append(res.NotFound, id)
			continue
		}

		// read implies received; neither flag ever moves backward
		m.messages[idx].Received = m.messages[idx].Received || received || read
		m.messages[idx].Read = m.messages[idx].Read || read
		res.Updated = append(res.Updated, id)
	}

	return res, nil
}

func (m *MemoryRepository) LatestMessages(roomIds []string) (map[string]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest := make(map[string]Message)
	for _, roomId := range roomIds {
		msgs := m.roomMessages(roomId)
		for i := len(msgs) - 1; i >= 0; i-- {
			if !msgs[i].Deleted {
				latest[roomId] = msgs[i]
				break
			}
		}
	}

	return latest, nil
}

// roomMessages returns the room's messages ordered by timestamp with
// insertion sequence breaking ties. Callers must hold the lock.
func (m *MemoryRepository) roomMessages(roomId string) []Message {
	var msgs []Message
	for _, msg := range m.messages {
		if msg.RoomId == roomId {
			msgs = append(msgs, msg)
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].Seq < msgs[j].Seq
	})

	return msgs
}
