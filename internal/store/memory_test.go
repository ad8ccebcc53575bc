package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMessage(t *testing.T, db *MemoryRepository, roomId, sender string, ts int64) Message {
	t.Helper()
	msg, err := db.CreateMessage(Message{
		MessageId: fmt.Sprintf("msg-%s-%d", roomId, ts),
		RoomId:    roomId,
		Sender:    sender,
		Content:   "hello",
		Timestamp: ts,
	})
	require.NoError(t, err)
	return msg
}

func TestUpsertUser(t *testing.T) {
	db := NewMemoryRepository()

	created, err := db.UpsertUser(UpsertUserParams{
		UserId:        "alice",
		UserType:      "student",
		PreferredName: "Alice",
		FirstName:     "Alice",
		LastName:      "Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", created.UserId)

	updated, err := db.UpsertUser(UpsertUserParams{
		UserId:        "alice",
		UserType:      "teacher",
		PreferredName: "Al",
		FirstName:     "Alice",
		LastName:      "Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher", updated.UserType, "expected fields to update on re-registration")
	assert.Equal(t, created.CreatedAt, updated.CreatedAt, "expected original creation time to survive")

	got, err := db.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "Al", got.PreferredName)
}

func TestGetUser_NotFound(t *testing.T) {
	db := NewMemoryRepository()
	_, err := db.GetUser("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRoom_Conflict(t *testing.T) {
	db := NewMemoryRepository()

	_, err := db.CreateRoom("room-1", []string{"alice", "bob"})
	require.NoError(t, err)

	_, err = db.CreateRoom("room-1", []string{"carol", "dave"})
	assert.ErrorIs(t, err, ErrRoomExists, "expected a conflict on a duplicate room id")

	_, err = db.CreateRoom("room-2", []string{"bob", "alice"})
	assert.ErrorIs(t, err, ErrRoomExists, "expected a conflict on a duplicate participant set")
}

func TestFindOrCreateRoomByParticipants(t *testing.T) {
	db := NewMemoryRepository()

	room, created, err := db.FindOrCreateRoomByParticipants("room-1", []string{"alice", "bob"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "room-1", room.RoomId)

	// same set in a different order resolves to the existing room
	again, created, err := db.FindOrCreateRoomByParticipants("room-2", []string{"bob", "alice"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "room-1", again.RoomId)
}

func TestFindOrCreateRoomByParticipants_Concurrent(t *testing.T) {
	db := NewMemoryRepository()
	participants := []string{"alice", "bob", "carol"}

	const n = 32
	rooms := make([]Room, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, _, err := db.FindOrCreateRoomByParticipants(fmt.Sprintf("candidate-%d", i), participants)
			if err != nil {
				t.Error("FindOrCreateRoomByParticipants:", err)
				return
			}
			rooms[i] = room
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, rooms[0].RoomId, rooms[i].RoomId,
			"expected every concurrent caller to resolve the same room")
	}

	found, err := db.ListRoomsForUser("alice")
	require.NoError(t, err)
	assert.Len(t, found, 1, "expected exactly one room for the participant set")
}

func TestGetMessages_Pagination(t *testing.T) {
	db := NewMemoryRepository()
	_, err := db.CreateRoom("room-1", []string{"alice", "bob"})
	require.NoError(t, err)

	for ts := int64(1); ts <= 45; ts++ {
		seedMessage(t, db, "room-1", "alice", ts)
	}

	page1, err := db.GetMessages("room-1", 1, 20)
	require.NoError(t, err)
	page2, err := db.GetMessages("room-1", 2, 20)
	require.NoError(t, err)
	page3, err := db.GetMessages("room-1", 3, 20)
	require.NoError(t, err)

	require.Len(t, page1, 20)
	require.Len(t, page2, 20)
	require.Len(t, page3, 5, "expected the final partial page")

	assert.Equal(t, int64(26), page1[0].Timestamp, "expected page 1 to hold the most recent messages")
	assert.Equal(t, int64(45), page1[19].Timestamp, "expected chronological order within the page")
	assert.Equal(t, int64(6), page2[0].Timestamp)
	assert.Equal(t, int64(25), page2[19].Timestamp, "expected page 2 to end where page 1 begins")
	assert.Equal(t, int64(1), page3[0].Timestamp)

	_, err = db.GetMessages("room-1", 4, 20)
	require.NoError(t, err, "expected an empty page beyond the history, not an error")
}

func TestGetMessages_TimestampTies(t *testing.T) {
	db := NewMemoryRepository()
	_, err := db.CreateRoom("room-1", []string{"alice", "bob"})
	require.NoError(t, err)

	first, err := db.CreateMessage(Message{MessageId: "m1", RoomId: "room-1", Sender: "alice", Content: "a", Timestamp: 1000})
	require.NoError(t, err)
	second, err := db.CreateMessage(Message{MessageId: "m2", RoomId: "room-1", Sender: "bob", Content: "b", Timestamp: 1000})
	require.NoError(t, err)

	msgs, err := db.GetMessages("room-1", 1, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.MessageId, msgs[0].MessageId, "expected insertion order to break timestamp ties")
	assert.Equal(t, second.MessageId, msgs[1].MessageId)
}

func TestMarkMessages(t *testing.T) {
	t.Run("mixed valid and unknown ids", func(t *testing.T) {
		db := NewMemoryRepository()
		_, err := db.CreateRoom("room-1", []string{"alice", "bob"})
		require.NoError(t, err)

		m1 := seedMessage(t, db, "room-1", "alice", 1000)
		m2 := seedMessage(t, db, "room-1", "alice", 2000)

		res, err := db.MarkMessages([]string{m1.MessageId, "bogus", m2.MessageId}, true, true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{m1.MessageId, m2.MessageId}, res.Updated)
		assert.Equal(t, []string{"bogus"}, res.NotFound, "expected unknown ids reported, not fatal")

		msgs, err := db.ListRoomMessages("room-1")
		require.NoError(t, err)
		for _, m := range msgs {
			assert.True(t, m.Received, "expected %s to be received", m.MessageId)
			assert.True(t, m.Read, "expected %s to be read", m.MessageId)
		}
	})

	t.Run("read implies received", func(t *testing.T) {
		db := NewMemoryRepository()
		_, err := db.CreateRoom("room-1", []string{"alice", "bob"})
		require.NoError(t, err)
		m1 := seedMessage(t, db, "room-1", "alice", 1000)

		_, err = db.MarkMessages([]string{m1.MessageId}, false, true)
		require.NoError(t, err)

		msgs, err := db.ListRoomMessages("room-1")
		require.NoError(t, err)
		assert.True(t, msgs[0].Received, "expected marking read to also mark received")
		assert.True(t, msgs[0].Read)
	})

	t.Run("flags never move backward", func(t *testing.T) {
		db := NewMemoryRepository()
		_, err := db.CreateRoom("room-1", []string{"alice", "bob"})
		require.NoError(t, err)
		m1 := seedMessage(t, db, "room-1", "alice", 1000)

		_, err = db.MarkMessages([]string{m1.MessageId}, true, true)
		require.NoError(t, err)
		_, err = db.MarkMessages([]string{m1.MessageId}, true, false)
		require.NoError(t, err)

		msgs, err := db.ListRoomMessages("room-1")
		require.NoError(t, err)
		assert.True(t, msgs[0].Read, "expected a received-only mark to leave read set")
	})
}

func TestLatestMessages(t *testing.T) {
	db := NewMemoryRepository()
	_, err := db.CreateRoom("room-1", []string{"alice", "bob"})
	require.NoError(t, err)
	_, err = db.CreateRoom("room-2", []string{"alice", "carol"})
	require.NoError(t, err)

	seedMessage(t, db, "room-1", "alice", 1000)
	newest := seedMessage(t, db, "room-1", "bob", 2000)

	latest, err := db.LatestMessages([]string{"room-1", "room-2"})
	require.NoError(t, err)
	require.Contains(t, latest, "room-1")
	assert.Equal(t, newest.MessageId, latest["room-1"].MessageId)
	assert.NotContains(t, latest, "room-2", "expected no entry for a room with no messages")

	// soft-deleted messages are skipped when annotating summaries
	db.messages[db.msgIndex[newest.MessageId]].Deleted = true
	latest, err = db.LatestMessages([]string{"room-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), latest["room-1"].Timestamp, "expected the newest non-deleted message")
}

func TestGetRoom_NotFound(t *testing.T) {
	db := NewMemoryRepository()
	_, err := db.GetRoom("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}
