package store

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a user, room or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomExists is returned when a caller-supplied room id collides
	// with an existing room.
	ErrRoomExists = errors.New("room already exists")
)

type UpsertUserParams struct {
	UserId            string
	UserType          string
	PreferredName     string
	FirstName         string
	LastName          string
	ProfilePictureUrl string
}

// MarkResult reports the outcome of a batched flag update. NotFound entries
// are diagnostic only; the rest of the batch still applies.
type MarkResult struct {
	Updated  []string
	NotFound []string
}

type Repository interface {
	Ping() error
	UpsertUser(params UpsertUserParams) (User, error)
	GetUser(userId string) (User, error)
	GetUsers(userIds []string) ([]User, error)
	CreateRoom(roomId string, participants []string) (Room, error)
	FindOrCreateRoomByParticipants(roomId string, participants []string) (Room, bool, error)
	GetRoom(roomId string) (Room, error)
	ListRoomsForUser(userId string) ([]Room, error)
	CreateMessage(msg Message) (Message, error)
	GetMessages(roomId string, page, pageSize int) ([]Message, error)
	ListRoomMessages(roomId string) ([]Message, error)
	MarkMessages(messageIds []string, received, read bool) (MarkResult, error)
	LatestMessages(roomIds []string) (map[string]Message, error)
	Close() error
}

// ParticipantsKey derives the canonical key for a participant identity set:
// distinct identities, sorted, joined by '|'. Two sets name the same room
// exactly when their keys are equal, regardless of order or duplicates.
func ParticipantsKey(participants []string) string {
	distinct := make([]string, 0, len(participants))
	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		distinct = append(distinct, p)
	}

	sort.Strings(distinct)
	return strings.Join(distinct, "|")
}
