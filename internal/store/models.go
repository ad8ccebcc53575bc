package store

import "time"

type User struct {
	UserId            string
	UserType          string
	PreferredName     string
	FirstName         string
	LastName          string
	ProfilePictureUrl string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Room struct {
	RoomId       string
	Participants []string
	CreatedAt    time.Time
}

// Message is the canonical persisted record. Seq is the insertion sequence
// assigned by the store and breaks ordering ties between equal timestamps.
type Message struct {
	MessageId    string
	RoomId       string
	Sender       string
	Content      string
	ImageUrl     string
	ThumbnailUrl string
	AudioUrl     string
	Timestamp    int64
	Seq          int64
	Received     bool
	Read         bool
	Deleted      bool
	CreatedAt    time.Time
}
