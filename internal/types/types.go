package types

// User is the wire representation of a registered chat user. The live
// connection handle is tracked by the presence registry, not here.
type User struct {
	UserId            string `json:"userId"`
	UserType          string `json:"userType"`
	PreferredName     string `json:"preferredName"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	ProfilePictureUrl string `json:"profilePictureUrl,omitempty"`
}

// Message is the wire representation of a chat message. Timestamps are
// sender-supplied epoch values; ordering within a room is by timestamp with
// insertion order breaking ties.
type Message struct {
	MessageId    string `json:"messageId"`
	RoomId       string `json:"roomId"`
	Sender       string `json:"sender"`
	Content      string `json:"content"`
	ImageUrl     string `json:"imageUrl,omitempty"`
	ThumbnailUrl string `json:"thumbnailUrl,omitempty"`
	AudioUrl     string `json:"audioUrl,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	Received     bool   `json:"received"`
	Read         bool   `json:"read"`
	Deleted      bool   `json:"deleted"`
}

// RoomSummary is one entry of a user's personal room list. Participants
// omit the recipient, so the same room serializes differently per user.
type RoomSummary struct {
	RoomId        string   `json:"roomId"`
	Participants  []User   `json:"participants"`
	LatestMessage *Message `json:"latestMessage"`
}
