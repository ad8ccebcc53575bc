package server

import (
	"encoding/json"
	"time"

	"github.com/aspirewithalina/chatserver/internal/types"
)

// ClientMessage is the inbound envelope. Exactly one event field is set;
// the JSON key doubles as the event name. Id, when supplied, is echoed in
// the direct response so callers can correlate request and reply.
type ClientMessage struct {
	Id           int                 `json:"id,omitempty"`
	Register     *RegisterParams     `json:"register,omitempty"`
	ListRooms    *ListRoomsParams    `json:"listRooms,omitempty"`
	ListMessages *ListMessagesParams `json:"listMessages,omitempty"`
	SendMessage  *SendMessageParams  `json:"sendMessage,omitempty"`
	ReadMessages *ReadMessagesParams `json:"readMessages,omitempty"`
	CreateRoom   *CreateRoomParams   `json:"createRoom,omitempty"`
	CallOffer    *CallOfferParams    `json:"callOffer,omitempty"`
	CallAnswer   *CallAnswerParams   `json:"callAnswer,omitempty"`
	IceCandidate *IceCandidateParams `json:"iceCandidate,omitempty"`
	client       *Client
}

type RegisterParams struct {
	UserId            string `json:"userId"`
	UserType          string `json:"userType"`
	PreferredName     string `json:"preferredName"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	ProfilePictureUrl string `json:"profilePictureUrl,omitempty"`
}

type ListRoomsParams struct {
	UserId string `json:"userId"`
}

type ListMessagesParams struct {
	RoomId   string `json:"roomId"`
	UserId   string `json:"userId"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
}

type SendMessageParams struct {
	RoomId       string `json:"roomId"`
	Sender       string `json:"sender"`
	Content      string `json:"content"`
	ImageUrl     string `json:"imageUrl,omitempty"`
	ThumbnailUrl string `json:"thumbnailUrl,omitempty"`
	AudioUrl     string `json:"audioUrl,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

type ReadMessagesParams struct {
	RoomId     string   `json:"roomId"`
	MessageIds []string `json:"messageIds"`
}

type CreateRoomParams struct {
	RoomId       string   `json:"roomId,omitempty"`
	Sender       string   `json:"sender"`
	Participants []string `json:"participants"`
	Content      string   `json:"content"`
	ImageUrl     string   `json:"imageUrl,omitempty"`
	ThumbnailUrl string   `json:"thumbnailUrl,omitempty"`
	AudioUrl     string   `json:"audioUrl,omitempty"`
	Timestamp    int64    `json:"timestamp"`
}

type CallOfferParams struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	SdpOffer json.RawMessage `json:"sdpOffer"`
}

type CallAnswerParams struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	SdpAnswer json.RawMessage `json:"sdpAnswer"`
}

type IceCandidateParams struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// ServerMessage is the outbound envelope, discriminated the same way as
// ClientMessage.
type ServerMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	UserRegistered      *UserRegistered      `json:"userRegistered,omitempty"`
	RoomsList           *RoomsList           `json:"roomsList,omitempty"`
	MessagesList        *MessagesList        `json:"messagesList,omitempty"`
	NewMessage          *types.Message       `json:"newMessage,omitempty"`
	RoomCreated         *RoomCreated         `json:"roomCreated,omitempty"`
	IncomingCall        *IncomingCall        `json:"incomingCall,omitempty"`
	CallAnswered        *CallAnswered        `json:"callAnswered,omitempty"`
	ReceiveIceCandidate *ReceiveIceCandidate `json:"receiveIceCandidate,omitempty"`
	CallFailed          *CallFailed          `json:"callFailed,omitempty"`
	AnswerFailed        *AnswerFailed        `json:"answerFailed,omitempty"`

	RegisterError     *EventError      `json:"registerError,omitempty"`
	ListRoomsError    *EventError      `json:"listRoomsError,omitempty"`
	ListMessagesError *EventError      `json:"listMessagesError,omitempty"`
	SendMessageError  *EventError      `json:"sendMessageError,omitempty"`
	ReadMessagesError *EventError      `json:"readMessagesError,omitempty"`
	CreateRoomError   *CreateRoomError `json:"createRoomError,omitempty"`
	InvalidMessage    *EventError      `json:"invalidMessage,omitempty"`
}

type UserRegistered struct {
	UserId string `json:"userId"`
}

type RoomsList struct {
	Rooms []types.RoomSummary `json:"rooms"`
}

type MessagesList struct {
	RoomId       string          `json:"roomId"`
	Participants []types.User    `json:"participants"`
	Messages     []types.Message `json:"messages"`
}

type RoomCreated struct {
	RoomId       string          `json:"roomId"`
	Participants []types.User    `json:"participants"`
	Messages     []types.Message `json:"messages"`
}

type IncomingCall struct {
	From     string          `json:"from"`
	SdpOffer json.RawMessage `json:"sdpOffer"`
}

type CallAnswered struct {
	To        string          `json:"to"`
	SdpAnswer json.RawMessage `json:"sdpAnswer"`
}

type ReceiveIceCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
}

type CallFailed struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type AnswerFailed struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type EventError struct {
	Message string `json:"message"`
}

// CreateRoomError carries the original request payload so the caller can
// retry with a fresh room id.
type CreateRoomError struct {
	Message         string            `json:"message"`
	OriginalPayload *CreateRoomParams `json:"originalPayload"`
}

// EventName reports which event field of the envelope is set, for logging.
func (m *ServerMessage) EventName() string {
	switch {
	case m.UserRegistered != nil:
		return "userRegistered"
	case m.RoomsList != nil:
		return "roomsList"
	case m.MessagesList != nil:
		return "messagesList"
	case m.NewMessage != nil:
		return "newMessage"
	case m.RoomCreated != nil:
		return "roomCreated"
	case m.IncomingCall != nil:
		return "incomingCall"
	case m.CallAnswered != nil:
		return "callAnswered"
	case m.ReceiveIceCandidate != nil:
		return "receiveIceCandidate"
	case m.CallFailed != nil:
		return "callFailed"
	case m.AnswerFailed != nil:
		return "answerFailed"
	case m.RegisterError != nil:
		return "registerError"
	case m.ListRoomsError != nil:
		return "listRoomsError"
	case m.ListMessagesError != nil:
		return "listMessagesError"
	case m.SendMessageError != nil:
		return "sendMessageError"
	case m.ReadMessagesError != nil:
		return "readMessagesError"
	case m.CreateRoomError != nil:
		return "createRoomError"
	case m.InvalidMessage != nil:
		return "invalidMessage"
	}
	return "unknown"
}

func newServerMessage(id int) *ServerMessage {
	return &ServerMessage{Id: id, Timestamp: Now()}
}

func UserRegisteredMsg(id int, userId string) *ServerMessage {
	msg := newServerMessage(id)
	msg.UserRegistered = &UserRegistered{UserId: userId}
	return msg
}

func RoomsListMsg(id int, rooms []types.RoomSummary) *ServerMessage {
	msg := newServerMessage(id)
	msg.RoomsList = &RoomsList{Rooms: rooms}
	return msg
}

func MessagesListMsg(id int, roomId string, participants []types.User, messages []types.Message) *ServerMessage {
	msg := newServerMessage(id)
	msg.MessagesList = &MessagesList{
		RoomId:       roomId,
		Participants: participants,
		Messages:     messages,
	}
	return msg
}

func NewMessageMsg(id int, m types.Message) *ServerMessage {
	msg := newServerMessage(id)
	msg.NewMessage = &m
	return msg
}

func RoomCreatedMsg(id int, roomId string, participants []types.User, messages []types.Message) *ServerMessage {
	msg := newServerMessage(id)
	msg.RoomCreated = &RoomCreated{
		RoomId:       roomId,
		Participants: participants,
		Messages:     messages,
	}
	return msg
}

func IncomingCallMsg(from string, sdpOffer json.RawMessage) *ServerMessage {
	msg := newServerMessage(0)
	msg.IncomingCall = &IncomingCall{From: from, SdpOffer: sdpOffer}
	return msg
}

func CallAnsweredMsg(to string, sdpAnswer json.RawMessage) *ServerMessage {
	msg := newServerMessage(0)
	msg.CallAnswered = &CallAnswered{To: to, SdpAnswer: sdpAnswer}
	return msg
}

func ReceiveIceCandidateMsg(candidate json.RawMessage) *ServerMessage {
	msg := newServerMessage(0)
	msg.ReceiveIceCandidate = &ReceiveIceCandidate{Candidate: candidate}
	return msg
}

func CallFailedMsg(id int, to, message string) *ServerMessage {
	msg := newServerMessage(id)
	msg.CallFailed = &CallFailed{To: to, Message: message}
	return msg
}

func AnswerFailedMsg(id int, to, message string) *ServerMessage {
	msg := newServerMessage(id)
	msg.AnswerFailed = &AnswerFailed{To: to, Message: message}
	return msg
}

func ErrRegister(id int, message string) *ServerMessage {
	msg := newServerMessage(id)
	msg.RegisterError = &EventError{Message: message}
	return msg
}

func ErrListRooms(id int, message string) *ServerMessage {
	msg := newServerMessage(id)
	msg.ListRoomsError = &EventError{Message: message}
	return msg
}

func ErrListMessages(id int, message string) *ServerMessage {
	msg := newServerMessage(id)
	msg.ListMessagesError = &EventError{Message: message}
	return msg
}

func ErrSendMessage(id int, message string) *ServerMessage {
	msg := newServerMessage(id)
	msg.SendMessageError = &EventError{Message: message}
	return msg
}

func ErrReadMessages(id int, message string) *ServerMessage {
	msg := newServerMessage(id)
	msg.ReadMessagesError = &EventError{Message: message}
	return msg
}

func ErrCreateRoom(id int, message string, payload *CreateRoomParams) *ServerMessage {
	msg := newServerMessage(id)
	msg.CreateRoomError = &CreateRoomError{Message: message, OriginalPayload: payload}
	return msg
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := newServerMessage(0)
	if id > 0 {
		msg.Id = id
	}
	msg.InvalidMessage = &EventError{Message: "invalid message format"}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
