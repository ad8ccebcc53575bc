package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspirewithalina/chatserver/internal/types"
)

func TestEventName(t *testing.T) {
	cases := []struct {
		msg  *ServerMessage
		want string
	}{
		{UserRegisteredMsg(1, "alice"), "userRegistered"},
		{RoomsListMsg(1, nil), "roomsList"},
		{MessagesListMsg(1, "room-1", nil, nil), "messagesList"},
		{NewMessageMsg(1, types.Message{MessageId: "m1"}), "newMessage"},
		{RoomCreatedMsg(1, "room-1", nil, nil), "roomCreated"},
		{IncomingCallMsg("alice", nil), "incomingCall"},
		{CallAnsweredMsg("bob", nil), "callAnswered"},
		{ReceiveIceCandidateMsg(nil), "receiveIceCandidate"},
		{CallFailedMsg(1, "bob", "user is not online"), "callFailed"},
		{AnswerFailedMsg(1, "bob", "user is not online"), "answerFailed"},
		{ErrRegister(1, "Missing userId"), "registerError"},
		{ErrListRooms(1, "Missing userId"), "listRoomsError"},
		{ErrListMessages(1, "Missing roomId"), "listMessagesError"},
		{ErrSendMessage(1, "Missing roomId"), "sendMessageError"},
		{ErrReadMessages(1, "Missing roomId"), "readMessagesError"},
		{ErrCreateRoom(1, "room already exists", nil), "createRoomError"},
		{ErrInvalidMessage(1), "invalidMessage"},
		{&ServerMessage{}, "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.msg.EventName())
		})
	}
}

func TestClientMessageUnmarshal(t *testing.T) {
	t.Run("event key selects the handler field", func(t *testing.T) {
		raw := `{"id":3,"sendMessage":{"roomId":"room-1","sender":"alice","content":"hi","timestamp":1000}}`

		var msg ClientMessage
		require.NoError(t, json.Unmarshal([]byte(raw), &msg))

		assert.Equal(t, 3, msg.Id)
		require.NotNil(t, msg.SendMessage)
		assert.Equal(t, "room-1", msg.SendMessage.RoomId)
		assert.Equal(t, "alice", msg.SendMessage.Sender)
		assert.Equal(t, int64(1000), msg.SendMessage.Timestamp)
		assert.Nil(t, msg.Register)
	})

	t.Run("sdp payloads pass through untouched", func(t *testing.T) {
		raw := `{"callOffer":{"from":"alice","to":"bob","sdpOffer":{"type":"offer","sdp":"v=0\r\n"}}}`

		var msg ClientMessage
		require.NoError(t, json.Unmarshal([]byte(raw), &msg))

		require.NotNil(t, msg.CallOffer)
		assert.JSONEq(t, `{"type":"offer","sdp":"v=0\r\n"}`, string(msg.CallOffer.SdpOffer))
	})
}

func TestServerMessageMarshal(t *testing.T) {
	t.Run("only the set event field is emitted", func(t *testing.T) {
		bytes, err := json.Marshal(UserRegisteredMsg(2, "alice"))
		require.NoError(t, err)

		var decoded map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(bytes, &decoded))

		assert.Contains(t, decoded, "userRegistered")
		assert.Contains(t, decoded, "timestamp")
		assert.NotContains(t, decoded, "roomsList")
		assert.NotContains(t, decoded, "registerError")
	})

	t.Run("createRoomError keeps the original payload", func(t *testing.T) {
		payload := &CreateRoomParams{
			RoomId:       "room-1",
			Sender:       "alice",
			Participants: []string{"bob"},
			Content:      "hi",
			Timestamp:    1000,
		}
		bytes, err := json.Marshal(ErrCreateRoom(5, "room already exists", payload))
		require.NoError(t, err)

		var decoded ServerMessage
		require.NoError(t, json.Unmarshal(bytes, &decoded))

		require.NotNil(t, decoded.CreateRoomError)
		assert.Equal(t, "room already exists", decoded.CreateRoomError.Message)
		require.NotNil(t, decoded.CreateRoomError.OriginalPayload)
		assert.Equal(t, payload.RoomId, decoded.CreateRoomError.OriginalPayload.RoomId)
		assert.Equal(t, payload.Participants, decoded.CreateRoomError.OriginalPayload.Participants)
	})

	t.Run("message flags are always present", func(t *testing.T) {
		bytes, err := json.Marshal(NewMessageMsg(0, types.Message{
			MessageId: "m1", RoomId: "room-1", Sender: "alice", Content: "hi", Timestamp: 1000,
		}))
		require.NoError(t, err)

		var decoded map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(bytes, &decoded))
		require.Contains(t, decoded, "newMessage")

		var wire map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(decoded["newMessage"], &wire))
		assert.Contains(t, wire, "received", "expected delivery flags serialized even when false")
		assert.Contains(t, wire, "read")
	})
}
