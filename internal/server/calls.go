package server

// The call signaling relay is stateless: each offer, answer or candidate is
// relayed to the target's live connection if one exists. No call state is
// kept server-side, and the only fault kind is "offline".

func (cs *ChatServer) handleCallOffer(msg *ClientMessage) {
	p := msg.CallOffer
	if p.From == "" || p.To == "" {
		msg.client.queueMessage(CallFailedMsg(msg.Id, p.To, "Missing from or to"))
		return
	}

	if !cs.sendToParticipant(p.To, IncomingCallMsg(p.From, p.SdpOffer)) {
		msg.client.queueMessage(CallFailedMsg(msg.Id, p.To, "user is not online"))
		return
	}

	cs.stats.Incr(statCallEventsRelayed)
}

func (cs *ChatServer) handleCallAnswer(msg *ClientMessage) {
	p := msg.CallAnswer
	if p.From == "" || p.To == "" {
		msg.client.queueMessage(AnswerFailedMsg(msg.Id, p.To, "Missing from or to"))
		return
	}

	if !cs.sendToParticipant(p.To, CallAnsweredMsg(p.To, p.SdpAnswer)) {
		msg.client.queueMessage(AnswerFailedMsg(msg.Id, p.To, "user is not online"))
		return
	}

	cs.stats.Incr(statCallEventsRelayed)
}

// ICE candidates are best-effort: they may legitimately race call teardown,
// so an offline target drops the candidate with only a warning.
func (cs *ChatServer) handleIceCandidate(msg *ClientMessage) {
	p := msg.IceCandidate
	if p.To == "" {
		cs.log.Println("iceCandidate: missing target")
		return
	}

	if !cs.sendToParticipant(p.To, ReceiveIceCandidateMsg(p.Candidate)) {
		cs.log.Printf("dropping ice candidate for offline user %q", p.To)
		return
	}

	cs.stats.Incr(statCallEventsRelayed)
}
