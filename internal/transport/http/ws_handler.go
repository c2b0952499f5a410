package http

import (
	"encoding/json"
	"net/http"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuizID string `json:"quizId"`
	Slot   int    `json:"slot"`
	Option int    `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type subscribedPayload struct {
	LearnerID string `json:"learnerId"`
}

// ServeWS upgrades to a websocket that streams the learner's events
// (quiz.completed, achievement.unlocked) and accepts answers in-band.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learnerId")
	if learnerID == "" {
		http.Error(w, "missing learnerId", http.StatusBadRequest)
		return
	}
	if _, err := h.service.Learner(r.Context(), learnerID); err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "learner_id", learnerID, "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.events.Subscribe(learnerID)
	defer cancel()

	out := newOutbox(func(msg outboundMessage[any]) error { return conn.WriteJSON(msg) }, 16)
	closeSignals := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if !out.enqueue(outboundMessage[any]{Type: event.Type, Payload: event}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	out.enqueue(outboundMessage[any]{Type: "subscribed", Payload: subscribedPayload{LearnerID: learnerID}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply = errorMessage(errorBody{Error: "invalid answer payload", Code: "bad_request"})
				break
			}
			outcome, err := h.service.SubmitAnswer(r.Context(), payload.QuizID, payload.Slot, payload.Option, learnerID)
			if err != nil {
				_, body := statusFor(err)
				reply = errorMessage(body)
				break
			}
			reply = outboundMessage[any]{Type: "answerResult", Payload: outcome}
		case "ping":
			reply = outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		default:
			reply = errorMessage(errorBody{Error: "unsupported message type", Code: "bad_request"})
		}
		if !out.enqueue(reply) {
			h.log.Debug("ws writer stopped", "learner_id", learnerID)
			break
		}
	}

	close(closeSignals)
	<-eventsDone
	out.close()
}

// outbox serializes writes onto one goroutine: gorilla connections do not
// support concurrent writers.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(write func(outboundMessage[any]) error, size int) *outbox {
	o := &outbox{send: make(chan outboundMessage[any], size), done: make(chan struct{})}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := write(msg); err != nil {
				return
			}
		}
	}()
	return o
}

// enqueue reports false once the writer has stopped.
func (o *outbox) enqueue(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

// close flushes pending messages and waits for the writer. No enqueue may
// run concurrently with or after close.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}

func errorMessage(body errorBody) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: body}
}
