package ws

import (
	"encoding/json"
	"fmt"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// envelope is the wire frame in both directions: an event name and its
// payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outEnvelope struct {
	Event string            `json:"event"`
	Data  event.DomainEvent `json:"data"`
}

type createPayload struct {
	Room     string `json:"room"`
	Password string `json:"password"`
}

type joinPayload struct {
	Room     string `json:"room"`
	Password string `json:"password"`
}

type textPayload struct {
	Room string `json:"room"`
	Msg  string `json:"msg"`
	ID   string `json:"id"`
}

type whisperPayload struct {
	Target string `json:"target_username"`
	Msg    string `json:"msg"`
}

// decodeCommand turns one inbound frame into its typed command. Unknown
// event names are an error; the caller drops the frame.
func decodeCommand(env envelope) (domain.Command, error) {
	// A frame without a data field means "all defaults".
	if len(env.Data) == 0 {
		env.Data = json.RawMessage(`{}`)
	}

	switch env.Event {
	case "create":
		var p createPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return domain.CreateCommand{Room: p.Room, Password: p.Password}, nil
	case "join":
		var p joinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return domain.JoinCommand{Room: p.Room, Password: p.Password}, nil
	case "leave":
		return domain.LeaveCommand{}, nil
	case "text":
		var p textPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return domain.TextCommand{Room: p.Room, Msg: p.Msg, ID: p.ID}, nil
	case "whisper":
		var p whisperPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return domain.WhisperCommand{Target: p.Target, Msg: p.Msg}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}
