package http

import (
	"encoding/json"

	"github.com/samber/lo"

	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/proto"
	"github.com/vovakirdan/huddle/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	cmd := &core.Command{RequestID: inbound.ID}
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Protocol != 0 && join.Protocol != proto.ProtocolVersion {
			return nil, &proto.Error{Code: "unsupported_version", Msg: "unsupported protocol version"}, nil
		}
		cmd.Kind = core.CommandJoin
		cmd.User = join.User
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		cmd.Kind = core.CommandSendMessage
		cmd.Room = msg.Room
		cmd.Text = msg.Text
	case proto.InboundTypeCheckOnline:
		var check proto.CheckOnlineData
		if err := json.Unmarshal(inbound.Data, &check); err != nil {
			return nil, nil, err
		}
		if check.User == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "user is required"}, nil
		}
		cmd.Kind = core.CommandCheckUserOnline
		cmd.User = check.User
	case proto.InboundTypeTyping, proto.InboundTypeStopTyping, proto.InboundTypeJoinRoom,
		proto.InboundTypeLeaveRoom, proto.InboundTypeOnlineMembers, proto.InboundTypeHistory:
		var room proto.RoomData
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &room); err != nil {
				return nil, nil, err
			}
		}
		cmd.Kind = roomCommands[inbound.Type]
		cmd.Room = room.Room
		if (cmd.Kind == core.CommandJoinRoom || cmd.Kind == core.CommandGetOnlineMembers) && room.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
	return cmd, nil, nil
}

var roomCommands = map[string]core.CommandKind{
	proto.InboundTypeTyping:        core.CommandStartTyping,
	proto.InboundTypeStopTyping:    core.CommandStopTyping,
	proto.InboundTypeJoinRoom:      core.CommandJoinRoom,
	proto.InboundTypeLeaveRoom:     core.CommandLeaveRoom,
	proto.InboundTypeOnlineMembers: core.CommandGetOnlineMembers,
	proto.InboundTypeHistory:       core.CommandHistory,
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventAck:
		return outboundFromAck(event)
	case core.EventOnlineUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameOnlineUsers,
			Data:  proto.EventOnlineUsers{Users: nonNil(event.Users)},
		}
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameNewMessage,
			Data:  toProtoMessage(event.Message),
		}
	case core.EventTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameTyping,
			Data:  proto.EventTyping{Room: event.Room, Users: nonNil(event.Users)},
		}
	case core.EventGroupUpdated:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameGroupUpdated,
			Data: proto.EventGroupUpdated{
				Room:   event.Room,
				Change: event.Change.String(),
				User:   event.User,
				Group:  toProtoGroup(event.Group),
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func outboundFromAck(event *core.Event) proto.Outbound {
	name := event.Command.String()
	if event.Error != nil {
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			ID:    event.RequestID,
			Event: name,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	}

	var data any
	switch event.Command {
	case core.CommandJoin:
		data = proto.AckJoin{
			User:   event.User,
			Online: nonNil(event.Users),
			Rooms:  nonNil(event.Rooms),
			Groups: lo.Map(event.Groups, func(g *store.Group, _ int) proto.Group { return toProtoGroup(g) }),
		}
	case core.CommandSendMessage:
		data = toProtoMessage(event.Message)
	case core.CommandGetOnlineMembers:
		data = proto.AckMembers{Room: event.Room, Users: nonNil(event.Users)}
	case core.CommandCheckUserOnline:
		data = proto.AckOnline{User: event.User, Online: event.Online}
	case core.CommandHistory:
		data = proto.AckHistory{
			Room:     event.Room,
			Messages: lo.Map(event.Messages, func(m *store.Message, _ int) proto.EventMessage { return toProtoMessage(m) }),
		}
	default:
		ack := proto.AckRoom{Room: event.Room}
		if event.Group != nil {
			g := toProtoGroup(event.Group)
			ack.Group = &g
		}
		data = ack
	}
	return proto.Outbound{Type: proto.OutboundTypeAck, ID: event.RequestID, Event: name, Data: data}
}

func toProtoMessage(m *store.Message) proto.EventMessage {
	if m == nil {
		return proto.EventMessage{}
	}
	return proto.EventMessage{
		ID:   m.ID,
		Room: m.RoomID,
		User: m.SenderID,
		Text: m.Text,
		TS:   m.CreatedAt.Unix(),
	}
}

func toProtoGroup(g *store.Group) proto.Group {
	if g == nil {
		return proto.Group{}
	}
	return proto.Group{
		ID:          g.ID,
		Name:        g.Name,
		Creator:     g.CreatorID,
		Members:     nonNil(g.Members),
		MemberCount: g.MemberCount(),
		LastMessage: g.LastMessage,
		UpdatedAt:   g.UpdatedAt.Unix(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
