package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	appbridge "gatherly/internal/app/bridge"
)

// envelope is the cloudevents-style wrapper the event/plan subsystem puts on
// its lifecycle topic.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BridgeHandler decodes external lifecycle signals and drives the bridge.
// Decode failures and unknown types are logged and acknowledged: the topic
// carries other subsystems' events too, and redelivery would not fix a
// malformed payload.
type BridgeHandler struct {
	Bridge *appbridge.Bridge
	Logger *slog.Logger
}

func (h BridgeHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.log().Warn("undecodable external event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	kind := strings.TrimSuffix(env.Type, ".v1")
	switch kind {
	case "event.created":
		var evt appbridge.ExternalEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			h.log().Warn("bad event.created payload", "offset", msg.Offset, "error", err)
			return nil
		}
		return h.Bridge.HandleCreated(ctx, evt)
	case "event.updated":
		var evt appbridge.ExternalEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			h.log().Warn("bad event.updated payload", "offset", msg.Offset, "error", err)
			return nil
		}
		return h.Bridge.HandleUpdated(ctx, evt)
	case "event.deleted":
		var evt appbridge.ExternalEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			h.log().Warn("bad event.deleted payload", "offset", msg.Offset, "error", err)
			return nil
		}
		return h.Bridge.HandleDeleted(ctx, evt)
	case "event.membership_changed":
		var change appbridge.MembershipChange
		if err := json.Unmarshal(env.Data, &change); err != nil {
			h.log().Warn("bad membership payload", "offset", msg.Offset, "error", err)
			return nil
		}
		return h.Bridge.HandleMembershipChanged(ctx, change)
	default:
		return nil
	}
}

func (h BridgeHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ MessageHandler = BridgeHandler{}
