package eventpubsub

type EventName string

const (
	// GatewayMessageEvent carries every inbound *eventmodels.GatewayMessage.
	GatewayMessageEvent EventName = "GatewayMessageEvent"
	// GatewayDisconnectedEvent carries the error that ended the transport read loop.
	GatewayDisconnectedEvent EventName = "GatewayDisconnectedEvent"
)
