package chat

import "context"

// Transport names recorded in transcripts.
const (
	ChannelHTTP      = "chat_http"
	ChannelWebSocket = "chat_ws"
	ChannelCLI       = "chat_cli"
)

type channelKey struct{}

// WithChannel tags ctx with the transport a turn arrived on.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

// ChannelFrom returns the transport recorded by WithChannel, or ChannelHTTP.
func ChannelFrom(ctx context.Context) string {
	if v, ok := ctx.Value(channelKey{}).(string); ok && v != "" {
		return v
	}
	return ChannelHTTP
}
