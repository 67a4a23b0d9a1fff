package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWebsocketURL(t *testing.T) {
	require := require.New(t)

	require.Equal("ws://localhost:4000/ws", WebsocketURL("localhost:4000"))
	require.Equal("ws://localhost:4000/ws", WebsocketURL("http://localhost:4000"))
	require.Equal("wss://relay.example.com/ws", WebsocketURL("https://relay.example.com"))
	require.Equal("ws://localhost:4000/ws", WebsocketURL("ws://localhost:4000/ws"))
	require.Equal("ws://localhost:4000/signal", WebsocketURL("ws://localhost:4000/signal"))
}
