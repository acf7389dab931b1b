//go:build integration

package integration

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-access-console/internal/command"
)

func waitForTerminator(t *testing.T, ch *command.Channel) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(ch.Output(), "=== Process finished with code")
	}, 15*time.Second, 50*time.Millisecond)
}

func TestCommandShellEndToEnd(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	ch := s.commandChannel(t)
	ch.Connect()
	waitChannelState(t, ch, command.StateOpen)

	require.NoError(t, ch.Start("add_softs 2"))
	waitForTerminator(t, ch)

	output := ch.Output()
	require.Contains(t, output, "Created 2 packages.")
	require.Contains(t, output, "=== Process finished with code 0 ===")
}

func TestCancelRunningCommand(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	ch := s.commandChannel(t)
	ch.Connect()
	waitChannelState(t, ch, command.StateOpen)

	require.NoError(t, ch.Start("add_softs 500"))
	require.Eventually(t, func() bool { return ch.Output() != "" }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, ch.Cancel())
	waitForTerminator(t, ch)

	output := ch.Output()
	require.Contains(t, output, "=== Command cancelled by user ===")
	require.Contains(t, output, "=== Process finished with code -15 ===")
}

func TestBusyBackendRefusesSecondCommand(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	ch := s.commandChannel(t)
	ch.Connect()
	waitChannelState(t, ch, command.StateOpen)

	require.NoError(t, ch.Start("add_softs 500"))
	require.Eventually(t, func() bool { return ch.Output() != "" }, 5*time.Second, 20*time.Millisecond)

	// The second start clears the local buffer and is answered with the
	// backend's busy notice on the fresh run.
	require.NoError(t, ch.Start("migrate"))
	require.Eventually(t, func() bool {
		return strings.Contains(ch.Output(), "Another command is already running. Cancel it first.")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, ch.Cancel())
	waitForTerminator(t, ch)
}

func TestChannelReconnectsAfterBackendRestart(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	ch := s.commandChannel(t)
	ch.Connect()
	waitChannelState(t, ch, command.StateOpen)

	// Drop every open connection; CloseClientConnections leaves the server
	// itself running, so the channel's fixed-delay retry must land.
	s.srv.CloseClientConnections()
	waitChannelState(t, ch, command.StateOpen)

	require.NoError(t, ch.Start("migrate"))
	waitForTerminator(t, ch)
	require.Contains(t, ch.Output(), "No migrations to apply.")
}
