package console

import (
	"context"
	"strings"

	"go-access-console/internal/command"
	"go-access-console/internal/event"
)

// cmdShell opens the streamed command shell. Plain lines start backend
// commands; output arrives asynchronously over the channel and is printed as
// it streams in.
func (c *Console) cmdShell(ctx context.Context) error {
	if c.channel.State() == command.StateDisconnected {
		c.printf("connecting command channel...\n")
		c.channel.Connect()
	}

	events, unsubscribe := c.bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				switch e.Type {
				case event.TypeCommandOutput:
					if chunk, ok := e.Payload.(string); ok {
						c.printf("%s", chunk)
					}
				case event.TypeChannelState:
					if state, ok := e.Payload.(command.State); ok {
						c.printf("[channel %s]\n", state)
					}
				}
			}
		}
	}()

	c.printf("command shell — type a backend command, ':cancel', ':log', or ':quit'\n")

	for {
		line, ok := c.readLine(ctx)
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}

		switch {
		case line == ":quit":
			return nil
		case line == ":cancel":
			if err := c.channel.Cancel(); err != nil {
				c.printError(err)
			}
		case line == ":log":
			c.printf("%s\n", c.channel.Output())
		case line == ":state":
			c.printf("channel is %s\n", c.channel.State())
		case strings.HasPrefix(line, ":"):
			c.printf("unknown shell command %q\n", line)
		default:
			if err := c.channel.Start(line); err != nil {
				c.printError(err)
			}
		}
	}
}
