package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/iudanet/canvassync/internal/client/socket"
	"github.com/iudanet/canvassync/internal/pubsub"
	"github.com/iudanet/canvassync/internal/state"
	"github.com/iudanet/canvassync/pkg/api"
)

// runWatch интерактивная сессия: печатает чужие изменения и
// выполняет команды холста до quit или конца ввода
func (c *Cli) runWatch(ctx context.Context) error {
	mode := "REST only"
	if c.session.Socket.IsConnected() {
		mode = "live"
	}
	c.io.Printf("=== Watching canvas %s (%s) ===\n", c.session.CanvasID(), mode)
	c.io.Printf("%d objects. Type 'help' for commands, 'quit' to exit.\n",
		len(c.session.Orch.Store().List(c.session.CanvasID())))

	unsubscribe := c.subscribeWatch()
	defer unsubscribe()

	for ctx.Err() == nil {
		line, err := c.io.ReadInput("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			PrintUsage(c.io)
			continue
		}
		if err := c.dispatch(ctx, fields[0], fields[1:]); err != nil {
			c.io.Printf("Error: %v\n", err)
		}
	}
	return nil
}

func (c *Cli) subscribeWatch() pubsub.Unsubscribe {
	sock := c.session.Socket
	unsubs := []pubsub.Unsubscribe{
		c.session.Orch.Store().Subscribe(func(ch state.Change) {
			if ch.Kind != state.ChangeRemote {
				return
			}
			if ch.Object == nil {
				c.io.Printf("← %s deleted\n", ch.ObjectID)
				return
			}
			c.io.Printf("← %s %s v%d %s\n", ch.ObjectID, ch.Object.ObjectType, ch.Object.Version, formatProps(ch.Object.Properties))
		}),
		sock.Subscribe(api.EventPresence, func(ev api.Event) {
			var p api.Presence
			if err := ev.Decode(&p); err != nil {
				return
			}
			c.io.Printf("• %s %s\n", p.Username, p.Status)
		}),
		sock.Subscribe(socket.EventDisconnect, func(api.Event) {
			c.io.Println("• disconnected, changes go over REST")
		}),
		sock.Subscribe(socket.EventReconnectSuccess, func(api.Event) {
			c.io.Println("• reconnected, resyncing canvas")
		}),
		sock.Subscribe(socket.EventReconnectFailed, func(api.Event) {
			c.io.Println("• reconnect gave up, staying on REST")
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
