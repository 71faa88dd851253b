// cmd/server/pages.go
package main

import (
	"github.com/motdgate/motdgate/internal/page"
)

// registerBuiltinPages adds the "motd" namespace: a welcome page and a
// push-capable echo page, used for wiring checks and as a reference for
// namespace authors.
func registerBuiltinPages(registry *page.Registry, serverID string) error {
	welcome := page.Definition{
		Descriptor: page.Descriptor{Namespace: "motd", PageID: "welcome"},
		New: func(ctx page.Context) page.Page {
			return &welcomePage{ctx: ctx, serverID: serverID}
		},
	}
	if err := registry.Register(welcome); err != nil {
		return err
	}

	echo := page.Definition{
		Descriptor: page.Descriptor{Namespace: "motd", PageID: "echo", SupportsPush: true},
		New: func(ctx page.Context) page.Page {
			return &echoPage{ctx: ctx}
		},
	}
	return registry.Register(echo)
}

// welcomePage answers every exchange with the server id and the identity it
// was presented to.
type welcomePage struct {
	ctx      page.Context
	serverID string
}

func (p *welcomePage) OnDataReceived(data any) error {
	return p.ctx.Sender.Send(map[string]any{
		"server_id": p.serverID,
		"identity":  p.ctx.IdentityID,
	})
}

func (p *welcomePage) OnError(kind page.ErrorKind) {}

// echoPage sends back whatever it receives, in any mode.
type echoPage struct {
	ctx page.Context
}

func (p *echoPage) OnDataReceived(data any) error {
	return p.ctx.Sender.Send(data)
}

func (p *echoPage) OnError(kind page.ErrorKind) {}
