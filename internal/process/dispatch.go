package process

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/logger"
	"github.com/arcnmx/screenstub-go/internal/xadapter"
)

// Dispatch runs a single user-action event to completion.
func (p *Process) Dispatch(ctx context.Context, ev config.Event) error {
	logger.Debugf("user event %+v", ev)

	switch ev.Kind {
	case config.EventShowHost:
		return p.sources.ShowHost(ctx)

	case config.EventShowGuest:
		return p.sources.ShowGuest(ctx)

	case config.EventToggleShow:
		if p.sources.ShowingGuest() {
			return p.sources.ShowHost(ctx)
		}
		return p.sources.ShowGuest(ctx)

	case config.EventExec:
		return runLocalExec(ctx, ev.Argv)

	case config.EventGrab:
		return p.Grab(ctx, ev.Grab)

	case config.EventToggleGrab:
		mode := ev.Grab.ModeOf()
		p.grabsMu.Lock()
		_, active := p.grabs[mode]
		p.grabsMu.Unlock()
		if active {
			return p.Ungrab(ctx, mode)
		}
		return p.Grab(ctx, ev.Grab)

	case config.EventUngrab:
		return p.Ungrab(ctx, ev.Mode)

	case config.EventUnstickGuest:
		return p.unstickGuest(ctx)

	case config.EventUnstickHost:
		return p.xreq.Send(xadapter.XRequest{Kind: xadapter.RequestUnstickHost})

	case config.EventShutdown:
		return p.qemu.GuestShutdown("powerdown")

	case config.EventReboot:
		return p.qemu.GuestShutdown("reboot")

	case config.EventExit:
		return p.exit(ctx)

	default:
		return fmt.Errorf("process: user event %q unimplemented", ev.Kind)
	}
}

// unstickGuest releases every currently-held key directly into the active
// transport: the guest-side analogue of UnstickHost, which instead goes out
// through the display-server request channel.
func (p *Process) unstickGuest(ctx context.Context) error {
	if p.matcher == nil {
		return nil
	}
	for _, e := range p.matcher.Unstick() {
		select {
		case p.deviceEvents <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// exit runs every configured exit action once (excluding further Exits, to
// prevent recursion), logging rather than aborting on a per-action failure,
// then posts Quit to the display-server request channel.
func (p *Process) exit(ctx context.Context) error {
	for _, e := range p.exitEvents {
		if e.Kind == config.EventExit {
			continue
		}
		if err := p.Dispatch(ctx, e); err != nil {
			logger.Errorf("exit event %+v failed: %v", e, err)
		}
	}
	return p.xreq.Send(xadapter.XRequest{Kind: xadapter.RequestQuit})
}

func runLocalExec(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("process: exec event missing a command")
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...).Run()
}
