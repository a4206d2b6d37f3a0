package process

import (
	"context"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/inputevent"
	"github.com/arcnmx/screenstub-go/internal/logger"
	"github.com/arcnmx/screenstub-go/internal/xadapter"
)

// Run is the Event Loop: it merges display-server events, user actions, and
// asynchronous errors from grab/transport tasks, dispatching each to
// completion before moving to the next. User actions take priority over
// display-server events — a config-driven action should never starve behind
// a flood of mouse-move events — implemented as a non-blocking priority
// drain ahead of the blocking merge select, since Go's select has no native
// bias.
//
// actions is an internally-owned queue: handling a display-server event or a
// hotkey match can itself produce new user-actions, which are pushed back
// onto it rather than recursing.
func (p *Process) Run(ctx context.Context, xevents xadapter.Source, userActions <-chan config.Event, errCh <-chan error) error {
	actions := make(chan config.Event, 64)

	runOne := func(ev config.Event) {
		if err := p.Dispatch(ctx, ev); err != nil {
			logger.Errorf("processing user event %+v: %v", ev, err)
		}
	}

	for {
		select {
		case ev := <-userActions:
			runOne(ev)
			continue
		case ev := <-actions:
			runOne(ev)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-userActions:
			runOne(ev)

		case ev := <-actions:
			runOne(ev)

		case err := <-errCh:
			logger.Errorf("transport error: %v", err)

		case xev, ok := <-xevents.Events():
			if !ok {
				return nil
			}
			p.handleXEvent(ctx, xev, actions)
		}
	}
}

func (p *Process) handleXEvent(ctx context.Context, xev xadapter.XEvent, actions chan<- config.Event) {
	switch xev.Kind {
	case xadapter.EventClose:
		post(actions, config.Event{Kind: config.EventExit})

	case xadapter.EventVisible:
		if xev.Visible {
			post(actions, config.Event{Kind: config.EventShowGuest})
		} else {
			post(actions, config.Event{Kind: config.EventShowHost})
		}

	case xadapter.EventFocus:
		if !xev.Focused {
			if err := p.unstickGuest(ctx); err != nil {
				logger.Errorf("unstick guest on focus loss: %v", err)
			}
		}

	case xadapter.EventInput:
		p.handleXInput(ctx, xev.Input, actions)
	}
}

// handleXInput applies the remap table, feeds the result through the hotkey
// matcher (emitted actions become new user-actions), and forwards the event
// into the active transport, per spec's Input(event) handling.
func (p *Process) handleXInput(ctx context.Context, e inputevent.InputEvent, actions chan<- config.Event) {
	e = p.remap.Apply(e)

	if p.matcher != nil {
		if k := e.Kind(); k == inputevent.KindKey || k == inputevent.KindButton {
			key, state := e.Key()
			for _, action := range p.matcher.Process(key, state) {
				post(actions, action)
			}
		}
	}

	select {
	case p.deviceEvents <- e:
	case <-ctx.Done():
	}
}

func post(actions chan<- config.Event, ev config.Event) {
	select {
	case actions <- ev:
	default:
		logger.Warnf("action queue full, dropping %+v", ev)
	}
}
