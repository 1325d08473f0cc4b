package main

import (
	"fmt"

	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/go-msgloop/msgloop"
	"github.com/joeycumines/go-msgloop/observer"
	"github.com/joeycumines/go-msgloop/thread"
)

// demoObserver logs each notification, along with the loop it arrived on.
type demoObserver struct {
	logger    *logiface.Logger[logiface.Event]
	delivered func()
	owner     string
}

func (x *demoObserver) OnEvent(seq int) {
	var current string
	if loop := msgloop.Current(); loop != nil {
		current = loop.Name()
	}
	x.logger.Info().
		Str(`observer`, x.owner).
		Str(`delivered_on`, current).
		Int(`seq`, seq).
		Log(`notified`)
	x.delivered()
}

func runDemo(env *environment, notifications int) error {
	if notifications < 0 {
		return fmt.Errorf("notifications must not be negative, got %d", notifications)
	}

	mainLoop, err := msgloop.New(env.loopOptions(`main`)...)
	if err != nil {
		return err
	}
	defer mainLoop.Close()
	mainProxy := mainLoop.Proxy()

	list := observer.NewThreadSafeList[*demoObserver](observer.WithLogger(env.logger))

	var (
		expected  = (len(env.cfg.Threads) + 1) * notifications
		delivered int
	)
	onDelivered := func() {
		mainProxy.PostTask(func() {
			delivered++
			if delivered == expected {
				mainLoop.Quit()
			}
		})
	}
	newObserver := func(owner string) *demoObserver {
		return &demoObserver{logger: env.logger, delivered: onDelivered, owner: owner}
	}

	threads := make([]*thread.Thread, 0, len(env.cfg.Threads))
	defer func() {
		for _, th := range threads {
			if err := th.Stop(); err != nil {
				env.logger.Err().Str(`thread`, th.Name()).Err(err).Log(`failed to stop thread`)
			}
		}
	}()
	for _, tc := range env.cfg.Threads {
		obs := newObserver(tc.Name)
		th := thread.New(tc.Name,
			thread.WithLogger(env.logger),
			thread.WithLockOSThread(tc.ShouldLockOSThread()),
			thread.WithLoopOptions(env.loopOptions(tc.Name)...),
			thread.WithInit(func(*msgloop.Loop) error {
				list.AddObserver(obs)
				return nil
			}),
			thread.WithCleanUp(func(*msgloop.Loop) {
				list.RemoveObserver(obs)
			}),
		)
		if err := th.Start(); err != nil {
			return fmt.Errorf("start thread %q: %w", tc.Name, err)
		}
		threads = append(threads, th)
	}

	mainObserver := newObserver(`main`)
	list.AddObserver(mainObserver)
	defer list.RemoveObserver(mainObserver)

	if expected == 0 {
		mainLoop.PostTask(mainLoop.Quit)
	}

	var g errgroup.Group
	g.Go(func() error {
		for seq := range notifications {
			list.Notify(func(obs *demoObserver) { obs.OnEvent(seq) })
		}
		return nil
	})

	if err := mainLoop.Run(); err != nil {
		return err
	}
	if err := g.Wait(); err != nil {
		return err
	}

	env.logger.Info().Int(`delivered`, delivered).Int(`threads`, len(threads)).Log(`demo complete`)

	return nil
}
