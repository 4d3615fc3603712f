//go:build libcec

package cec

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/laher/cec"
)

// LibCEC is the libcec-backed Bus.
type LibCEC struct{}

var _ Bus = LibCEC{}

// opened is the result of cec.Open.
type opened struct {
	conn *cec.Connection
	err  error
}

// Open connects to the adapter on cfg.Port and pumps its key presses,
// commands and traffic to h from a single goroutine.
func (LibCEC) Open(ctx context.Context, cfg BusConfig, h Handler) (io.Closer, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	// cec.Open blocks inside libcec and takes no context.
	result := make(chan opened, 1)
	go func() {
		conn, err := cec.Open(cfg.Port, cfg.DeviceName)
		result <- opened{conn: conn, err: err}
	}()

	var conn *cec.Connection
	select {
	case r := <-result:
		if r.err != nil {
			return nil, r.err
		}
		conn = r.conn
	case <-ctx.Done():
		return nil, fmt.Errorf("open %q: %w", cfg.Port, ctx.Err())
	}

	b := &libcecBus{
		conn:     conn,
		handler:  h,
		keys:     make(chan int),
		commands: make(chan *cec.Command),
		messages: make(chan string),
		done:     make(chan struct{}),
	}
	conn.KeyPresses = b.keys
	conn.Commands = b.commands
	conn.Messages = b.messages

	b.wg.Add(1)
	go b.pump()
	return b, nil
}

// libcecBus serialises libcec's channels onto one goroutine so the Handler
// sees one call at a time.
type libcecBus struct {
	conn     *cec.Connection
	handler  Handler
	keys     chan int
	commands chan *cec.Command
	messages chan string
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// pump delivers libcec's callbacks. A closed channel is dropped from the
// select so the pump idles until Close.
func (b *libcecBus) pump() {
	defer b.wg.Done()

	p := newBusPump(b.handler)
	keys, commands, messages := b.keys, b.commands, b.messages
	for {
		select {
		case <-b.done:
			return
		case key, ok := <-keys:
			if !p.key(key, ok) {
				keys = nil
			}
		case cmd, ok := <-commands:
			if !p.command(fmt.Sprintf("%+v", cmd), ok) {
				commands = nil
			}
		case msg, ok := <-messages:
			if !p.message(msg, ok) {
				messages = nil
			}
		}
	}
}

// Close releases libcec, then stops the pump. The pump keeps draining while
// libcec shuts down so its callbacks never block on a channel send.
func (b *libcecBus) Close() error {
	b.once.Do(func() {
		b.conn.Destroy()
		close(b.done)
		b.wg.Wait()
	})
	return nil
}
