package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sawpanic/barfeed/internal/bar"
	"github.com/sawpanic/barfeed/internal/ohlcv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWSConn is an in-process stand-in for internal/net.WSConn: frames
// queued onto `in` are handed back by Receive, and Close unblocks any
// pending Receive the way closing a real socket does.
type fakeWSConn struct {
	in        chan json.RawMessage
	closed    chan struct{}
	closeOnce sync.Once
	sent      []any
	mu        sync.Mutex
}

func newFakeWSConn() *fakeWSConn {
	return &fakeWSConn{in: make(chan json.RawMessage, 16), closed: make(chan struct{})}
}

func (c *fakeWSConn) Send(v any) error {
	c.mu.Lock()
	c.sent = append(c.sent, v)
	c.mu.Unlock()
	return nil
}
func (c *fakeWSConn) SendText(text string) error { return c.Send(text) }
func (c *fakeWSConn) Ping() error                 { return nil }
func (c *fakeWSConn) Receive() (json.RawMessage, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return nil, fmt.Errorf("closed")
		}
		return f, nil
	case <-c.closed:
		return nil, fmt.Errorf("connection closed")
	}
}
func (c *fakeWSConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
func (c *fakeWSConn) push(frame json.RawMessage) { c.in <- frame }

// fakeDialer hands out a scripted sequence of connections (or errors); each
// call to WSDial pops the next entry.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeWSConn
	errs  []error
	idx   int
}

func (d *fakeDialer) WSDial(ctx context.Context, url string) (ohlcv.WSConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.idx
	d.idx++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.conns) {
		return d.conns[i], nil
	}
	// Past the script: hand back a fresh idle connection so Run doesn't
	// spin hot once the test's scenario is exhausted.
	return newFakeWSConn(), nil
}

type wsBar struct {
	bar.Bar
	valid bool
}

type streamAdapter struct {
	stubAdapter
	parse func(frame json.RawMessage) ([]bar.Bar, bool)
}

func (a *streamAdapter) ParseWS(frame json.RawMessage) ([]bar.Bar, bool) {
	if a.parse != nil {
		return a.parse(frame)
	}
	return nil, false
}

func TestStreaming_SubscribeAndReceiveBars(t *testing.T) {
	store := bar.NewStore(60, 10)
	conn := newFakeWSConn()
	dialer := &fakeDialer{conns: []*fakeWSConn{conn}}

	adapter := &streamAdapter{
		stubAdapter: stubAdapter{async: true},
		parse: func(frame json.RawMessage) ([]bar.Bar, bool) {
			var b bar.Bar
			if err := json.Unmarshal(frame, &b); err != nil {
				return nil, false
			}
			return []bar.Bar{b}, true
		},
	}

	var backfillCalls int32
	backfill := func(ctx context.Context, start *int64, limit int) ([]bar.Bar, error) {
		atomic.AddInt32(&backfillCalls, 1)
		return nil, nil
	}

	s := NewStreaming(StreamingConfig{Pair: "BTCUSD", Interval: "1m"}, adapter, dialer, store, backfill)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	row, _ := json.Marshal(bar.Bar{OpenTime: 60, Open: 1, High: 2, Low: 0.5, Close: 1.5, BaseVolume: 10})
	conn.push(row)

	require.Eventually(t, func() bool { return store.Length() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Streaming, s.State())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&backfillCalls), int32(1))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, Terminal, s.State())
}

func TestStreaming_ReconnectsAfterConnectionDrop(t *testing.T) {
	store := bar.NewStore(60, 10)
	first := newFakeWSConn()
	second := newFakeWSConn()
	dialer := &fakeDialer{conns: []*fakeWSConn{first, second}}

	adapter := &streamAdapter{stubAdapter: stubAdapter{async: true}}
	cfg := StreamingConfig{Pair: "BTCUSD", Interval: "1m", BackoffBase: 10 * time.Millisecond, BackoffCap: 50 * time.Millisecond, SubscribeTimeout: 50 * time.Millisecond}
	s := NewStreaming(cfg, adapter, dialer, store, func(ctx context.Context, start *int64, limit int) ([]bar.Bar, error) {
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	row, _ := json.Marshal(bar.Bar{OpenTime: 60})
	first.push(row) // unblocks SUBSCRIBING, no usable bar (parse always false) but marks it streamed
	require.Eventually(t, func() bool { return s.State() == Streaming }, time.Second, 5*time.Millisecond)

	first.Close() // simulate a dropped connection

	require.Eventually(t, func() bool {
		dialer.mu.Lock()
		defer dialer.mu.Unlock()
		return dialer.idx >= 2
	}, time.Second, 5*time.Millisecond)

	second.push(row)
	require.Eventually(t, func() bool { return s.State() == Streaming }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestStreaming_BackoffOnDialFailure(t *testing.T) {
	store := bar.NewStore(60, 10)
	dialer := &fakeDialer{errs: []error{fmt.Errorf("refused"), fmt.Errorf("refused")}}
	adapter := &streamAdapter{stubAdapter: stubAdapter{async: true}}
	cfg := StreamingConfig{Pair: "BTCUSD", Interval: "1m", BackoffBase: 5 * time.Millisecond, BackoffCap: 20 * time.Millisecond}
	s := NewStreaming(cfg, adapter, dialer, store, func(ctx context.Context, start *int64, limit int) ([]bar.Bar, error) {
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	assert.GreaterOrEqual(t, dialer.idx, 2)
}
