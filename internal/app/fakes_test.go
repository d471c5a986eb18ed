package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AhmedLyanov/VizorLite/internal/core"
)

// fakeConn records every frame the relay delivers to it.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (c *fakeConn) TrySend(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.fail {
		return errors.New("backpressure")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) envelopes(t *testing.T) []core.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := core.DecodeEnvelope(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) lastEnvelope(t *testing.T) core.Envelope {
	t.Helper()
	envs := c.envelopes(t)
	require.NotEmpty(t, envs)
	return envs[len(envs)-1]
}
