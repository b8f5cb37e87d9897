package debug

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestProcessMemory(t *testing.T) {
	pm, err := processMemory()
	require.NoError(t, err)
	assert.NotZero(t, pm.RSS)
}

func TestLoggersStopWithContext(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx, cancel := context.WithCancel(context.Background())
	StartGoroutineLogger(ctx, 5*time.Millisecond, logger)
	StartMemLogger(ctx, 5*time.Millisecond, logger)

	assert.Eventually(t, func() bool {
		s := buf.String()
		return strings.Contains(s, `"memstats"`) && strings.Contains(s, `"goroutine-stacks"`)
	}, time.Second, time.Millisecond)
	cancel()
}
