package ai

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

type scriptedClient struct {
	responses []string
	err       error
	calls     atomic.Int32

	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (c *scriptedClient) ChatJSON(_ domain.Context, _, _ string, _ int) (string, error) {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxSeen {
		c.maxSeen = c.inFlight
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	n := int(c.calls.Add(1)) - 1
	if c.err != nil {
		return "", c.err
	}
	if n < len(c.responses) {
		return c.responses[n], nil
	}
	return c.responses[len(c.responses)-1], nil
}

func TestExtractor_ExtractProfile(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []string{wellFormed}}
	e := NewExtractor(client, nil, 1024, false)
	p, err := e.ExtractProfile(context.Background(), "jd", "cv.pdf", "cv text")
	require.NoError(t, err)
	require.Len(t, p.RequiredSkills, 1)
	assert.True(t, p.RequiredSkills[0].Found)
}

func TestExtractor_ModelCallFailurePropagates(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{err: errors.New("connection refused")}
	e := NewExtractor(client, nil, 1024, false)
	_, err := e.ExtractProfile(context.Background(), "jd", "cv.pdf", "cv text")
	require.Error(t, err)
}

func TestExtractor_UnparseableResponseDumpsArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	client := &scriptedClient{responses: []string{"no json here at all"}}
	e := NewExtractor(client, NewDebugDumper(dir), 1024, false)

	p, err := e.ExtractProfile(context.Background(), "jane.pdf", "jd", "cv text")
	require.NoError(t, err)
	require.Len(t, p.Issues, 1)
	assert.Equal(t, domain.IssueError, p.Issues[0].Type)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExtractor_SerializedCallsNeverOverlap(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []string{wellFormed}}
	e := NewExtractor(client, nil, 1024, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.ExtractProfile(context.Background(), "jd", "cv.pdf", "cv text")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, client.maxSeen)
}

func TestExtractor_Summarize(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []string{"  Solid Go backend background.\n"}}
	e := NewExtractor(client, nil, 1024, false)
	got, err := e.Summarize(context.Background(), "jd", "cv.pdf", 82, domain.RecommendShortlist, []string{"Base score: 50"})
	require.NoError(t, err)
	assert.Equal(t, "Solid Go backend background.", got)
}
