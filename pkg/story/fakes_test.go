package story

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"echopaths/pkg/model"
	"echopaths/pkg/request"
)

// fakeClient is a scriptable GenerationClient.
type fakeClient struct {
	mu           sync.Mutex
	outlineErr   error
	outlineCalls int
	textErr    map[int]error
	gates      map[int]chan struct{}
	textCalls  map[int]int
	audioCalls int
	requests   []SegmentRequest
	// ignoreCtx makes gated calls wait for the gate even after cancellation.
	ignoreCtx bool
	// block makes every text call wait for ctx.
	block bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		textErr:   make(map[int]error),
		gates:     make(map[int]chan struct{}),
		textCalls: make(map[int]int),
	}
}

func (f *fakeClient) gate(index int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[index] = ch
	return ch
}

func (f *fakeClient) calls(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls[index]
}

func (f *fakeClient) outlines() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outlineCalls
}

func (f *fakeClient) GenerateOutline(ctx context.Context, j *model.Journey, total int) ([]string, error) {
	f.mu.Lock()
	f.outlineCalls++
	err := f.outlineErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]string, total)
	for i := range out {
		out[i] = fmt.Sprintf("Chapter %d", i+1)
	}
	return out, nil
}

func (f *fakeClient) GenerateSegmentText(ctx context.Context, req SegmentRequest) (string, error) {
	f.mu.Lock()
	f.textCalls[req.Index]++
	f.requests = append(f.requests, req)
	gate := f.gates[req.Index]
	err := f.textErr[req.Index]
	block, ignoreCtx := f.block, f.ignoreCtx
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if gate != nil {
		if ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Segment %d narration.", req.Index), nil
}

func (f *fakeClient) GenerateSegmentAudio(ctx context.Context, text, voice string) (*model.Audio, error) {
	f.mu.Lock()
	f.audioCalls++
	f.mu.Unlock()
	return &model.Audio{Format: "wav", Data: []byte(text)}, nil
}

// fakeBackend records loads and lets tests finish the current clip.
type fakeBackend struct {
	mu       sync.Mutex
	loads    int
	finished func()
}

func (b *fakeBackend) Load(a *model.Audio, onFinished func(), onError func(error)) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	b.finished = onFinished
	return time.Minute, nil
}

func (b *fakeBackend) Play()  {}
func (b *fakeBackend) Pause() {}
func (b *fakeBackend) Stop()  {}

func (b *fakeBackend) finish() {
	b.mu.Lock()
	fn := b.finished
	b.mu.Unlock()
	fn()
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testPolicies(attempts int) Policies {
	return Policies{
		Text:  &request.RetryPolicy{Name: "text", MaxAttempts: attempts, Retryable: Retryable, Sleep: noSleep},
		Audio: &request.RetryPolicy{Name: "audio", MaxAttempts: attempts, Retryable: Retryable, Sleep: noSleep},
	}
}

func runLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(cancel)
	return l
}
