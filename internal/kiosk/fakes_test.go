package kiosk

import (
	"context"
	"encoding/json"
	"sync"

	"attendance-kiosk/internal/camera"
	"attendance-kiosk/internal/model"
	"attendance-kiosk/internal/queue"
)

// fakeAPI records calls in order and answers from its fields.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	recognizeUser *model.RecognizedUser
	recognizeErr  error
	existing      map[string]bool
	checkErr      error
	catalog       model.GradeCatalog
	gradesErr     error
	createErr     error
	created       []model.NewUser

	// block, when set, makes CreateUser wait until it is closed.
	block chan struct{}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Recognize(ctx context.Context, frame []byte) (*model.RecognizedUser, error) {
	f.record("recognize")
	if f.recognizeErr != nil {
		return nil, f.recognizeErr
	}
	u := *f.recognizeUser
	return &u, nil
}

func (f *fakeAPI) CheckDocument(ctx context.Context, doc string) (bool, error) {
	f.record("check:" + doc)
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.existing[doc], nil
}

func (f *fakeAPI) GradeLevels(ctx context.Context) (model.GradeCatalog, error) {
	f.record("grades")
	if f.gradesErr != nil {
		return nil, f.gradesErr
	}
	return f.catalog.Clone(), nil
}

func (f *fakeAPI) CreateUser(ctx context.Context, user model.NewUser, face []byte) (json.RawMessage, error) {
	f.record("create")
	if f.block != nil {
		<-f.block
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	f.created = append(f.created, user)
	f.mu.Unlock()
	return json.RawMessage(`{"id":1}`), nil
}

// fakeCamera returns a fixed frame or ErrNoFrame and counts captures.
type fakeCamera struct {
	mu        sync.Mutex
	fail      bool
	captures  int
	onCapture func()
}

func (c *fakeCamera) Capture(ctx context.Context) (camera.Frame, error) {
	c.mu.Lock()
	c.captures++
	fail, hook := c.fail, c.onCapture
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	if fail {
		return camera.Frame{}, camera.ErrNoFrame
	}
	return camera.Frame{Data: []byte{0xff, 0xd8, 0xff}}, nil
}

func (c *fakeCamera) Captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

// recordingPublisher keeps every published message.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (p *recordingPublisher) Publish(ctx context.Context, msg queue.Message) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Type
	}
	return out
}
