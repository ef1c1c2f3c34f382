package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoFrame means no image could be captured this time.
var ErrNoFrame = errors.New("no frame available")

// Frame is one captured JPEG image. Frames are never persisted.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Camera produces frames on demand.
type Camera interface {
	Capture(ctx context.Context) (Frame, error)
}

// CommandCamera runs an external grabber and takes its stdout as the
// frame, e.g. `ffmpeg -f v4l2 -i /dev/video0 -frames:v 1 -f mjpeg -`.
type CommandCamera struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// NewCommandCamera splits a command line on whitespace.
func NewCommandCamera(commandLine string, timeout time.Duration) (*CommandCamera, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("camera command is empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CommandCamera{Name: fields[0], Args: fields[1:], Timeout: timeout}, nil
}

// Capture runs the grabber once.
func (c *CommandCamera) Capture(ctx context.Context) (Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[len(msg)-200:]
		}
		return Frame{}, fmt.Errorf("%w: %s: %v %s", ErrNoFrame, c.Name, err, msg)
	}
	if stdout.Len() == 0 {
		return Frame{}, fmt.Errorf("%w: %s produced no output", ErrNoFrame, c.Name)
	}
	return Frame{Data: stdout.Bytes(), CapturedAt: time.Now()}, nil
}

// DirCamera reads the newest JPEG from a spool directory that an external
// grabber keeps writing to.
type DirCamera struct {
	Dir string
	// MaxAge rejects frames older than this. Zero accepts any age.
	MaxAge time.Duration

	now func() time.Time
}

// NewDirCamera creates a directory-backed camera.
func NewDirCamera(dir string, maxAge time.Duration) *DirCamera {
	return &DirCamera{Dir: dir, MaxAge: maxAge, now: time.Now}
}

// Capture returns the newest frame in the directory.
func (c *DirCamera) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !isJPEG(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = e.Name(), info.ModTime()
		}
	}
	if newest == "" {
		return Frame{}, fmt.Errorf("%w: no jpeg in %s", ErrNoFrame, c.Dir)
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	if c.MaxAge > 0 && now().Sub(newestMod) > c.MaxAge {
		return Frame{}, fmt.Errorf("%w: newest frame %s is stale", ErrNoFrame, newest)
	}

	data, err := os.ReadFile(filepath.Join(c.Dir, newest))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("%w: %s is empty", ErrNoFrame, newest)
	}
	return Frame{Data: data, CapturedAt: newestMod}, nil
}

func isJPEG(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".jpg" || ext == ".jpeg"
}

// Unavailable is a camera that never yields a frame. It stands in when no
// source is configured so the kiosk still reports camera errors.
type Unavailable struct{}

func (Unavailable) Capture(context.Context) (Frame, error) {
	return Frame{}, fmt.Errorf("%w: no camera configured", ErrNoFrame)
}
