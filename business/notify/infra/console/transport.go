// Package console prints notifications instead of sending them. It backs
// dry-run mode.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fd1az/spread-monitor/business/notify/app"
)

var _ app.Transport = (*Transport)(nil)

// Transport writes each message to an io.Writer.
type Transport struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// New creates a Transport writing to w, or stdout when w is nil.
func New(w io.Writer) *Transport {
	if w == nil {
		w = os.Stdout
	}
	return &Transport{out: w, now: time.Now}
}

func (t *Transport) Name() string { return "console" }

func (t *Transport) SendMessage(_ context.Context, destination, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.out, "----- %s [%s] -----\n%s\n", destination, t.now().Format(time.DateTime), text)
	return err
}
