package server

import (
	"context"
	"errors"
	"image"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/palmprint/internal/align"
	"github.com/ayusman/palmprint/internal/app"
	"github.com/ayusman/palmprint/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeWait = time.Second

// Message types sent to capture clients.
const (
	MessageGuide  = "guide"
	MessageStatus = "status"
	MessageResult = "result"
	MessageError  = "error"
)

// guideMessage describes where the hand must be held. It is sent once,
// before the first status, so a client can draw the guide box.
type guideMessage struct {
	Type        string            `json:"type"`
	FrameWidth  int               `json:"frame_width"`
	FrameHeight int               `json:"frame_height"`
	Guide       align.GuideRegion `json:"guide"`
	Inset       image.Rectangle   `json:"inset"`
}

func newGuideMessage(e align.Evaluator) guideMessage {
	return guideMessage{
		Type:        MessageGuide,
		FrameWidth:  e.Frame.Width,
		FrameHeight: e.Frame.Height,
		Guide:       e.Guide,
		Inset:       e.InsetRect().Image(),
	}
}

// statusMessage is sent once per processed frame and per state change.
type statusMessage struct {
	Type string `json:"type"`
	session.Status
}

// resultMessage ends a capture. The fingerprint itself stays on the server;
// clients get the journal ID and CID to refer to it.
type resultMessage struct {
	Type  string        `json:"type"`
	ID    string        `json:"id"`
	State session.State `json:"state"`
	CID   string        `json:"cid,omitempty"`
	Error string        `json:"error,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// CaptureHandler runs one capture session per WebSocket connection and
// streams its status. Closing the connection cancels the session.
type CaptureHandler struct {
	app *app.App
}

// NewCaptureHandler creates a new CaptureHandler backed by a.
func NewCaptureHandler(a *app.App) *CaptureHandler {
	return &CaptureHandler{app: a}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Any read failure means the client went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	c := &captureConn{conn: conn, cancel: cancel}
	guide := newGuideMessage(h.app.Settings().Evaluator())
	guided := false

	out, err := h.app.Capture(ctx, func(st session.Status) {
		if !guided {
			c.write(guide)
			guided = true
		}
		c.write(statusMessage{Type: MessageStatus, Status: st})
	})
	if errors.Is(err, app.ErrBusy) {
		c.write(errorMessage{Type: MessageError, Error: err.Error()})
		c.close()
		return
	}

	msg := resultMessage{
		Type:  MessageResult,
		ID:    out.ID,
		State: out.Result.State,
		CID:   out.CID,
	}
	if err != nil {
		msg.Error = err.Error()
	}
	c.write(msg)
	c.close()
}

// captureConn serializes writes and stops the session on the first
// failed write.
type captureConn struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	mu     sync.Mutex
	broken bool
}

func (c *captureConn) write(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		log.Printf("websocket write error: %v", err)
		c.broken = true
		c.cancel()
	}
}

func (c *captureConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
