package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodConnector connects go-rod to a session's DevTools endpoint.
type RodConnector struct {
	Timeout time.Duration
}

// Connect opens a CDP connection bound to ctx.
func (c RodConnector) Connect(ctx context.Context, session *Session) (*rod.Browser, error) {
	b := rod.New().ControlURL(session.CDPURL).Context(ctx)
	if c.Timeout > 0 {
		b = b.Timeout(c.Timeout)
	}
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser session %s: %w", session.ID, err)
	}
	return b, nil
}

// DefaultSearchURL is opened when a task names no page.
const DefaultSearchURL = "https://duckduckgo.com/html/?q="

const maxContentChars = 4000

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// NewRodAgentFactory returns a factory for RodAgent.
func NewRodAgentFactory(connector RodConnector) AgentFactory {
	return func(_ context.Context, task Task, session *Session) (Agent, error) {
		return &RodAgent{task: task, session: session, connector: connector}, nil
	}
}

// RodAgent opens the first URL in the task, or a web search for it, and
// extracts the page text. It records a frame after every step.
type RodAgent struct {
	task      Task
	session   *Session
	connector RodConnector
	history   AgentHistory

	mu     sync.Mutex
	frames []image.Image
}

var _ Agent = (*RodAgent)(nil)

// Target returns the page the agent visits for a task.
func Target(task string) string {
	if u := urlPattern.FindString(task); u != "" {
		return strings.TrimRight(u, ".,;)")
	}
	return DefaultSearchURL + url.QueryEscape(task)
}

// Run navigates and extracts. maxSteps below two skips extraction.
func (a *RodAgent) Run(ctx context.Context, maxSteps int) error {
	target := Target(a.task.Task)
	a.history.AddThought(fmt.Sprintf("Open %s to work on: %s", target, a.task.Task))

	b, err := a.connector.Connect(ctx, a.session)
	if err != nil {
		a.history.AddError(err.Error())
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Debug("close browser session %s: %v", a.session.ID, err)
		}
	}()

	page, err := b.Page(proto.TargetCreateTarget{URL: target})
	if err != nil {
		a.history.AddError(err.Error())
		return fmt.Errorf("open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		a.history.AddError(err.Error())
		return fmt.Errorf("wait for page load: %w", err)
	}
	a.history.AddAction("go_to_url")
	a.capture(page)

	info, err := page.Info()
	if err == nil {
		a.history.AddURL(info.URL)
		a.history.AddResult("Navigated to " + info.Title)
	} else {
		a.history.AddURL(target)
	}

	if maxSteps < 2 {
		a.history.Finish("", false)
		return nil
	}

	body, err := page.Element("body")
	if err != nil {
		a.history.AddError(err.Error())
		return fmt.Errorf("find page body: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		a.history.AddError(err.Error())
		return fmt.Errorf("extract page text: %w", err)
	}
	a.history.AddAction("extract_content")
	content := truncate(strings.Join(strings.Fields(text), " "), maxContentChars)
	a.history.AddContent(content)
	a.capture(page)

	a.history.AddAction("done")
	a.history.Finish(content, true)
	return nil
}

// History implements Agent.
func (a *RodAgent) History() HistorySnapshot { return a.history.Snapshot() }

// GIF implements Agent.
func (a *RodAgent) GIF() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	out, err := EncodeGIF(a.frames, 100)
	if err != nil {
		logger.Warn("encode recording: %v", err)
		return nil
	}
	return out
}

func (a *RodAgent) capture(page *rod.Page) {
	shot, err := page.Screenshot(false, nil)
	if err != nil {
		logger.Debug("screenshot failed: %v", err)
		return
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		logger.Debug("decode screenshot: %v", err)
		return
	}
	a.mu.Lock()
	a.frames = append(a.frames, img)
	a.mu.Unlock()
}

// EncodeGIF combines frames into an animated GIF with delay hundredths of a
// second between frames. It returns nil when there are no frames.
func EncodeGIF(frames []image.Image, delay int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	anim := &gif.GIF{}
	for _, f := range frames {
		pal := image.NewPaletted(f.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(pal, f.Bounds(), f, f.Bounds().Min)
		anim.Image = append(anim.Image, pal)
		anim.Delay = append(anim.Delay, delay)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
