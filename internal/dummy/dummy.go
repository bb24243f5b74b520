package dummy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
	"github.com/stupiduntilnot/meditalk/internal/model"
)

type action struct {
	kind string
	arg  string
}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		switch {
		case token == "ok" || token == "empty":
			actions = append(actions, action{kind: token})
		case strings.HasPrefix(token, "err:"):
			actions = append(actions, action{kind: "err", arg: strings.TrimPrefix(token, "err:")})
		case strings.HasPrefix(token, "sleep:"):
			actions = append(actions, action{kind: "sleep", arg: strings.TrimPrefix(token, "sleep:")})
		case strings.HasPrefix(token, "msg:"):
			actions = append(actions, action{kind: "msg", arg: strings.TrimPrefix(token, "msg:")})
		case strings.HasPrefix(token, "msgb64:"):
			arg := strings.TrimPrefix(token, "msgb64:")
			if _, err := base64.StdEncoding.DecodeString(arg); err != nil {
				return nil, fmt.Errorf("invalid dummy action %s: %w", token, err)
			}
			actions = append(actions, action{kind: "msgb64", arg: arg})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

// next returns the next action; the last one repeats once the script is spent.
func (r *scriptRunner) next() action {
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Provider is a scripted model.Completer for local runs and tests.
//
// Script actions, comma separated:
//
//	ok             reply "dummy-ok"
//	msg:<text>     reply <text>
//	msgb64:<b64>   reply the decoded text
//	empty          reply ""
//	sleep:<ms>     wait, then reply "dummy-after-sleep"
//	err:auth       fail with model.ErrUnauthorized
//	err:timeout    fail with model.ErrTimeout
//	err:<class>    fail with a generic backend error
type Provider struct {
	mu     sync.Mutex
	script *scriptRunner
	calls  int
}

// NewProvider parses script and returns a Provider positioned at its first
// action. An empty script behaves like "ok".
func NewProvider(script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{script: runner}, nil
}

// Calls returns how many completions have been requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Complete runs the next scripted action. The reply ignores messages apart
// from reporting their count as input tokens.
func (p *Provider) Complete(ctx context.Context, messages []ctxpkg.Turn) (model.Completion, error) {
	p.mu.Lock()
	p.calls++
	a := p.script.next()
	p.mu.Unlock()

	input := len(messages)
	switch a.kind {
	case "ok":
		return completion("dummy-ok", input), nil
	case "empty":
		return completion("", input), nil
	case "msg":
		return completion(a.arg, input), nil
	case "msgb64":
		raw, _ := base64.StdEncoding.DecodeString(a.arg)
		return completion(string(raw), input), nil
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return model.Completion{}, &model.BackendError{Message: "dummy provider interrupted", Err: model.ErrTimeout}
			case <-timer.C:
			}
		}
		return completion("dummy-after-sleep", input), nil
	case "err":
		switch a.arg {
		case "auth":
			return model.Completion{}, &model.BackendError{Status: 401, Message: "dummy provider rejected credential", Err: model.ErrUnauthorized}
		case "timeout":
			return model.Completion{}, &model.BackendError{Message: "dummy provider timed out", Err: model.ErrTimeout}
		default:
			return model.Completion{}, &model.BackendError{
				Status:  500,
				Message: fmt.Sprintf("dummy provider error class=%s", emptyAs(a.arg, "provider_api")),
			}
		}
	default:
		return completion("dummy-ok", input), nil
	}
}

func completion(content string, input int) model.Completion {
	return model.Completion{Content: content, InputTokens: input, OutputTokens: 1}
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
