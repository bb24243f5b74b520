package dummy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
	"github.com/stupiduntilnot/meditalk/internal/model"
)

var hi = []ctxpkg.Turn{ctxpkg.EncodeTurn("hi", nil)}

func TestNewProvider_InvalidScript(t *testing.T) {
	if _, err := NewProvider("boom"); err == nil {
		t.Fatal("expected parse error for invalid script")
	}
	if _, err := NewProvider("msgb64:!!!"); err == nil {
		t.Fatal("expected parse error for invalid base64")
	}
}

func TestProvider_ScriptedResponses(t *testing.T) {
	p, err := NewProvider("err:provider_api,msg:hello")
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Complete(context.Background(), hi)
	if !errors.Is(err, model.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}

	for i := 0; i < 2; i++ {
		resp, err := p.Complete(context.Background(), hi)
		if err != nil {
			t.Fatal(err)
		}
		if resp.Content != "hello" {
			t.Fatalf("call %d: expected hello, got %q", i+2, resp.Content)
		}
	}
	if p.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", p.Calls())
	}
}

func TestProvider_MsgB64Action(t *testing.T) {
	p, err := NewProvider("msgb64:aGVsbG8=") // "hello"
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), hi)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("expected hello, got %q", resp.Content)
	}
}

func TestProvider_EmptyActionRepliesBlank(t *testing.T) {
	p, err := NewProvider("empty")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), hi)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "" {
		t.Fatalf("expected blank reply, got %q", resp.Content)
	}
}

func TestProvider_ErrorClasses(t *testing.T) {
	p, err := NewProvider("err:auth,err:timeout,err:rate_limit")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Complete(context.Background(), hi); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := p.Complete(context.Background(), hi); !errors.Is(err, model.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	_, err = p.Complete(context.Background(), hi)
	var be *model.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *model.BackendError, got %T", err)
	}
	if be.Message != "dummy provider error class=rate_limit" {
		t.Errorf("unexpected message %q", be.Message)
	}
}

func TestProvider_SleepHonorsContext(t *testing.T) {
	p, err := NewProvider("sleep:5000")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.Complete(ctx, hi)
	if !errors.Is(err, model.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("sleep ignored cancellation, took %s", elapsed)
	}
}

func TestProvider_ConcurrentCalls(t *testing.T) {
	p, err := NewProvider("ok")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Complete(context.Background(), hi)
		}()
	}
	wg.Wait()
	if p.Calls() != 16 {
		t.Errorf("expected 16 calls, got %d", p.Calls())
	}
}
