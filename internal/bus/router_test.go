package bus

import (
	"context"
	"errors"
	"testing"

	"chatarchiver/internal/domain"
)

func TestRouter_DispatchesByAction(t *testing.T) {
	r := NewRouter(testLogger())

	var seen domain.Request
	r.Handle(domain.ActionGetChatPreview, func(ctx context.Context, req domain.Request) (domain.Response, error) {
		seen = req
		return domain.Response{Success: true, Preview: "user: hi..."}, nil
	})

	resp, err := r.Send(context.Background(), domain.Request{ID: "req-1", Action: domain.ActionGetChatPreview})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Preview != "user: hi..." {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.ID != "req-1" || seen.ID != "req-1" {
		t.Errorf("request ID not propagated: resp=%q handler=%q", resp.ID, seen.ID)
	}
}

func TestRouter_AssignsID(t *testing.T) {
	r := NewRouter(testLogger())
	r.Handle(domain.ActionSaveChat, func(ctx context.Context, req domain.Request) (domain.Response, error) {
		return domain.Response{Success: true}, nil
	})

	resp, err := r.Send(context.Background(), domain.Request{Action: domain.ActionSaveChat})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" {
		t.Error("expected generated request ID")
	}
}

func TestRouter_UnknownAction(t *testing.T) {
	r := NewRouter(testLogger())

	resp, err := r.Send(context.Background(), domain.Request{Action: "reboot"})
	if !errors.Is(err, domain.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("expected failed response, got %+v", resp)
	}
}

func TestRouter_HandlerError(t *testing.T) {
	r := NewRouter(testLogger())
	boom := errors.New("boom")
	r.Handle(domain.ActionToggleAutoSave, func(ctx context.Context, req domain.Request) (domain.Response, error) {
		return domain.Response{}, boom
	})

	resp, err := r.Send(context.Background(), domain.Request{Action: domain.ActionToggleAutoSave})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if resp.Error != "boom" {
		t.Errorf("expected error text in response, got %q", resp.Error)
	}
}

func TestRouter_RecoversPanic(t *testing.T) {
	r := NewRouter(testLogger())
	r.Handle(domain.ActionSaveChat, func(ctx context.Context, req domain.Request) (domain.Response, error) {
		panic("handler exploded")
	})

	resp, err := r.Send(context.Background(), domain.Request{ID: "p", Action: domain.ActionSaveChat})
	if err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if resp.ID != "p" || resp.Success {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRouter_Close(t *testing.T) {
	r := NewRouter(testLogger())
	r.Handle(domain.ActionSaveChat, func(ctx context.Context, req domain.Request) (domain.Response, error) {
		return domain.Response{Success: true}, nil
	})
	r.Close()

	if _, err := r.Send(context.Background(), domain.Request{Action: domain.ActionSaveChat}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestRouter_ImplementsSender(t *testing.T) {
	var _ domain.Sender = NewRouter(testLogger())
}
