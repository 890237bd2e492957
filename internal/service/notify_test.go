package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// fakeSQS запоминает отправленные сообщения.
type fakeSQS struct {
	mu     sync.Mutex
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) sent() []*sqs.SendMessageInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sqs.SendMessageInput(nil), f.inputs...)
}

func waitSent(t *testing.T, f *fakeSQS, n int) []*sqs.SendMessageInput {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := f.sent(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ожидалось %d сообщений, отправлено %d", n, len(f.sent()))
	return nil
}

func TestNotifier_PublishesUploadEvents(t *testing.T) {
	f := newCoordFixture(t, 0, true)
	client := &fakeSQS{}
	n := NewNotifier(client, "https://sqs.eu-west-1.amazonaws.com/123/uploads", testLogger())
	f.coord.Subscribe(n)

	ctx := context.Background()
	n.Start(ctx)
	defer func() { _ = n.Shutdown(ctx) }()

	rec, err := f.coord.Submit(ctx, candidate("notes.txt", "text/plain", []byte("hello")), "math")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.coord.Remove(ctx, rec.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	inputs := waitSent(t, client, 2)

	var created, removed Notification
	if err := json.Unmarshal([]byte(aws.ToString(inputs[0].MessageBody)), &created); err != nil {
		t.Fatalf("разбор сообщения: %v", err)
	}
	if err := json.Unmarshal([]byte(aws.ToString(inputs[1].MessageBody)), &removed); err != nil {
		t.Fatalf("разбор сообщения: %v", err)
	}
	if created.Type != NotificationCreated || created.UploadID != rec.ID || created.Subject != "math" ||
		created.Location != "remote" || created.URL == "" || created.Size != 5 {
		t.Errorf("upload.created = %+v", created)
	}
	if removed.Type != NotificationRemoved || removed.UploadID != rec.ID {
		t.Errorf("upload.removed = %+v", removed)
	}
	if inputs[0].MessageGroupId != nil {
		t.Error("для стандартной очереди группа не задаётся")
	}
}

func TestNotifier_FIFO(t *testing.T) {
	client := &fakeSQS{}
	n := NewNotifier(client, "https://sqs.eu-west-1.amazonaws.com/123/uploads.fifo", testLogger())
	ctx := context.Background()
	n.Start(ctx)
	defer func() { _ = n.Shutdown(ctx) }()

	n.HandleEvent(Event{Kind: EventRecordRemoved, UploadID: "file_1_abc", At: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)})

	inputs := waitSent(t, client, 1)
	if aws.ToString(inputs[0].MessageGroupId) != "uploads" {
		t.Errorf("MessageGroupId = %q", aws.ToString(inputs[0].MessageGroupId))
	}
	if aws.ToString(inputs[0].MessageDeduplicationId) != "upload.removed:file_1_abc:20260401T000000.000" {
		t.Errorf("MessageDeduplicationId = %q", aws.ToString(inputs[0].MessageDeduplicationId))
	}
}

func TestNotifier_IgnoresProgressEvents(t *testing.T) {
	for _, kind := range []EventKind{EventProgressStarted, EventProgressSettled, EventProgressFailed, EventListed} {
		if _, ok := notificationFromEvent(Event{Kind: kind, UploadID: "x"}); ok {
			t.Errorf("событие %s не должно порождать уведомление", kind)
		}
	}
}

func TestNotifier_HandleEventDoesNotBlock(t *testing.T) {
	// Без Start буфер заполняется, лишние уведомления отбрасываются
	n := NewNotifier(&fakeSQS{}, "q", testLogger())
	done := make(chan struct{})
	go func() {
		for i := 0; i < notifyBuffer+10; i++ {
			n.HandleEvent(Event{Kind: EventRecordRemoved, UploadID: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleEvent заблокировался")
	}
	if len(n.ch) != notifyBuffer {
		t.Errorf("в буфере %d, ожидалось %d", len(n.ch), notifyBuffer)
	}
}
