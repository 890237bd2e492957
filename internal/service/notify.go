// notify.go — публикация уведомлений о загрузках в очередь SQS.
//
// Notifier подписывается на события координатора и отправляет сообщения
// upload.created / upload.removed другим частям сайта (лента чата).
// Отправка идёт в отдельной горутине через буферизованный канал;
// ошибки отправки только логируются.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Типы уведомлений.
const (
	NotificationCreated = "upload.created"
	NotificationRemoved = "upload.removed"
)

// notifyBuffer — ёмкость очереди неотправленных уведомлений.
const notifyBuffer = 256

// messageGroupID — группа сообщений для FIFO-очередей.
const messageGroupID = "uploads"

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uc_notifications_total",
	Help: "Количество уведомлений по результату (sent, failed, dropped)",
}, []string{"result"})

// SQSAPI — операции SQS, используемые Notifier.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Notification — тело сообщения.
type Notification struct {
	Type     string    `json:"type"`
	UploadID string    `json:"upload_id"`
	Name     string    `json:"name,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Subject  string    `json:"subject,omitempty"`
	Location string    `json:"location,omitempty"`
	URL      string    `json:"url,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier — подписчик координатора, отправляющий уведомления в SQS.
type Notifier struct {
	client   SQSAPI
	queueURL string
	fifo     bool
	logger   *slog.Logger

	ch     chan Notification
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier создаёт Notifier. Для очередей *.fifo задаются группа
// и идентификатор дедупликации.
func NewNotifier(client SQSAPI, queueURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		logger:   logger.With(slog.String("component", "notifier")),
		ch:       make(chan Notification, notifyBuffer),
	}
}

// HandleEvent преобразует событие в уведомление и ставит его в очередь.
// Не блокируется: при переполненном буфере уведомление отбрасывается.
func (n *Notifier) HandleEvent(e Event) {
	msg, ok := notificationFromEvent(e)
	if !ok {
		return
	}
	select {
	case n.ch <- msg:
	default:
		notificationsTotal.WithLabelValues("dropped").Inc()
		n.logger.Warn("Буфер уведомлений переполнен, уведомление отброшено",
			slog.String("type", msg.Type),
			slog.String("upload_id", msg.UploadID),
		)
	}
}

func notificationFromEvent(e Event) (Notification, bool) {
	switch e.Kind {
	case EventRecordAdded:
		if e.Record == nil {
			return Notification{}, false
		}
		rec := e.Record
		return Notification{
			Type:     NotificationCreated,
			UploadID: rec.ID,
			Name:     rec.Name,
			MimeType: rec.MimeType,
			Size:     rec.SizeBytes,
			Subject:  rec.SubjectTag,
			Location: string(rec.Location.Kind()),
			URL:      remoteURL(rec.Location.Remote()),
			At:       e.At,
		}, true
	case EventRecordRemoved:
		return Notification{Type: NotificationRemoved, UploadID: e.UploadID, At: e.At}, true
	default:
		return Notification{}, false
	}
}

func remoteURL(url, _ string, ok bool) string {
	if !ok {
		return ""
	}
	return url
}

// Start запускает горутину отправки.
func (n *Notifier) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.loop(runCtx)
	}()

	n.logger.Info("Отправка уведомлений запущена", slog.String("queue_url", n.queueURL))
}

func (n *Notifier) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.ch:
			n.send(ctx, msg)
		}
	}
}

func (n *Notifier) send(ctx context.Context, msg Notification) {
	body, err := json.Marshal(msg)
	if err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		n.logger.Error("Ошибка сериализации уведомления", slog.String("error", err.Error()))
		return
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if n.fifo {
		input.MessageGroupId = aws.String(messageGroupID)
		input.MessageDeduplicationId = aws.String(msg.Type + ":" + msg.UploadID + ":" + msg.At.Format("20060102T150405.000"))
	}

	if _, err := n.client.SendMessage(ctx, input); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		n.logger.Warn("Не удалось отправить уведомление",
			slog.String("type", msg.Type),
			slog.String("upload_id", msg.UploadID),
			slog.String("error", err.Error()),
		)
		return
	}
	notificationsTotal.WithLabelValues("sent").Inc()
	n.logger.Debug("Уведомление отправлено",
		slog.String("type", msg.Type),
		slog.String("upload_id", msg.UploadID),
	)
}

// Shutdown останавливает отправку и ждёт завершения горутины
// или истечения ctx. Неотправленные уведомления теряются.
func (n *Notifier) Shutdown(ctx context.Context) error {
	if n.cancel == nil {
		return nil
	}
	n.cancel()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
