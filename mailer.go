package warehouse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// MailMessage is the unit of work pushed onto the outbound mail queue
type MailMessage struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	HTMLBody   string   `json:"html_body"`
	Attempts   int      `json:"attempts"`
}

func (m MailMessage) Type() string { return "notification.send_email" }

// Validate rejects messages that could never be delivered
func (m MailMessage) Validate() error {
	if len(m.Recipients) == 0 {
		return errors.New("mail message requires at least one recipient", errors.CategoryValidation)
	}
	if m.Subject == "" {
		return errors.New("mail message requires a subject", errors.CategoryValidation)
	}
	return nil
}

var _ command.Message = MailMessage{}

// Sender performs the actual delivery of a single message
type Sender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// LogSender writes outbound mail to the log instead of delivering it.
// Useful for development and the default until SMTP credentials exist.
type LogSender struct {
	Logger Logger
}

func (s LogSender) Send(_ context.Context, msg MailMessage) error {
	logger := s.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("mail to=%v subject=%q bytes=%d", msg.Recipients, msg.Subject, len(msg.HTMLBody))
	return nil
}

// RedisMailQueue implements Mailer over a redis list. Producers LPUSH, the
// worker BRPOPs, so delivery order is FIFO per queue key.
type RedisMailQueue struct {
	client *redis.Client
	key    string
}

var _ Mailer = (*RedisMailQueue)(nil)

func NewRedisMailQueue(client *redis.Client, key string) *RedisMailQueue {
	if key == "" {
		key = "warehouse:mail"
	}
	return &RedisMailQueue{client: client, key: key}
}

func (q *RedisMailQueue) Enqueue(ctx context.Context, msg MailMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode mail message")
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to enqueue mail message")
	}

	return nil
}

// MailWorker drains the queue and hands messages to the Sender. Failed
// deliveries are re-queued until maxAttempts is exhausted.
type MailWorker struct {
	client      *redis.Client
	key         string
	sender      Sender
	logger      Logger
	maxAttempts int
}

func NewMailWorker(client *redis.Client, key string, sender Sender, logger Logger) *MailWorker {
	if key == "" {
		key = "warehouse:mail"
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &MailWorker{
		client:      client,
		key:         key,
		sender:      sender,
		logger:      logger,
		maxAttempts: 3,
	}
}

// Run blocks consuming the queue until ctx is cancelled
func (w *MailWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := w.client.BRPop(ctx, 5*time.Second, w.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("mail worker queue read error: %v", err)
			continue
		}

		// BRPOP returns [key, value]
		if len(res) != 2 {
			continue
		}

		var msg MailMessage
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			w.logger.Error("mail worker dropping undecodable message: %v", err)
			continue
		}

		w.deliver(ctx, msg)
	}
}

func (w *MailWorker) deliver(ctx context.Context, msg MailMessage) {
	err := w.sender.Send(ctx, msg)
	if err == nil {
		return
	}

	msg.Attempts++
	if msg.Attempts >= w.maxAttempts {
		w.logger.Error("mail delivery abandoned after %d attempts subject=%q: %v", msg.Attempts, msg.Subject, err)
		return
	}

	w.logger.Warn("mail delivery failed, requeueing attempt=%d subject=%q: %v", msg.Attempts, msg.Subject, err)
	payload, merr := json.Marshal(msg)
	if merr != nil {
		w.logger.Error("mail worker failed to re-encode message: %v", merr)
		return
	}
	if perr := w.client.LPush(ctx, w.key, payload).Err(); perr != nil {
		w.logger.Error("mail worker failed to requeue message: %v", perr)
	}
}

// MemoryMailQueue collects messages in memory; used by tests and local runs
// without redis.
type MemoryMailQueue struct {
	mu       sync.Mutex
	messages []MailMessage
}

var _ Mailer = (*MemoryMailQueue)(nil)

func NewMemoryMailQueue() *MemoryMailQueue {
	return &MemoryMailQueue{}
}

func (q *MemoryMailQueue) Enqueue(_ context.Context, msg MailMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

// Messages returns a copy of everything enqueued so far
func (q *MemoryMailQueue) Messages() []MailMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]MailMessage, len(q.messages))
	copy(out, q.messages)
	return out
}
