package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowgraph/runtime/internal/communication"
	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/messaging"
	"github.com/flowgraph/runtime/internal/notification"
	"github.com/flowgraph/runtime/internal/security"
	"github.com/flowgraph/runtime/internal/storage"
	"github.com/redis/go-redis/v9"
)

var emailValidator = security.NewInputValidator()

// SlackMessageConfig templates a SlackNotifier payload per record.
type SlackMessageConfig struct {
	TextTemplate string
}

// SlackMessage posts a Slack message for each input record and forwards
// the record unchanged once the post succeeds.
type SlackMessage struct {
	Cfg      SlackMessageConfig
	Notifier *notification.SlackNotifier
}

func (s SlackMessage) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		text := expression.Render(s.Cfg.TextTemplate, v)
		if err := s.Notifier.Send(ctx, notification.SlackMessage{Text: text}); err != nil {
			return fmt.Errorf("slack message: %w", err)
		}
		outputs[0] <- v
	}
	return nil
}

// EmailSendConfig templates an outgoing email per record.
type EmailSendConfig struct {
	From            string
	ToTemplate      []string
	SubjectTemplate string
	BodyTemplate    string
}

// EmailSend sends one email per input record through any
// communication.EmailProvider (SendGrid, Mailgun, SES, SMTP) and
// forwards the record unchanged.
type EmailSend struct {
	Cfg      EmailSendConfig
	Provider communication.EmailProvider
}

func (e EmailSend) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		to := make([]string, len(e.Cfg.ToTemplate))
		for i, tmpl := range e.Cfg.ToTemplate {
			rendered := expression.Render(tmpl, v)
			if err := emailValidator.ValidateEmail(rendered); err != nil {
				return fmt.Errorf("email send: recipient %d: %w", i, err)
			}
			to[i] = rendered
		}
		msg := &communication.Email{
			From:    e.Cfg.From,
			To:      to,
			Subject: expression.Render(e.Cfg.SubjectTemplate, v),
			Text:    expression.Render(e.Cfg.BodyTemplate, v),
		}
		if _, err := e.Provider.SendEmail(ctx, msg); err != nil {
			return fmt.Errorf("email send: %w", err)
		}
		outputs[0] <- v
	}
	return nil
}

// SMSSendConfig templates an outgoing SMS per record.
type SMSSendConfig struct {
	FromTemplate string
	ToTemplate   string
	BodyTemplate string
}

// SMSSend sends one SMS per input record through any
// communication.SMSProvider (Twilio, SNS, MessageBird) and forwards the
// record unchanged.
type SMSSend struct {
	Cfg      SMSSendConfig
	Provider communication.SMSProvider
}

func (s SMSSend) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		msg := &communication.SMS{
			From: expression.Render(s.Cfg.FromTemplate, v),
			To:   expression.Render(s.Cfg.ToTemplate, v),
			Text: expression.Render(s.Cfg.BodyTemplate, v),
		}
		if _, err := s.Provider.SendSMS(ctx, msg); err != nil {
			return fmt.Errorf("sms send: %w", err)
		}
		outputs[0] <- v
	}
	return nil
}

// FileUploadConfig templates an object-storage destination and content
// per record.
type FileUploadConfig struct {
	BucketTemplate string
	KeyTemplate    string
	// BodyPath selects the field holding the upload content as a string;
	// empty means serialize the whole record as JSON text.
	BodyPath string
}

// FileUpload writes one object per input record through any
// storage.FileStorage (S3, GCS, Azure Blob) and forwards the record
// unchanged.
type FileUpload struct {
	Cfg     FileUploadConfig
	Storage storage.FileStorage
}

func (f FileUpload) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		bucket := expression.Render(f.Cfg.BucketTemplate, v)
		key := expression.Render(f.Cfg.KeyTemplate, v)
		body := v
		if f.Cfg.BodyPath != "" {
			body = expression.Search(f.Cfg.BodyPath, v)
		}
		content := expression.ToString(body)
		if err := f.Storage.Upload(ctx, bucket, key, strings.NewReader(content), nil); err != nil {
			return fmt.Errorf("file upload: %w", err)
		}
		outputs[0] <- v
	}
	return nil
}

// MessagePublishConfig templates a destination per record.
type MessagePublishConfig struct {
	DestinationTemplate string
	// BodyPath selects the field to serialize as the message body;
	// empty means the whole record.
	BodyPath string
}

// MessagePublish publishes one message per input record through any
// messaging.MessageQueue (Kafka, RabbitMQ, SQS) and forwards the
// record unchanged.
type MessagePublish struct {
	Cfg   MessagePublishConfig
	Queue messaging.MessageQueue
}

func (m MessagePublish) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		dest := expression.Render(m.Cfg.DestinationTemplate, v)
		body := v
		if m.Cfg.BodyPath != "" {
			body = expression.Search(m.Cfg.BodyPath, v)
		}
		data, err := body.MarshalJSON()
		if err != nil {
			return fmt.Errorf("message publish: %w", err)
		}
		if err := m.Queue.Send(ctx, dest, data, nil); err != nil {
			return fmt.Errorf("message publish: %w", err)
		}
		outputs[0] <- v
	}
	return nil
}

// MongoWriteConfig templates the collection a record is written into.
type MongoWriteConfig struct {
	Database           string
	CollectionTemplate string
}

// MongoWriter is the subset of mongo-driver's *mongo.Collection used by
// MongoWrite, narrowed so the node can be tested against a fake.
type MongoWriter interface {
	InsertOne(ctx context.Context, database, collection string, document map[string]interface{}) error
}

// MongoWrite inserts one document per input record into a MongoDB
// collection and forwards the record unchanged.
type MongoWrite struct {
	Cfg    MongoWriteConfig
	Client MongoWriter
}

func (m MongoWrite) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		collection := expression.Render(m.Cfg.CollectionTemplate, v)
		doc, _ := v.Native().(map[string]interface{})
		if doc == nil {
			doc = map[string]interface{}{"value": v.Native()}
		}
		if err := m.Client.InsertOne(ctx, m.Cfg.Database, collection, doc); err != nil {
			return fmt.Errorf("mongo write: %w", err)
		}
		outputs[0] <- v
	}
	return nil
}

// RedisCacheConfig templates the key (and optional TTL) a record is
// cached under.
type RedisCacheConfig struct {
	KeyTemplate string
	TTL         time.Duration
	// ValuePath selects the field to cache; empty means the whole
	// record, serialized as JSON text.
	ValuePath string
}

// RedisCache writes one key per input record to Redis (grounded on the
// go-redis client directly, since SET/EXPIRE is a thin enough
// operation that no further wrapper earns its keep) and forwards the
// record unchanged.
type RedisCache struct {
	Cfg    RedisCacheConfig
	Client *redis.Client
}

func (r RedisCache) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		key := expression.Render(r.Cfg.KeyTemplate, v)
		value := v
		if r.Cfg.ValuePath != "" {
			value = expression.Search(r.Cfg.ValuePath, v)
		}
		data, err := value.MarshalJSON()
		if err != nil {
			return fmt.Errorf("redis cache: %w", err)
		}
		if err := r.Client.Set(ctx, key, data, r.Cfg.TTL).Err(); err != nil {
			return fmt.Errorf("redis cache: %w", err)
		}
		outputs[0] <- v
	}
	return nil
}
