package nodes

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/communication"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/storage"
)

type fakeEmailProvider struct {
	sent []*communication.Email
	err  error
}

func (f *fakeEmailProvider) SendEmail(_ context.Context, msg *communication.Email) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "m1", nil
}

type fakeSMSProvider struct {
	sent []*communication.SMS
}

func (f *fakeSMSProvider) SendSMS(_ context.Context, msg *communication.SMS) (string, error) {
	f.sent = append(f.sent, msg)
	return "s1", nil
}

type fakeStorage struct {
	uploads map[string]string // bucket/key -> content
}

func (f *fakeStorage) Upload(_ context.Context, bucket, key string, data io.Reader, _ *storage.UploadOptions) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.uploads[bucket+"/"+key] = string(content)
	return nil
}

func (f *fakeStorage) Close() error { return nil }

type fakeQueue struct {
	messages map[string][]string
}

func (f *fakeQueue) Send(_ context.Context, destination string, message []byte, _ map[string]string) error {
	f.messages[destination] = append(f.messages[destination], string(message))
	return nil
}

func (f *fakeQueue) Close() error { return nil }

type fakeMongo struct {
	docs []map[string]interface{}
}

func (f *fakeMongo) InsertOne(_ context.Context, _, _ string, doc map[string]interface{}) error {
	f.docs = append(f.docs, doc)
	return nil
}

func TestEmailSendRendersAndValidatesRecipients(t *testing.T) {
	provider := &fakeEmailProvider{}
	n := EmailSend{
		Cfg: EmailSendConfig{
			From:            "noreply@example.com",
			ToTemplate:      []string{"{{user.email}}"},
			SubjectTemplate: "Order {{order}}",
			BodyTemplate:    "Hi {{user.name}}",
		},
		Provider: provider,
	}
	in := record.Map(map[string]record.Record{
		"order": record.Number(7),
		"user": record.Map(map[string]record.Record{
			"email": record.String("ada@example.com"),
			"name":  record.String("Ada"),
		}),
	})

	results := runNode(t, n, []In{closedChan(in)}, 1)
	require.Len(t, results[0], 1)
	require.Len(t, provider.sent, 1)
	assert.Equal(t, []string{"ada@example.com"}, provider.sent[0].To)
	assert.Equal(t, "Order 7", provider.sent[0].Subject)
	assert.Equal(t, "Hi Ada", provider.sent[0].Text)
}

func TestEmailSendRejectsInvalidRecipient(t *testing.T) {
	provider := &fakeEmailProvider{}
	n := EmailSend{
		Cfg:      EmailSendConfig{From: "noreply@example.com", ToTemplate: []string{"{{user.email}}"}},
		Provider: provider,
	}
	in := record.Map(map[string]record.Record{
		"user": record.Map(map[string]record.Record{"email": record.String("not-an-address")}),
	})

	out := make(chan record.Record, 1)
	err := n.Run(context.Background(), []In{closedChan(in)}, []Out{out})
	require.Error(t, err)
	assert.Empty(t, provider.sent)
}

func TestSMSSendRendersAllFields(t *testing.T) {
	provider := &fakeSMSProvider{}
	n := SMSSend{
		Cfg: SMSSendConfig{
			FromTemplate: "+15550000001",
			ToTemplate:   "{{phone}}",
			BodyTemplate: "code {{code}}",
		},
		Provider: provider,
	}
	in := record.Map(map[string]record.Record{
		"phone": record.String("+15550000002"),
		"code":  record.Number(1234),
	})

	runNode(t, n, []In{closedChan(in)}, 1)
	require.Len(t, provider.sent, 1)
	assert.Equal(t, "+15550000002", provider.sent[0].To)
	assert.Equal(t, "code 1234", provider.sent[0].Text)
}

func TestFileUploadSerializesRecordOrBodyPath(t *testing.T) {
	backend := &fakeStorage{uploads: make(map[string]string)}
	n := FileUpload{
		Cfg: FileUploadConfig{
			BucketTemplate: "exports",
			KeyTemplate:    "run-{{id}}.json",
			BodyPath:       "payload",
		},
		Storage: backend,
	}
	in := record.Map(map[string]record.Record{
		"id":      record.Number(3),
		"payload": record.String("line one"),
	})

	runNode(t, n, []In{closedChan(in)}, 1)
	assert.Equal(t, "line one", backend.uploads["exports/run-3.json"])
}

func TestMessagePublishMarshalsBody(t *testing.T) {
	queue := &fakeQueue{messages: make(map[string][]string)}
	n := MessagePublish{
		Cfg:   MessagePublishConfig{DestinationTemplate: "orders.{{region}}"},
		Queue: queue,
	}
	in := record.Map(map[string]record.Record{
		"region": record.String("eu"),
		"id":     record.Number(1),
	})

	runNode(t, n, []In{closedChan(in)}, 1)
	require.Len(t, queue.messages["orders.eu"], 1)
	assert.JSONEq(t, `{"region":"eu","id":1}`, queue.messages["orders.eu"][0])
}

func TestMongoWriteWrapsNonMapRecords(t *testing.T) {
	client := &fakeMongo{}
	n := MongoWrite{
		Cfg:    MongoWriteConfig{Database: "db", CollectionTemplate: "events"},
		Client: client,
	}

	runNode(t, n, []In{closedChan(record.String("bare"), record.Map(map[string]record.Record{"k": record.Number(2)}))}, 1)
	require.Len(t, client.docs, 2)
	assert.Equal(t, map[string]interface{}{"value": "bare"}, client.docs[0])
	assert.Equal(t, map[string]interface{}{"k": 2.0}, client.docs[1])
}
