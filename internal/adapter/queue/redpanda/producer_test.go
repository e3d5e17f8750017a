package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/fairyhunter13/screening-gate/internal/adapter/observability"
	"github.com/fairyhunter13/screening-gate/internal/domain"
)

type fakeClient struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeClient) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}
func (f *fakeClient) Ping(context.Context) error { return f.err }
func (f *fakeClient) Close()                     { f.closed = true }

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_PublishApplicationSubmitted(t *testing.T) {
	fc := &fakeClient{}
	p := newProducerWithClient(fc, "")
	ctx := observability.ContextWithRequestID(context.Background(), "req-1")
	at := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	err := p.PublishApplicationSubmitted(ctx, domain.ApplicationSubmitted{
		ApplicationID: "app-1", JobID: "job-1", CandidateEmail: "a@example.com", Channel: domain.ChannelOneClick, SubmittedAt: at,
	})
	require.NoError(t, err)
	require.Len(t, fc.records, 1)
	rec := fc.records[0]
	assert.Equal(t, DefaultTopic, rec.Topic)
	assert.Equal(t, "job-1", string(rec.Key))
	assert.Equal(t, EventApplicationSubmitted, header(rec, "event_type"))
	assert.Equal(t, "req-1", header(rec, "request_id"))

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Value, &env))
	assert.Equal(t, EventApplicationSubmitted, env.Type)
	assert.True(t, env.OccurredAt.Equal(at))
	var payload domain.ApplicationSubmitted
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "app-1", payload.ApplicationID)
}

func TestProducer_PublishSessionEvaluated_Error(t *testing.T) {
	fc := &fakeClient{err: errors.New("broker unavailable")}
	p := newProducerWithClient(fc, "custom")
	err := p.PublishSessionEvaluated(context.Background(), domain.SessionEvaluated{JobID: "job-1", Status: domain.SessionFailed, FailedRules: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EventSessionEvaluated)
	assert.Equal(t, "custom", fc.records[0].Topic)
	assert.Empty(t, header(fc.records[0], "request_id"))

	require.Error(t, p.Ping(context.Background()))
	require.NoError(t, p.Close())
	assert.True(t, fc.closed)
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), nil, "")
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	var n Noop
	require.NoError(t, n.PublishApplicationSubmitted(context.Background(), domain.ApplicationSubmitted{}))
	require.NoError(t, n.PublishSessionEvaluated(context.Background(), domain.SessionEvaluated{}))
}

type fakeRequester struct {
	code int16
	err  error
}

func (f fakeRequester) Request(_ context.Context, req kmsg.Request) (kmsg.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	in := req.(*kmsg.CreateTopicsRequest)
	resp := kmsg.NewPtrCreateTopicsResponse()
	for _, t := range in.Topics {
		rt := kmsg.NewCreateTopicsResponseTopic()
		rt.Topic = t.Topic
		rt.ErrorCode = f.code
		resp.Topics = append(resp.Topics, rt)
	}
	return resp, nil
}

func TestCreateTopicIfNotExists(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, createTopicIfNotExists(ctx, fakeRequester{}, "events", 1, 1))
	require.NoError(t, createTopicIfNotExists(ctx, fakeRequester{code: kerr.TopicAlreadyExists.Code}, "events", 1, 1))

	err := createTopicIfNotExists(ctx, fakeRequester{code: kerr.TopicAuthorizationFailed.Code}, "events", 1, 1)
	require.ErrorIs(t, err, kerr.TopicAuthorizationFailed)

	require.Error(t, createTopicIfNotExists(ctx, fakeRequester{err: errors.New("dial")}, "events", 1, 1))
	require.Error(t, createTopicIfNotExists(ctx, fakeRequester{}, "", 1, 1))
	require.Error(t, createTopicIfNotExists(ctx, fakeRequester{}, "events", 0, 1))
}
