package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/relay-connector/internal/ilp"
)

type fakeRouter struct {
	fulfill *ilp.Fulfill
	err     error
	calls   []*ilp.Prepare
}

func (r *fakeRouter) Route(ctx context.Context, prepare *ilp.Prepare) (*ilp.Fulfill, error) {
	r.calls = append(r.calls, prepare)
	return r.fulfill, r.err
}

func TestPipelineForwardsToRouter(t *testing.T) {
	rt := &fakeRouter{fulfill: testFulfill()}
	sink := NewTelemetrySink(0, 3, time.Second, &recordingExporter{}, discardLogger())
	chain := NewPipeline(PipelineConfig{
		Address:    ilp.MustAddress("test.relay"),
		AssetScale: 9,
		AssetCode:  []byte("XRP"),
		Peers:      testPeers(),
		MaxTimeout: DefaultMaxTimeout,
		Sink:       sink,
		Router:     rt,
		Log:        discardLogger(),
	})

	headers := http.Header{}
	headers.Set("Authorization", "token_1")
	req := &Request{
		Prepare: &ilp.Prepare{
			Amount:      50,
			ExpiresAt:   time.Now().Add(time.Minute),
			Destination: ilp.MustAddress("test.relay.downstream"),
		},
		Headers: headers,
	}

	fulfill, err := chain.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, testFulfill(), fulfill)
	require.Len(t, rt.calls, 1)
	assert.Equal(t, ilp.MustAddress("test.relay.downstream"), rt.calls[0].Destination)
}

func TestPipelineIldcpRequestAnsweredWithoutReachingRouter(t *testing.T) {
	rt := &fakeRouter{fulfill: testFulfill()}
	sink := NewTelemetrySink(0, 3, time.Second, &recordingExporter{}, discardLogger())
	chain := NewPipeline(PipelineConfig{
		Address:    ilp.MustAddress("test.relay"),
		AssetScale: 9,
		AssetCode:  []byte("XRP"),
		Peers:      testPeers(),
		MaxTimeout: DefaultMaxTimeout,
		Sink:       sink,
		Router:     rt,
		Log:        discardLogger(),
	})

	headers := http.Header{}
	headers.Set("Authorization", "token_1")
	headers.Set("ILP-Peer-Name", "bob")
	req := &Request{
		Prepare: ilp.NewIldcpRequestPrepare(time.Now().Add(time.Minute)),
		Headers: headers,
	}

	fulfill, err := chain.Call(context.Background(), req)
	require.NoError(t, err)
	resp, err := ilp.ParseIldcpResponse(fulfill)
	require.NoError(t, err)
	assert.Equal(t, ilp.MustAddress("test.relay.child.bob"), resp.ClientAddress)
	assert.Empty(t, rt.calls)
}

func TestPipelineUnauthorizedRejected(t *testing.T) {
	rt := &fakeRouter{fulfill: testFulfill()}
	sink := NewTelemetrySink(0, 3, time.Second, &recordingExporter{}, discardLogger())
	chain := NewPipeline(PipelineConfig{
		Address:    ilp.MustAddress("test.relay"),
		AssetScale: 9,
		AssetCode:  []byte("XRP"),
		Peers:      testPeers(),
		MaxTimeout: DefaultMaxTimeout,
		Sink:       sink,
		Router:     rt,
		Log:        discardLogger(),
	})

	req := &Request{
		Prepare: &ilp.Prepare{
			ExpiresAt:   time.Now().Add(time.Minute),
			Destination: ilp.MustAddress("test.relay.downstream"),
		},
		Headers: http.Header{},
	}

	_, err := chain.Call(context.Background(), req)
	var reject *ilp.Reject
	require.ErrorAs(t, err, &reject)
	assert.Equal(t, ilp.F00BadRequest, reject.Code)
}
