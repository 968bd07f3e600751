package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/relay-connector/internal/ilp"
)

var testAddress = ilp.MustAddress("test.relay")

func testFulfill() *ilp.Fulfill {
	return &ilp.Fulfill{Data: []byte("fulfilled")}
}

func preparedWithin(d time.Duration) *ilp.Prepare {
	return &ilp.Prepare{
		Amount:      100,
		ExpiresAt:   time.Now().Add(d),
		Destination: ilp.MustAddress("test.alice"),
	}
}

func TestExpiryServiceOk(t *testing.T) {
	next := ServiceFunc(func(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
		return testFulfill(), nil
	})
	svc := NewExpiryService(testAddress, DefaultMaxTimeout, next)

	fulfill, err := svc.Call(context.Background(), &Request{Prepare: preparedWithin(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, testFulfill(), fulfill)
}

func TestExpiryServiceInsufficientTimeout(t *testing.T) {
	next := ServiceFunc(func(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
		t.Fatal("next should not be called when already expired")
		return nil, nil
	})
	svc := NewExpiryService(testAddress, DefaultMaxTimeout, next)

	_, err := svc.Call(context.Background(), &Request{Prepare: preparedWithin(-time.Second)})
	var reject *ilp.Reject
	require.True(t, errors.As(err, &reject))
	assert.Equal(t, ilp.R02InsufficientTimeout, reject.Code)
	assert.Equal(t, "insufficient timeout", string(reject.Message))
}

func TestExpiryServiceTimedOut(t *testing.T) {
	next := ServiceFunc(func(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	svc := NewExpiryService(testAddress, time.Hour, next)

	_, err := svc.Call(context.Background(), &Request{Prepare: preparedWithin(50 * time.Millisecond)})
	var reject *ilp.Reject
	require.True(t, errors.As(err, &reject))
	assert.Equal(t, ilp.R00TransferTimedOut, reject.Code)
	assert.Equal(t, "request timed out", string(reject.Message))
}

func TestExpiryServiceMaxTimeoutCaps(t *testing.T) {
	var sawDeadline time.Time
	next := ServiceFunc(func(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
		sawDeadline, _ = ctx.Deadline()
		return testFulfill(), nil
	})
	svc := NewExpiryService(testAddress, 10*time.Millisecond, next)

	start := time.Now()
	_, err := svc.Call(context.Background(), &Request{Prepare: preparedWithin(time.Hour)})
	require.NoError(t, err)
	assert.WithinDuration(t, start.Add(10*time.Millisecond), sawDeadline, 50*time.Millisecond)
}

func TestExpiryServiceTimerErrorOnOtherFailure(t *testing.T) {
	next := ServiceFunc(func(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
		return nil, errors.New("boom")
	})
	svc := NewExpiryService(testAddress, DefaultMaxTimeout, next)

	_, err := svc.Call(context.Background(), &Request{Prepare: preparedWithin(time.Minute)})
	var reject *ilp.Reject
	require.True(t, errors.As(err, &reject))
	assert.Equal(t, ilp.T00InternalError, reject.Code)
	assert.Equal(t, "timer error", string(reject.Message))
}

func TestExpiryServicePassesThroughReject(t *testing.T) {
	inner := ilp.RejectBuilder{Code: ilp.F02Unreachable, Message: []byte("no route")}.Build()
	next := ServiceFunc(func(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
		return nil, inner
	})
	svc := NewExpiryService(testAddress, DefaultMaxTimeout, next)

	_, err := svc.Call(context.Background(), &Request{Prepare: preparedWithin(time.Minute)})
	assert.Same(t, inner, err)
}
