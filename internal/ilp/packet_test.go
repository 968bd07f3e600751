package ilp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCondition(fill byte) [ConditionLength]byte {
	var c [ConditionLength]byte
	for i := range c {
		c[i] = fill
	}
	return c
}

func TestPrepareRoundTrip(t *testing.T) {
	p := &Prepare{
		Amount:             123,
		ExpiresAt:          time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		ExecutionCondition: mustCondition(0xab),
		Destination:        MustAddress("test.alice.1234"),
		Data:               []byte("hello"),
	}
	bytes, err := p.Encode()
	require.NoError(t, err)

	got, err := ParsePrepare(bytes)
	require.NoError(t, err)
	assert.Equal(t, p.Amount, got.Amount)
	assert.True(t, p.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, p.ExecutionCondition, got.ExecutionCondition)
	assert.Equal(t, p.Destination, got.Destination)
	assert.Equal(t, p.Data, got.Data)
}

func TestFulfillRoundTrip(t *testing.T) {
	f := &Fulfill{
		Fulfillment: mustCondition(0x11),
		Data:        []byte("payload"),
	}
	bytes, err := f.Encode()
	require.NoError(t, err)

	pkt, err := Parse(bytes)
	require.NoError(t, err)
	require.NotNil(t, pkt.Fulfill)
	assert.Equal(t, f.Fulfillment, pkt.Fulfill.Fulfillment)
	assert.Equal(t, f.Data, pkt.Fulfill.Data)
}

func TestRejectRoundTrip(t *testing.T) {
	r := RejectBuilder{
		Code:        F02Unreachable,
		Message:     []byte("no route exists"),
		TriggeredBy: MustAddress("test.relay"),
		Data:        nil,
	}.Build()
	bytes, err := r.Encode()
	require.NoError(t, err)

	pkt, err := Parse(bytes)
	require.NoError(t, err)
	require.NotNil(t, pkt.Reject)
	assert.Equal(t, r.Code, pkt.Reject.Code)
	assert.Equal(t, r.Message, pkt.Reject.Message)
	assert.Equal(t, r.TriggeredBy, pkt.Reject.TriggeredBy)
}

func TestRejectEmptyTriggeredBy(t *testing.T) {
	r := RejectBuilder{
		Code:    F00BadRequest,
		Message: []byte("bad"),
	}.Build()
	bytes, err := r.Encode()
	require.NoError(t, err)

	pkt, err := Parse(bytes)
	require.NoError(t, err)
	assert.Equal(t, Address(""), pkt.Reject.TriggeredBy)
}

func TestParseInvalidPacketType(t *testing.T) {
	_, err := Parse([]byte{99, 0})
	assert.Error(t, err)
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse([]byte{byte(TypePrepare), 50})
	assert.Error(t, err)
}

func TestParseTrailingBytes(t *testing.T) {
	f := &Fulfill{Fulfillment: mustCondition(0), Data: nil}
	bytes, err := f.Encode()
	require.NoError(t, err)
	bytes = append(bytes, 0xff)
	_, err = Parse(bytes)
	assert.Error(t, err)
}

func TestIldcpRoundTrip(t *testing.T) {
	resp := IldcpResponse{
		ClientAddress: MustAddress("test.relay.childX.carol"),
		AssetScale:    9,
		AssetCode:     []byte("XRP"),
	}
	fulfill := resp.ToFulfill()
	assert.Equal(t, AllZeroFulfillment, fulfill.Fulfillment)

	got, err := ParseIldcpResponse(fulfill)
	require.NoError(t, err)
	assert.Equal(t, resp.ClientAddress, got.ClientAddress)
	assert.Equal(t, resp.AssetScale, got.AssetScale)
	assert.Equal(t, resp.AssetCode, got.AssetCode)
}

func TestIsIldcpRequest(t *testing.T) {
	p := NewIldcpRequestPrepare(time.Now())
	assert.True(t, IsIldcpRequest(p))

	other := &Prepare{Destination: MustAddress("test.alice")}
	assert.False(t, IsIldcpRequest(other))
}

func TestAddressValidation(t *testing.T) {
	cases := []struct {
		addr  string
		valid bool
	}{
		{"test.alice", true},
		{"test.alice.1234", true},
		{"a", true},
		{"", false},
		{"test..alice", false},
		{".test.alice", false},
		{"test.alice.", false},
		{"test alice", false},
		{"test.ali ce", false},
	}
	for _, c := range cases {
		err := ValidateAddress(c.addr)
		if c.valid {
			assert.NoError(t, err, c.addr)
		} else {
			assert.Error(t, err, c.addr)
		}
	}
}

func TestAddressWithSuffix(t *testing.T) {
	addr := MustAddress("test.relay.childX")
	got, err := addr.WithSuffix("carol")
	require.NoError(t, err)
	assert.Equal(t, Address("test.relay.childX.carol"), got)

	_, err = addr.WithSuffix("")
	assert.Error(t, err)

	_, err = addr.WithSuffix("bad name")
	assert.Error(t, err)
}

func TestAddressIsPrefixOf(t *testing.T) {
	own := MustAddress("test.relay")
	assert.True(t, MustAddress("test.relay").IsPrefixOf(own))
	assert.True(t, MustAddress("test.relay").IsPrefixOf(MustAddress("test.relay.child")))
	assert.False(t, MustAddress("test.other").IsPrefixOf(own))
	assert.False(t, MustAddress("test.relayx").IsPrefixOf(own))
}
