package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolUnavailableError_Message(t *testing.T) {
	missing := &PoolUnavailableError{PoolID: "pool-1", Status: "missing"}
	assert.Equal(t, "pool pool-1 not found", missing.Error())

	draining := &PoolUnavailableError{PoolID: "pool-1", Status: "draining"}
	assert.Equal(t, "pool pool-1 unavailable (status draining)", draining.Error())
}

func TestConnectionNotFoundError_Message(t *testing.T) {
	err := &ConnectionNotFoundError{PoolID: "pool-1", ConnID: "conn-9"}
	assert.Equal(t, "connection conn-9 not found in pool pool-1", err.Error())
}

func TestEncodingError_WrapsCause(t *testing.T) {
	cause := errors.New("unsupported type")
	err := &EncodingError{Codec: "json", Err: cause}

	assert.Equal(t, "json encode failed: unsupported type", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestDecodingError_WrapsCause(t *testing.T) {
	cause := errors.New("unexpected end of input")
	err := &DecodingError{Codec: "msgpack", Err: cause}

	assert.Equal(t, "msgpack decode failed: unexpected end of input", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestHelpersMatchWrappedErrors(t *testing.T) {
	poolErr := fmt.Errorf("acquire: %w", &PoolUnavailableError{PoolID: "p", Status: "draining"})
	assert.True(t, IsPoolUnavailable(poolErr))
	assert.False(t, IsPoolUnavailable(errors.New("other")))

	connErr := fmt.Errorf("lookup: %w", &ConnectionNotFoundError{PoolID: "p", ConnID: "c"})
	assert.True(t, IsConnectionNotFound(connErr))
	assert.False(t, IsConnectionNotFound(poolErr))

	encErr := fmt.Errorf("send: %w", &EncodingError{Codec: "json", Err: errors.New("boom")})
	decErr := fmt.Errorf("recv: %w", &DecodingError{Codec: "json", Err: errors.New("boom")})
	assert.True(t, IsSerializationError(encErr))
	assert.True(t, IsSerializationError(decErr))
	assert.False(t, IsSerializationError(connErr))
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("pool p: %w", ErrAcquireTimeout)
	require.ErrorIs(t, wrapped, ErrAcquireTimeout)

	codec := fmt.Errorf("%w: %q", ErrUnknownCodec, "protobuf")
	require.ErrorIs(t, codec, ErrUnknownCodec)
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "acquire timeout", err: fmt.Errorf("pool p: %w", ErrAcquireTimeout), want: "acquire_timeout"},
		{name: "pool unavailable", err: &PoolUnavailableError{PoolID: "p"}, want: "pool_unavailable"},
		{name: "connection not found", err: &ConnectionNotFoundError{PoolID: "p", ConnID: "c"}, want: "connection_not_found"},
		{name: "encoding", err: &EncodingError{Codec: "json", Err: errors.New("boom")}, want: "serialization"},
		{name: "decoding", err: &DecodingError{Codec: "json", Err: errors.New("boom")}, want: "serialization"},
		{name: "unclassified", err: errors.New("boom"), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorType(tt.err))
		})
	}
}
