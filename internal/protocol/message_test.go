package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	msg := MustNewMessage(MsgOwnerEdit, OwnerEditPayload{
		Action: EditAddWall,
		Cell:   Cell{X: 3, Y: 5},
	})

	data, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, MsgOwnerEdit, decoded.Type)

	payload, err := ParsePayload[OwnerEditPayload](decoded)
	require.NoError(t, err)
	assert.Equal(t, EditAddWall, payload.Action)
	assert.Equal(t, Cell{X: 3, Y: 5}, payload.Cell)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("not json at all")},
		{"empty object", []byte(`{}`)},
		{"missing type", []byte(`{"payload":{"x":1}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestNewErrorMessage(t *testing.T) {
	t.Parallel()

	msg := NewErrorMessage(ErrCodeNoPath)
	assert.Equal(t, MsgErr, msg.Type)

	payload, err := ParsePayload[ErrorPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeNoPath, payload.Code)
	assert.NotEmpty(t, payload.Message)
	assert.Nil(t, payload.Data)
}

func TestNewErrorMessageWithData(t *testing.T) {
	t.Parallel()

	msg := NewErrorMessageWithData(ErrCodeCooldown, map[string]any{"remaining_ms": 420})
	payload, err := ParsePayload[ErrorPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeCooldown, payload.Code)
	assert.EqualValues(t, 420, payload.Data["remaining_ms"])
}

func TestNewPongMessage(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	msg := NewPongMessage(123, now)
	payload, err := ParsePayload[PongPayload](msg)
	require.NoError(t, err)
	assert.EqualValues(t, 123, payload.ClientTS)
	assert.Equal(t, now.UnixMilli(), payload.ServerTS)
}
