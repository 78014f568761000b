package serde_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/get-eventually/go-consumer/serde"
)

func TestProto(t *testing.T) {
	protoSerde := serde.NewProto(func() *structpb.Value { return new(structpb.Value) })

	t.Run("it works with valid data", func(t *testing.T) {
		value := structpb.NewStringValue("order-1")

		serialized, err := protoSerde.Serialize(value)
		assert.NoError(t, err)
		assert.NotEmpty(t, serialized)

		deserialized, err := protoSerde.Deserialize(serialized)
		assert.NoError(t, err)
		assert.True(t, proto.Equal(value, deserialized))
	})

	t.Run("it fails deserialization of invalid wire data", func(t *testing.T) {
		_, err := protoSerde.Deserialize([]byte{0xff, 0xff, 0xff})
		assert.Error(t, err)
	})
}

func TestProtoJSON(t *testing.T) {
	protoJSONSerde := serde.NewProtoJSON(func() *structpb.Struct { return new(structpb.Struct) })

	t.Run("it works with valid data", func(t *testing.T) {
		payload, err := structpb.NewStruct(map[string]any{
			"status": "created",
			"amount": 100,
		})
		require.NoError(t, err)

		serialized, err := protoJSONSerde.Serialize(payload)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"status":"created","amount":100}`, string(serialized))

		deserialized, err := protoJSONSerde.Deserialize(serialized)
		assert.NoError(t, err)
		assert.True(t, proto.Equal(payload, deserialized))
	})

	t.Run("it fails deserialization of invalid json data", func(t *testing.T) {
		_, err := protoJSONSerde.Deserialize([]byte("{"))
		assert.Error(t, err)
	})
}
