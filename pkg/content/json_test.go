package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePartRoundTrip(t *testing.T) {
	parts := []Part{
		Text{Value: "hi"},
		InlineData{MimeType: "image/png", Bytes: []byte{1, 2, 3}},
		InlineDataBase64{MimeType: "image/png", Base64: "QUJD"},
		FileData{MimeType: "text/plain", URI: "file://x"},
		FunctionCall{Name: "add", Args: map[string]any{"a": 1.0}, CallID: "c1"},
		FunctionResponse{Name: "add", Response: 2.0, CallID: "c1"},
		Thinking{ID: "t1", Text: "reasoning...", Signature: "sig"},
	}
	for _, p := range parts {
		raw, err := EncodePart(p)
		require.NoError(t, err)
		back, err := DecodePart(raw)
		require.NoError(t, err)
		assert.Equal(t, p, back)
	}
}

func TestDecodePartUnknownKind(t *testing.T) {
	_, err := DecodePart([]byte(`{"kind":"bogus"}`))
	require.Error(t, err)
}
