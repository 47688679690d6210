package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_Deterministic(t *testing.T) {
	got := Sign([]byte("key"), "1700000000", []byte(`{"a":1}`))
	assert.Len(t, got, 64)
	assert.Equal(t, got, Sign([]byte("key"), "1700000000", []byte(`{"a":1}`)))
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"slot_id":1,"status":"FREE"}`)
	sig := Sign(secret, "1700000000", body)

	assert.True(t, VerifySignature(secret, "1700000000", body, sig))
	assert.False(t, VerifySignature(secret, "1700000001", body, sig), "timestamp is signed")
	assert.False(t, VerifySignature(secret, "1700000000", []byte(`{"slot_id":2,"status":"FREE"}`), sig), "body is signed")
	assert.False(t, VerifySignature([]byte("other"), "1700000000", body, sig))
	assert.False(t, VerifySignature(secret, "1700000000", body, "zz-not-hex"))
	assert.False(t, VerifySignature(secret, "1700000000", body, ""))
}
