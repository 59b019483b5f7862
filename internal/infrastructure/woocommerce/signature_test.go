package woocommerce

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erp/wooerp/internal/domain/integration"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":555,"status":"processing"}`)
	secret := "whsec"
	valid := Sign(secret, body)

	tests := []struct {
		name      string
		secret    string
		signature string
		wantErr   bool
	}{
		{name: "valid signature", secret: secret, signature: valid},
		{name: "verification disabled", secret: "", signature: ""},
		{name: "missing header", secret: secret, signature: "", wantErr: true},
		{name: "tampered signature", secret: secret, signature: Sign("other", body), wantErr: true},
		{name: "not base64", secret: secret, signature: "%%%", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.secret, body, tt.signature)
			if tt.wantErr {
				assert.ErrorIs(t, err, integration.ErrPlatformInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSign_KnownVector(t *testing.T) {
	// echo -n 'hello' | openssl dgst -sha256 -hmac key -binary | base64
	assert.Equal(t, "kwezuRXvtRcf8U2MtV+8x5jGwO8UVtZt7RpqpyOli3s=", Sign("key", []byte("hello")))
}
