package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPaymentSettings(t *testing.T) {
	s := DefaultPaymentSettings()
	assert.Equal(t, GatewayPagSeguro, s.Gateway)
	assert.Equal(t, EnvironmentSandbox, s.Environment)
	assert.NoError(t, s.Validate())
}

func TestPaymentSettings_CredentialsPerEnvironment(t *testing.T) {
	s := &PaymentSettings{
		Gateway:               GatewayMercadoPago,
		Environment:           EnvironmentSandbox,
		MercadoPagoSandbox:    MercadoPagoCredentials{AccessToken: "TEST-token"},
		MercadoPagoProduction: MercadoPagoCredentials{AccessToken: "APP-token"},
		PagSeguroSandbox:      PagSeguroCredentials{Email: "sb@example.com", Token: "sb-token"},
		PagSeguroProduction:   PagSeguroCredentials{Email: "prod@example.com", Token: "prod-token"},
	}

	// Sandbox ключи не попадают в production вызовы и наоборот
	assert.Equal(t, "TEST-token", s.MercadoPago().AccessToken)
	assert.Equal(t, "sb@example.com", s.PagSeguro().Email)

	s.Environment = EnvironmentProduction
	assert.Equal(t, "APP-token", s.MercadoPago().AccessToken)
	assert.Equal(t, "prod@example.com", s.PagSeguro().Email)
}

func TestPaymentSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       PaymentSettings
		wantErr error
	}{
		{
			name: "валидные настройки",
			s:    PaymentSettings{Gateway: GatewayMercadoPago, Environment: EnvironmentProduction},
		},
		{
			name:    "неизвестный шлюз",
			s:       PaymentSettings{Gateway: "stripe", Environment: EnvironmentSandbox},
			wantErr: ErrUnknownGateway,
		},
		{
			name:    "неизвестное окружение",
			s:       PaymentSettings{Gateway: GatewayPagSeguro, Environment: "staging"},
			wantErr: ErrUnknownEnvironment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCredentials_Configured(t *testing.T) {
	assert.False(t, MercadoPagoCredentials{}.Configured())
	assert.True(t, MercadoPagoCredentials{AccessToken: "t"}.Configured())

	assert.False(t, PagSeguroCredentials{}.Configured())
	assert.False(t, PagSeguroCredentials{Email: "a@b.c"}.Configured())
	assert.True(t, PagSeguroCredentials{Email: "a@b.c", Token: "t"}.Configured())
}
