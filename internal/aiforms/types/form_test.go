package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentConfigIsComplete(t *testing.T) {
	tests := []struct {
		name string
		cfg  *PaymentConfig
		want bool
	}{
		{"nil", nil, false},
		{"no line item", &PaymentConfig{MerchantAccountId: "acct_123"}, false},
		{"bad account", &PaymentConfig{MerchantAccountId: "123", LineItem: &LineItem{Name: "Registration", Amount: 50}}, false},
		{"empty name", &PaymentConfig{MerchantAccountId: "acct_123", LineItem: &LineItem{Name: " ", Amount: 50}}, false},
		{"zero amount", &PaymentConfig{MerchantAccountId: "acct_123", LineItem: &LineItem{Name: "Registration"}}, false},
		{"complete", &PaymentConfig{MerchantAccountId: "acct_123", LineItem: &LineItem{Name: "Registration", Amount: 50}}, true},
		// сумма ниже минимума все равно считается заполненной, отклоняет ее платежный адаптер
		{"small amount", &PaymentConfig{MerchantAccountId: "acct_123", LineItem: &LineItem{Name: "Registration", Amount: 10}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.IsComplete())
		})
	}
}

func TestFormFieldsScan(t *testing.T) {
	var f FormFieldsSlice
	require.NoError(t, f.Scan(`[{"id":"a","type":"input","required":true,"show_when":[{"field_id":"b","condition":"is_equal","value":"x"}]}]`))
	require.Len(t, f, 1)
	assert.Equal(t, "a", f[0].Id)
	assert.Equal(t, ConditionIsEqual, f[0].ShowWhen[0].Condition)

	field, ok := f.Find("a")
	assert.True(t, ok)
	assert.True(t, field.Required)
	_, ok = f.Find("zzz")
	assert.False(t, ok)

	assert.Error(t, f.Scan(42))
	require.NoError(t, f.Scan(nil))
	assert.Empty(t, f)
}
