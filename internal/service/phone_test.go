package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "mobile", input: "01012345678", want: "01012345678"},
		{name: "formatted", input: "010-1234-5678", want: "01012345678"},
		{name: "international", input: "+201012345678", want: "01012345678"},
		{name: "cairo landline", input: "02212345678", want: "02212345678"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePhoneRejectsWrongLength(t *testing.T) {
	_, err := NormalizePhone("0101234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 11 digits")
}

func TestNormalizePhoneRejectsUnknownPrefix(t *testing.T) {
	_, err := NormalizePhone("07712345678")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid Egyptian")
}
