package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var luhnValid = []string{
	"4111111111111111",
	"4242424242424242",
	"5555555555554444",
	"378282246310005",
	"6011111111111117",
	"79927398713",
	"0",
}

func TestIsValidCardNumber(t *testing.T) {
	for _, pan := range luhnValid {
		require.True(t, IsValidCardNumber(pan), pan)
	}
	require.True(t, IsValidCardNumber("4111 1111 1111 1111"))
	require.True(t, IsValidCardNumber("4111-1111-1111-1111"))

	require.False(t, IsValidCardNumber(""))
	require.False(t, IsValidCardNumber("   "))
	require.False(t, IsValidCardNumber("4111111111111112"))
	require.False(t, IsValidCardNumber("4111x11111111111"))
	require.False(t, IsValidCardNumber("4111.1111.1111.1111"))
}

func TestIsValidCardNumber_FlippingLastDigitBreaksChecksum(t *testing.T) {
	for _, pan := range luhnValid {
		last := pan[len(pan)-1]
		for d := byte('0'); d <= '9'; d++ {
			if d == last {
				continue
			}
			flipped := pan[:len(pan)-1] + string(d)
			require.False(t, IsValidCardNumber(flipped), "%s should fail", flipped)
		}
	}
}

func TestMaskPAN(t *testing.T) {
	require.Equal(t, "411111******1111", MaskPAN("4111 1111 1111 1111"))
	require.Equal(t, "378282*****0005", MaskPAN("378282246310005"))
	require.Equal(t, "****", MaskPAN("1234"))
}
