package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	emv := "9F2608A1B2C3D4E5F60718" + strings.Repeat("A", 900)
	cases := []struct {
		mti    string
		fields map[int]string
	}{
		{mtiAuthRequest, map[int]string{
			fieldPAN:        "411111******1111",
			fieldAmount:     "000000025075",
			fieldSTAN:       "000001",
			fieldAcceptorID: acceptorID("6f1c2a34-8b9d-4e5f-a0b1-c2d3e4f5a6b7"),
			fieldAdditional: emv,
		}},
		{mtiAuthResponse, map[int]string{
			fieldAmount:       "000000025075",
			fieldSTAN:         "000001",
			fieldRRN:          "0A1B2C3D4E5F",
			fieldAuthCode:     "A1B2C3",
			fieldResponseCode: rcApproved,
		}},
		{mtiAdviceRequest, map[int]string{
			fieldAmount: "000000025075",
			fieldSTAN:   "000002",
			fieldRRN:    "0A1B2C3D4E5F",
		}},
		{mtiAdviceResponse, map[int]string{
			fieldSTAN:         "000002",
			fieldRRN:          "0A1B2C3D4E5F",
			fieldResponseCode: rcApproved,
			fieldAdditional:   "0A1B2C3D4E5F",
		}},
		{mtiReversal, map[int]string{
			fieldSTAN: "000003",
			fieldRRN:  "0A1B2C3D4E5F",
		}},
		{mtiReversalReply, map[int]string{
			fieldSTAN:         "000003",
			fieldRRN:          "0A1B2C3D4E5F",
			fieldResponseCode: rcNoRecord,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.mti, func(t *testing.T) {
			b, err := packFrame(tc.mti, tc.fields)
			require.NoError(t, err)

			msg, mti, err := unpackFrame(b)
			require.NoError(t, err)
			require.Equal(t, tc.mti, mti)
			for id, want := range tc.fields {
				require.Equal(t, strings.TrimSpace(want), fieldString(msg, id), "field %d", id)
			}
		})
	}
}

func TestFrame_AbsentFieldReadsEmpty(t *testing.T) {
	b, err := packFrame(mtiReversal, map[int]string{fieldSTAN: "000009", fieldRRN: "0A1B2C3D4E5F"})
	require.NoError(t, err)
	msg, _, err := unpackFrame(b)
	require.NoError(t, err)
	require.Empty(t, fieldString(msg, fieldAmount))
	require.Empty(t, fieldString(msg, fieldAdditional))
}

func TestUnpackFrame_Garbage(t *testing.T) {
	_, _, err := unpackFrame([]byte("not a frame"))
	require.Error(t, err)
}
