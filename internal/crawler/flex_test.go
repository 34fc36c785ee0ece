package crawler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlexStringDecoding(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"string", `"abc"`, "abc", true},
		{"integer", `42`, "42", true},
		{"float", `4.50`, "4.50", true},
		{"bool", `true`, "true", true},
		{"null", `null`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f FlexString
			require.NoError(t, json.Unmarshal([]byte(tc.in), &f))
			require.Equal(t, tc.want, f.String())
			require.Equal(t, tc.valid, f.Valid)
		})
	}

	var f FlexString
	require.Error(t, json.Unmarshal([]byte(`{"a":1}`), &f))
}

func TestFlexNumberEqual(t *testing.T) {
	t.Parallel()

	require.True(t, NewFlexNumber("5").Equal(NewFlexNumber("5.0")))
	require.False(t, NewFlexNumber("4").Equal(NewFlexNumber("6")))
	require.True(t, FlexNumber{}.Equal(FlexNumber{}))
	require.False(t, FlexNumber{}.Equal(NewFlexNumber("1")))

	var n FlexNumber
	require.NoError(t, json.Unmarshal([]byte(`4.5`), &n))
	require.Equal(t, "4.5", n.String())
	require.NoError(t, json.Unmarshal([]byte(`"12"`), &n))
	require.Equal(t, "12", n.String())

	out, err := json.Marshal(NewFlexNumber("4.5"))
	require.NoError(t, err)
	require.Equal(t, "4.5", string(out))
}
