package strip

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_JSON(t *testing.T) {
	for _, st := range []State{Disconnected, Connected, WriteError, Closed} {
		b, err := json.Marshal(st)
		require.NoError(t, err)
		assert.Equal(t, `"`+st.String()+`"`, string(b))

		var got State
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, st, got)
	}

	var s State
	assert.NoError(t, s.UnmarshalText([]byte("writeerror")))
	assert.Equal(t, WriteError, s)
	assert.NoError(t, s.UnmarshalText([]byte("1")))
	assert.Equal(t, Connected, s)
	assert.Error(t, s.UnmarshalText([]byte("Connectd")))
	assert.Error(t, json.Unmarshal([]byte(`1`), &s))
	assert.Equal(t, "State(9)", State(9).String())
}
