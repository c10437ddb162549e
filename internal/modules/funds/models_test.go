package funds

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueStates(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		v := Ok(12.5)
		assert.True(t, v.Defined())
		assert.Equal(t, KindOK, v.Kind())
		assert.Equal(t, 12.5, v.Float())
		require.NotNil(t, v.Ptr())
		assert.Equal(t, 12.5, *v.Ptr())
	})

	t.Run("undefined", func(t *testing.T) {
		v := Undefined()
		assert.False(t, v.Defined())
		assert.Equal(t, KindUndefined, v.Kind())
		assert.Nil(t, v.Ptr())
	})

	t.Run("failed carries its reason", func(t *testing.T) {
		v := Failed("bad row")
		assert.False(t, v.Defined())
		assert.Equal(t, KindError, v.Kind())
		assert.Equal(t, "bad row", v.Reason())
		assert.Nil(t, v.Ptr())
	})
}

func TestValueJSON(t *testing.T) {
	t.Run("defined values serialize as numbers", func(t *testing.T) {
		out, err := json.Marshal(Ok(-9.84))
		require.NoError(t, err)
		assert.Equal(t, "-9.84", string(out))
	})

	t.Run("undefined and failed serialize as null", func(t *testing.T) {
		for _, v := range []Value{Undefined(), Failed("x")} {
			out, err := json.Marshal(v)
			require.NoError(t, err)
			assert.Equal(t, "null", string(out))
		}
	})

	t.Run("year returns map", func(t *testing.T) {
		out, err := json.Marshal(YearReturns{2024: Ok(10), 2025: Undefined()})
		require.NoError(t, err)
		assert.JSONEq(t, `{"2024":10,"2025":null}`, string(out))
	})
}
