package agg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sveljko/pgmedian/pkg/agg"
	"github.com/sveljko/pgmedian/pkg/ordbuf"
)

func TestClassOf_Builtins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want ordbuf.ValueClass
	}{
		{name: "smallint", want: ordbuf.ClassNumeral},
		{name: "int2", want: ordbuf.ClassNumeral},
		{name: "integer", want: ordbuf.ClassNumeral},
		{name: "int4", want: ordbuf.ClassNumeral},
		{name: "bigint", want: ordbuf.ClassNumeral},
		{name: "int8", want: ordbuf.ClassNumeral},
		{name: "timestamp", want: ordbuf.ClassNumeral},
		{name: "timestamptz", want: ordbuf.ClassNumeral},
		{name: "text", want: ordbuf.ClassText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := agg.ClassOf(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassOf_Unknown(t *testing.T) {
	t.Parallel()

	_, err := agg.ClassOf("uuid")
	assert.ErrorIs(t, err, agg.ErrUnsupportedType)
}

func TestParseDatum(t *testing.T) {
	t.Parallel()

	t.Run("bigint", func(t *testing.T) {
		t.Parallel()

		d, err := agg.ParseDatum("bigint", "-42")
		require.NoError(t, err)
		assert.Equal(t, int64(-42), d.Value().Int64())
	})

	t.Run("smallint_range_enforced", func(t *testing.T) {
		t.Parallel()

		_, err := agg.ParseDatum("smallint", "40000")
		assert.Error(t, err)
	})

	t.Run("integer_range_enforced", func(t *testing.T) {
		t.Parallel()

		_, err := agg.ParseDatum("integer", "3000000000")
		assert.Error(t, err)
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		d, err := agg.ParseDatum("text", "apple")
		require.NoError(t, err)
		assert.Equal(t, "apple", d.Value().Text())
	})

	t.Run("timestamp_rfc3339", func(t *testing.T) {
		t.Parallel()

		d, err := agg.ParseDatum("timestamptz", "2024-05-01T10:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, ordbuf.ClassNumeral, d.Value().Class())
	})

	t.Run("timestamp_space_separated", func(t *testing.T) {
		t.Parallel()

		d, err := agg.ParseDatum("timestamp", "2024-05-01 10:30:00")
		require.NoError(t, err)
		assert.False(t, d.IsNull())
	})

	t.Run("timestamp_garbage", func(t *testing.T) {
		t.Parallel()

		_, err := agg.ParseDatum("timestamp", "yesterday-ish")
		assert.Error(t, err)
	})

	t.Run("unknown_type", func(t *testing.T) {
		t.Parallel()

		_, err := agg.ParseDatum("uuid", "whatever")
		assert.ErrorIs(t, err, agg.ErrUnsupportedType)
	})
}

func TestRegisterType_Alias(t *testing.T) {
	t.Parallel()

	agg.RegisterType("epoch_micros", agg.TypeInfo{
		Class: ordbuf.ClassNumeral,
		Parse: func(raw string) (agg.Datum, error) {
			return agg.ParseDatum("bigint", raw)
		},
	})

	class, err := agg.ClassOf("epoch_micros")
	require.NoError(t, err)
	assert.Equal(t, ordbuf.ClassNumeral, class)

	d, err := agg.ParseDatum("epoch_micros", "1700000000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000000), d.Value().Int64())
}
