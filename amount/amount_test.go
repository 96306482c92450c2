package amount

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iov-one/paystream/errors"
)

func TestParse(t *testing.T) {
	cases := map[string]struct {
		raw     string
		want    string
		wantErr *errors.Error
	}{
		"zero":              {raw: "0", want: "0"},
		"small":             {raw: "5001", want: "5001"},
		"beyond 64 bits":    {raw: "36893488147419103232", want: "36893488147419103232"},
		"negative":          {raw: "-1", wantErr: errors.ErrInvalidAmount},
		"fraction":          {raw: "1.5", wantErr: errors.ErrInvalidAmount},
		"empty":             {raw: "", wantErr: errors.ErrInvalidAmount},
		"explicit plus":     {raw: "+5", wantErr: errors.ErrInvalidAmount},
		"scientific format": {raw: "1e6", wantErr: errors.ErrInvalidAmount},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := Parse(tc.raw)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
			if tc.wantErr == nil {
				assert.Equal(t, tc.want, got.String())
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := New(5000)
	b := New(4000)

	assert.Equal(t, "9000", a.Add(b).String())
	assert.Equal(t, "20000000", a.Mul(b).String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "1000", diff.String())

	_, err = b.Sub(a)
	assert.True(t, errors.ErrInvalidAmount.Is(err))

	assert.True(t, a.GreaterThan(b))
	assert.False(t, b.GreaterThan(a))
	assert.False(t, a.GreaterThan(a))
	assert.True(t, a.Equals(New(5000)))
	assert.Equal(t, -1, b.Cmp(a))
}

func TestZeroValue(t *testing.T) {
	var a Amount
	assert.True(t, a.IsZero())
	assert.False(t, a.IsPositive())
	assert.Equal(t, "0", a.String())
	assert.True(t, a.Equals(Zero()))
	assert.Equal(t, "7", a.Add(New(7)).String())

	n, err := a.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestImmutable(t *testing.T) {
	a := New(10)
	_ = a.Add(New(5))
	_ = a.Mul(New(3))
	assert.Equal(t, "10", a.String())

	b := a.Big()
	b.SetInt64(99)
	assert.Equal(t, "10", a.String())
}

func TestFromBig(t *testing.T) {
	_, err := FromBig(big.NewInt(-3))
	assert.True(t, errors.ErrInvalidAmount.Is(err))

	a, err := FromBig(big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, "3", a.String())

	a, err = FromBig(nil)
	require.NoError(t, err)
	assert.True(t, a.IsZero())
}

func TestUint64Overflow(t *testing.T) {
	_, err := MustParse("18446744073709551616").Uint64()
	assert.True(t, errors.ErrOverflow.Is(err))

	n, err := MustParse("18446744073709551615").Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), n)
}

func TestFromMajor(t *testing.T) {
	assert.Equal(t, "100000000", FromMajor(100, 1000000).String())
}

func TestJSON(t *testing.T) {
	raw, err := json.Marshal(New(123))
	require.NoError(t, err)
	assert.Equal(t, `"123"`, string(raw))

	var got Amount
	require.NoError(t, json.Unmarshal([]byte(`"456"`), &got))
	assert.Equal(t, "456", got.String())

	require.NoError(t, json.Unmarshal([]byte(`789`), &got))
	assert.Equal(t, "789", got.String())

	err = json.Unmarshal([]byte(`"-1"`), &got)
	assert.True(t, errors.ErrInvalidAmount.Is(err))
}

func TestAccrue(t *testing.T) {
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	rate := New(1000)

	cases := map[string]struct {
		elapsed time.Duration
		want    string
	}{
		"nothing elapsed":             {elapsed: 0, want: "0"},
		"less than a second":          {elapsed: 999 * time.Millisecond, want: "0"},
		"almost two seconds":          {elapsed: 1999 * time.Millisecond, want: "1000"},
		"two and a half seconds":      {elapsed: 2500 * time.Millisecond, want: "2000"},
		"three seconds":               {elapsed: 3 * time.Second, want: "3000"},
		"sub millisecond is ignored":  {elapsed: time.Second - time.Microsecond, want: "0"},
		"clock moved backwards":       {elapsed: -5 * time.Second, want: "0"},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got := Accrue(rate, start, start.Add(tc.elapsed))
			assert.Equal(t, tc.want, got.String())
		})
	}
}
