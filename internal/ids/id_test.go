package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerIdRoundTrip(t *testing.T) {
	cases := []IdType{0, 1, 42, 1 << 63, ^IdType(0)}
	for _, id := range cases {
		encoded := SerId(id)
		decoded, err := ParseSerId(encoded)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)

		reencoded := SerId(decoded)
		assert.Equal(t, encoded, reencoded)
	}
}

func TestParseSerIdRejectsWrongLength(t *testing.T) {
	_, err := ParseSerId("QQ==") // decodes to a single byte
	assert.Error(t, err)

	_, err = ParseSerId("not-valid-base64!!")
	assert.Error(t, err)
}

func TestGenerateAvoidsCollisions(t *testing.T) {
	taken := map[IdType]struct{}{}
	for i := 0; i < 1000; i++ {
		id := Generate(FromMap(taken))
		assert.NotZero(t, id)
		assert.NotContains(t, taken, id)
		taken[id] = struct{}{}
	}
}
