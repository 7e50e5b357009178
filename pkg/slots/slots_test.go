package slots

import (
	"encoding/binary"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rand"
)

func TestMappingSlot_KnownVector(t *testing.T) {
	// keccak256(abi.encode(uint256(0), uint256(0)))
	got := MappingSlot(big.NewInt(0), common.Hash{})
	assert.Equal(t, common.HexToHash("0xad3228b676f7d3cd4284a5443f17f1962b36e491b30a40b2405849e597ba5fb5"), got)
}

func TestMappingSlot_MatchesSolidityLayout(t *testing.T) {
	owner := common.HexToAddress("0x5aC6E0c06aB4A4a5c3D0b2E8D2a5f8d1B5dE5aC6")
	base := big.NewInt(0)

	want := crypto.Keccak256Hash(
		common.LeftPadBytes(owner.Bytes(), 32),
		common.LeftPadBytes(base.Bytes(), 32),
	)
	assert.Equal(t, want, MappingSlot(base, AddressKey(owner)))
	assert.Equal(t, want, Key{BaseSlot: base, Key: AddressKey(owner)}.Slot())
}

func TestMappingSlot_NilBaseIsSlotZero(t *testing.T) {
	key := Uint64Key(42)
	assert.Equal(t, MappingSlot(big.NewInt(0), key), MappingSlot(nil, key))
}

func TestMappingSlot_DistinctKeys(t *testing.T) {
	r := rand.New(7)
	seen := make(map[common.Hash]common.Hash)

	for i := 0; i < 500; i++ {
		var addr common.Address
		for j := 0; j < len(addr); j += 8 {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], r.Uint64())
			copy(addr[j:], buf[:])
		}
		key := AddressKey(addr)
		slot := MappingSlot(big.NewInt(0), key)
		if prev, ok := seen[slot]; ok {
			require.Equal(t, prev, key, "two keys share slot %s", slot.Hex())
		}
		seen[slot] = key
	}
}

func TestMappingSlot_DependsOnBase(t *testing.T) {
	key := AddressKey(common.HexToAddress("0x01"))
	assert.NotEqual(t, MappingSlot(big.NewInt(0), key), MappingSlot(big.NewInt(1), key))
}

func TestDecodePriceWord(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantPending int64
		wantCurrent int64
	}{
		{
			name:        "packed halves",
			input:       "0x" + strings.Repeat("0", 31) + "1" + strings.Repeat("0", 31) + "2",
			wantPending: 1,
			wantCurrent: 2,
		},
		{
			name:        "short word is current only",
			input:       "0x2a",
			wantPending: 0,
			wantCurrent: 42,
		},
		{
			name:        "exactly 32 chars",
			input:       "0x" + strings.Repeat("0", 31) + "5",
			wantPending: 0,
			wantCurrent: 5,
		},
		{
			name:        "odd length",
			input:       "0x" + strings.Repeat("0", 32) + "3",
			wantPending: 0,
			wantCurrent: 3,
		},
		{
			name:        "no prefix",
			input:       "ff",
			wantPending: 0,
			wantCurrent: 255,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := DecodePriceWord(tt.input)
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(tt.wantPending).String(), w.Pending.String())
			assert.Equal(t, big.NewInt(tt.wantCurrent).String(), w.Current.String())
		})
	}
}

func TestDecodePriceWord_Scaled(t *testing.T) {
	input := "0x" + strings.Repeat("0", 31) + "1" + strings.Repeat("0", 31) + "2"
	w, err := DecodePriceWord(input)
	require.NoError(t, err)

	want := new(big.Rat).SetFrac(big.NewInt(2), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	assert.Zero(t, want.Cmp(w.Scaled()))
}

func TestDecodePriceWord_RealisticPrice(t *testing.T) {
	// 1850.5 WAD in the low half, 1900 WAD pending in the high half
	cur, _ := new(big.Int).SetString("1850500000000000000000", 10)
	next, _ := new(big.Int).SetString("1900000000000000000000", 10)
	word := new(big.Int).Or(new(big.Int).Lsh(next, 128), cur)

	w, err := DecodePriceWord(common.BigToHash(word).Hex())
	require.NoError(t, err)
	assert.Equal(t, cur.String(), w.Current.String())
	assert.Equal(t, next.String(), w.Pending.String())
	assert.Equal(t, "1850.50", w.Scaled().FloatString(2))
}

func TestDecodePriceWord_Errors(t *testing.T) {
	for _, input := range []string{"", "0x", "0xzz", "0x" + strings.Repeat("1", 65)} {
		_, err := DecodePriceWord(input)
		require.Error(t, err, input)

		var decodeErr *StorageDecodeError
		assert.True(t, errors.As(err, &decodeErr), input)
	}
}
