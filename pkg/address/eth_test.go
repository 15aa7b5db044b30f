package address

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestParseETH(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"EIP-55 checksum", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"lower case", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"upper case body", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", true},
		{"bad checksum", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", false},
		{"zero string", "0", false},
		{"no prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"too short", "0x5aaeb6053f3e94c9b9a0", false},
		{"not hex", "0xzzaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseETH(tt.input)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAddress)
			}
		})
	}
}

func TestChecksumMatchesGoEthereum(t *testing.T) {
	addrs := []string{
		"0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
		"0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb",
		"0xd9E0b2C0724F3a01AaECe3C44F8023371f845196",
	}
	for _, a := range addrs {
		addr := common.HexToAddress(a)
		assert.Equal(t, addr.Hex(), Checksum(addr))
	}
}
