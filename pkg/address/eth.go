package address

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidAddress = errors.New("invalid address")

// ParseETH 校验并解析以太坊地址
// 1. 必须是 0x + 40 位十六进制
// 2. 全小写/全大写视为未带校验和, 直接接受
// 3. 混合大小写必须符合 EIP-55, 否则视为输错
func ParseETH(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, ErrInvalidAddress
	}
	body := s[2:]
	if len(body) != 40 {
		return common.Address{}, ErrInvalidAddress
	}
	if _, err := hex.DecodeString(body); err != nil {
		return common.Address{}, ErrInvalidAddress
	}

	lower, upper := strings.ToLower(body), strings.ToUpper(body)
	if body != lower && body != upper && toChecksumAddress(body) != body {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

// IsValidETH 只判断地址是否合法
func IsValidETH(s string) bool {
	_, err := ParseETH(s)
	return err == nil
}

// Checksum 返回 EIP-55 格式地址
func Checksum(addr common.Address) string {
	return "0x" + toChecksumAddress(hex.EncodeToString(addr.Bytes()))
}

func keccak256(data []byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	return hash.Sum(nil)
}

// toChecksumAddress 实现 EIP-55 混合大小写校验
func toChecksumAddress(address string) string {
	address = strings.ToLower(address)
	hexHash := hex.EncodeToString(keccak256([]byte(address)))

	var sb strings.Builder
	for i := 0; i < len(address); i++ {
		char := address[i]
		// hash 第 i 位 >= 8 时字母大写
		if hexCharToInt(hexHash[i]) >= 8 {
			sb.WriteString(strings.ToUpper(string(char)))
		} else {
			sb.WriteByte(char)
		}
	}
	return sb.String()
}

func hexCharToInt(c byte) byte {
	if c >= '0' && c <= '9' {
		return c - '0'
	}
	if c >= 'a' && c <= 'f' {
		return c - 'a' + 10
	}
	return 0
}
