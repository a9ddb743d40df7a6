package ethutil

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const etherDecimals = 18

// NormalizeAddress returns the lower-case hex form of a valid address, or an
// empty string if s is not one.
func NormalizeAddress(s string) string {
	if !common.IsHexAddress(s) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(s).Hex())
}

func SameAddress(a, b string) bool {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	return na != "" && na == nb
}

func IsTxHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*common.HashLength {
		return false
	}
	_, ok := new(big.Int).SetString(s, 16)
	return ok
}

// ParseEther converts a decimal ether amount such as "0.01" to wei without
// going through floating point.
func ParseEther(s string) (*big.Int, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if len(frac) > etherDecimals {
		return nil, fmt.Errorf("too many decimals in %q", s)
	}
	if whole == "" {
		whole = "0"
	}

	digits := whole + frac + strings.Repeat("0", etherDecimals-len(frac))
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok || wei.Sign() < 0 {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}

	return wei, nil
}

func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	neg := wei.Sign() < 0
	digits := new(big.Int).Abs(wei).String()
	if len(digits) <= etherDecimals {
		digits = strings.Repeat("0", etherDecimals-len(digits)+1) + digits
	}

	whole := digits[:len(digits)-etherDecimals]
	frac := strings.TrimRight(digits[len(digits)-etherDecimals:], "0")

	result := whole
	if frac != "" {
		result += "." + frac
	}
	if neg {
		result = "-" + result
	}

	return result
}

func ToEther(wei *big.Int) float64 {
	f, _ := strconv.ParseFloat(FormatEther(wei), 64)
	return f
}

func FromEther(ether float64) *big.Int {
	wei, err := ParseEther(strconv.FormatFloat(ether, 'f', -1, 64))
	if err != nil {
		return new(big.Int)
	}
	return wei
}

func FormatAmount(ether float64) string {
	return strconv.FormatFloat(ether, 'f', -1, 64)
}
