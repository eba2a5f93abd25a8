package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// MaskedValue replaces amounts while privacy mode is on.
const MaskedValue = "****"

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// ShortAddress abbreviates an address to its first six and last four characters.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// ChecksumAddress returns the EIP-55 form of a hex address.
func ChecksumAddress(addr string) string {
	if !common.IsHexAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func FormatFloat(f float64, decimals int) string {
	return AddCommas(fmt.Sprintf("%.*f", decimals, f))
}

// FormatETH renders an ETH amount, e.g. "1,234.5000 ETH".
func FormatETH(amount float64, decimals int) string {
	return FormatFloat(amount, decimals) + " ETH"
}

// FormatUSD renders a dollar amount with the given number of decimals, e.g. "$1,234.56".
func FormatUSD(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "$-"
	}
	if decimals < 0 {
		decimals = 0
	}
	cur := money.GetCurrency(money.USD)
	f := money.NewFormatter(decimals, cur.Decimal, cur.Thousand, cur.Grapheme, cur.Template)
	minor := decimal.NewFromFloat(value).Shift(int32(decimals)).Round(0)
	return f.Format(minor.IntPart())
}

// FormatSignedUSD is FormatUSD with an explicit "+" for gains.
func FormatSignedUSD(value float64, decimals int) string {
	s := FormatUSD(value, decimals)
	if value > 0 {
		return "+" + s
	}
	return s
}

// FormatPercent renders a signed percentage with two decimals, e.g. "+1.25%".
func FormatPercent(p float64) string {
	if p > 0 {
		return fmt.Sprintf("+%.2f%%", p)
	}
	return fmt.Sprintf("%.2f%%", p)
}
