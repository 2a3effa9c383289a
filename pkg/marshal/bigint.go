package marshal

import (
	"math/big"
	"math/bits"
)

// bigDigits 将 |v| 拆分为以 2^15 为基数的数字序列，低位在前。
// v 为 0 时返回空序列。
func bigDigits(v *big.Int) []uint16 {
	words := v.Bits()
	n := (v.BitLen() + digitShift - 1) / digitShift
	digits := make([]uint16, n)
	for i := 0; i < n; i++ {
		bit := i * digitShift
		w, off := bit/bits.UintSize, bit%bits.UintSize
		d := uint(words[w]) >> off
		if off+digitShift > bits.UintSize && w+1 < len(words) {
			d |= uint(words[w+1]) << (bits.UintSize - off)
		}
		digits[i] = uint16(d & digitMask)
	}
	return digits
}

// bigFromDigits 是 bigDigits 的逆过程，调用方需保证每个数字不超过 15 位。
func bigFromDigits(digits []uint16, negative bool) *big.Int {
	nbits := len(digits) * digitShift
	words := make([]big.Word, (nbits+bits.UintSize-1)/bits.UintSize)
	for i, d := range digits {
		bit := i * digitShift
		w, off := bit/bits.UintSize, bit%bits.UintSize
		words[w] |= big.Word(d) << off
		if off+digitShift > bits.UintSize {
			words[w+1] |= big.Word(d) >> (bits.UintSize - off)
		}
	}
	v := new(big.Int).SetBits(words)
	if negative {
		v.Neg(v)
	}
	return v
}
