// Package modexp implements the bit-serial modular exponentiation used by the router firmware's RSA code
package modexp

import (
	"fmt"
	"math/big"
)

var one = big.NewInt(1)

// Context holds the per-modulus state. It is immutable after New.
type Context struct {
	mod    *big.Int
	modLen int
	k      int
}

// New returns a Context for modulus. The modulus must be greater than 1.
func New(modulus *big.Int) *Context {
	if modulus == nil || modulus.Cmp(one) <= 0 {
		panic(fmt.Sprintf("modexp: invalid modulus %v", modulus))
	}
	return &Context{
		mod:    new(big.Int).Set(modulus),
		modLen: modulus.BitLen(),
		k:      factorTwos(modulus),
	}
}

// factorTwos counts how many times m can be halved while even.
// Always 0 for the odd moduli RSA produces.
func factorTwos(m *big.Int) int {
	k := 0
	for m := new(big.Int).Set(m); m.Bit(0) == 0; m.Rsh(m, 1) {
		k++
	}
	return k
}

// Modulus returns a copy of the modulus.
func (c *Context) Modulus() *big.Int { return new(big.Int).Set(c.mod) }

// BitLen returns the bit length of the modulus.
func (c *Context) BitLen() int { return c.modLen }

// K returns the number of factor-two divisors of the modulus.
func (c *Context) K() int { return c.k }

// Mul returns a*b mod modulus using shift-and-add over exactly BitLen() bits of a.
// a must be less than the modulus.
func (c *Context) Mul(a, b *big.Int) *big.Int {
	a = new(big.Int).Set(a)
	b = new(big.Int).Set(b)
	result := new(big.Int)

	for i := 0; i < c.modLen; i++ {
		if a.Bit(0) == 1 {
			result.Add(result, b)
			result.Mod(result, c.mod)
		}
		a.Rsh(a, 1)
		b.Lsh(b, 1)
		if b.Cmp(c.mod) >= 0 {
			b.Sub(b, c.mod).Mod(b, c.mod)
		}
	}

	return result
}

// Exp returns x**y mod modulus (right-to-left square-and-multiply).
func (c *Context) Exp(x, y *big.Int) *big.Int {
	x = new(big.Int).Set(x)
	y = new(big.Int).Set(y)
	a := big.NewInt(1)

	for y.Sign() > 0 {
		if y.Bit(0) == 1 {
			a = c.Mul(a, x)
		}
		x = c.Mul(x, x)
		y.Rsh(y, 1)
	}

	return a
}
