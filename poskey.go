package boardsync

import (
	"fmt"
	"strings"
)

/*
Position keys place entries in the shared element sequence. The key space is
densely ordered: for any two keys there is a third that sorts strictly
between them, so a peer can insert between neighbors without renumbering
anything. Keys are compared as plain bytes.

A key is an integer part followed by an optional fraction. The first byte of
the integer part encodes its length ('a'..'z' ascending for positive,
'Z'..'A' descending for negative), so longer integers still compare
correctly byte-by-byte. The empty string is not a key; it is used below as
the open bound on either side.
*/

const posKeyDigits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// the key of the first element inserted into an empty sequence
func FirstKey() string {
	return "a" + string(posKeyDigits[0])
}

func CompareKeys(a string, b string) int {
	return strings.Compare(a, b)
}

// KeyBetween returns a key strictly between a and b.
// An empty a means no lower bound, an empty b means no upper bound.
func KeyBetween(a string, b string) (string, error) {
	if a != "" {
		if err := validateKey(a); err != nil {
			return "", err
		}
	}
	if b != "" {
		if err := validateKey(b); err != nil {
			return "", err
		}
	}
	if a != "" && b != "" && a >= b {
		return "", fmt.Errorf("key %q is not below %q", a, b)
	}

	if a == "" {
		if b == "" {
			return FirstKey(), nil
		}
		ib, err := integerPart(b)
		if err != nil {
			return "", err
		}
		fb := b[len(ib):]
		if ib == smallestInteger() {
			return ib + midpoint("", fb), nil
		}
		if ib < b {
			return ib, nil
		}
		res, ok := decrementInteger(ib)
		if !ok {
			return "", fmt.Errorf("cannot allocate a key below %q", b)
		}
		return res, nil
	}

	if b == "" {
		ia, err := integerPart(a)
		if err != nil {
			return "", err
		}
		fa := a[len(ia):]
		i, ok := incrementInteger(ia)
		if !ok {
			return ia + midpoint(fa, ""), nil
		}
		return i, nil
	}

	ia, err := integerPart(a)
	if err != nil {
		return "", err
	}
	fa := a[len(ia):]
	ib, err := integerPart(b)
	if err != nil {
		return "", err
	}
	fb := b[len(ib):]
	if ia == ib {
		return ia + midpoint(fa, fb), nil
	}
	i, ok := incrementInteger(ia)
	if !ok {
		return "", fmt.Errorf("cannot allocate a key above %q", a)
	}
	if i < b {
		return i, nil
	}
	return ia + midpoint(fa, ""), nil
}

func RequireKeyBetween(a string, b string) string {
	key, err := KeyBetween(a, b)
	if err != nil {
		panic(err)
	}
	return key
}

// midpoint returns a fraction strictly between fractions a and b,
// where an empty a means zero and an empty b means one
func midpoint(a string, b string) string {
	if b != "" {
		// shared prefix, treating a as zero-padded
		n := 0
		for n < len(b) {
			ca := byte(posKeyDigits[0])
			if n < len(a) {
				ca = a[n]
			}
			if ca != b[n] {
				break
			}
			n += 1
		}
		if 0 < n {
			if n <= len(a) {
				return b[:n] + midpoint(a[n:], b[n:])
			}
			return b[:n] + midpoint("", b[n:])
		}
	}

	digitA := 0
	if a != "" {
		digitA = strings.IndexByte(posKeyDigits, a[0])
	}
	digitB := len(posKeyDigits)
	if b != "" {
		digitB = strings.IndexByte(posKeyDigits, b[0])
	}
	if 1 < digitB-digitA {
		mid := (digitA + digitB + 1) / 2
		return string(posKeyDigits[mid])
	}
	// consecutive digits
	if 1 < len(b) {
		return b[:1]
	}
	rest := ""
	if a != "" {
		rest = a[1:]
	}
	return string(posKeyDigits[digitA]) + midpoint(rest, "")
}

func integerLength(head byte) (int, error) {
	if 'a' <= head && head <= 'z' {
		return int(head-'a') + 2, nil
	}
	if 'A' <= head && head <= 'Z' {
		return int('Z'-head) + 2, nil
	}
	return 0, fmt.Errorf("invalid key head %q", string(head))
}

func integerPart(key string) (string, error) {
	n, err := integerLength(key[0])
	if err != nil {
		return "", err
	}
	if len(key) < n {
		return "", fmt.Errorf("key %q is shorter than its integer part", key)
	}
	return key[:n], nil
}

func smallestInteger() string {
	n, _ := integerLength('A')
	return "A" + strings.Repeat(string(posKeyDigits[0]), n-1)
}

func validateKey(key string) error {
	if key == smallestInteger() {
		return fmt.Errorf("key %q is the exclusive lower bound", key)
	}
	i, err := integerPart(key)
	if err != nil {
		return err
	}
	frac := key[len(i):]
	if frac != "" && frac[len(frac)-1] == posKeyDigits[0] {
		return fmt.Errorf("key %q has a trailing zero fraction digit", key)
	}
	return nil
}

func incrementInteger(x string) (string, bool) {
	head := x[0]
	digits := []byte(x[1:])
	carry := true
	for i := len(digits) - 1; carry && 0 <= i; i -= 1 {
		d := strings.IndexByte(posKeyDigits, digits[i]) + 1
		if d == len(posKeyDigits) {
			digits[i] = posKeyDigits[0]
		} else {
			digits[i] = posKeyDigits[d]
			carry = false
		}
	}
	if carry {
		if head == 'Z' {
			return "a" + string(posKeyDigits[0]), true
		}
		if head == 'z' {
			return "", false
		}
		next := head + 1
		if 'a' < next {
			// integer part grows by one digit
			digits = append(digits, posKeyDigits[0])
		} else {
			digits = digits[:len(digits)-1]
		}
		return string(next) + string(digits), true
	}
	return string(head) + string(digits), true
}

func decrementInteger(x string) (string, bool) {
	head := x[0]
	digits := []byte(x[1:])
	borrow := true
	for i := len(digits) - 1; borrow && 0 <= i; i -= 1 {
		d := strings.IndexByte(posKeyDigits, digits[i]) - 1
		if d == -1 {
			digits[i] = posKeyDigits[len(posKeyDigits)-1]
		} else {
			digits[i] = posKeyDigits[d]
			borrow = false
		}
	}
	if borrow {
		if head == 'a' {
			return "Z" + string(posKeyDigits[len(posKeyDigits)-1]), true
		}
		if head == 'A' {
			return "", false
		}
		next := head - 1
		if next < 'Z' {
			digits = append(digits, posKeyDigits[len(posKeyDigits)-1])
		} else {
			digits = digits[:len(digits)-1]
		}
		return string(next) + string(digits), true
	}
	return string(head) + string(digits), true
}
