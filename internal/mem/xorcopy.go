package mem

// XORAndCopy sets dst[i] = a[i] ^ b[i] and b[i] = dst[i] for each i.
func XORAndCopy(dst, a, b []byte) {
	for i := range dst {
		d := a[i] ^ b[i]
		dst[i] = d
		b[i] = d
	}
}

// SliceForAppend takes a slice and a requested number of bytes, and returns a slice with the
// original contents and a second slice that aliases the tail of the first and is at least n
// bytes long. Used by EncryptAndMAC/DecryptAndMAC to grow dst in place when possible, the same
// idiom crypto/cipher's sealer implementations use.
func SliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}
