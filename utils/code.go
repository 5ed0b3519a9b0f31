// File: utils/code.go
package utils

import "math/rand"

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRoomCode returns a random uppercase base-36 code of the given length.
// Uniqueness is the caller's problem; the directory retries on collision.
func NewRoomCode(length int) string {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(buf)
}
