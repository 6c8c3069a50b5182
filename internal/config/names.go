package config

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var nameAdjectives = []string{
	"juicy", "zesty", "bouncy", "cosmic", "witty", "sparkly", "sleepy", "brave", "sneaky",
	"happy", "mellow", "curious", "tiny", "giant", "swift", "cuddly", "crispy", "gentle",
	"spicy", "funky",
}

var nameNouns = []string{
	"strawberry", "pineapple", "mango", "blueberry", "kiwi", "peach", "avocado", "lemon",
	"tangerine", "panda", "otter", "penguin", "alpaca", "badger", "fox", "koala", "gecko",
	"hamster", "turtle", "narwhal",
}

// FunnyName derives a stable "adjective_noun" device name from id.
// Bytes 0-1 (little endian) pick the adjective, bytes 2-3 the noun.
func FunnyName(id uuid.UUID) string {
	a := binary.LittleEndian.Uint16(id[0:2])
	n := binary.LittleEndian.Uint16(id[2:4])
	return nameAdjectives[int(a)%len(nameAdjectives)] + "_" + nameNouns[int(n)%len(nameNouns)]
}

// NormalizeDeviceName trims and NFC-normalises a user-supplied name.
func NormalizeDeviceName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
