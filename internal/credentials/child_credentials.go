package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Word lists for child-friendly usernames
var adjectives = []string{
	"happy", "sunny", "brave", "bright", "swift", "clever", "jolly", "mighty",
	"lucky", "magic", "bouncy", "cosmic", "daring", "eager", "gentle", "lively",
	"merry", "noble", "quick", "royal", "snappy", "turbo", "zippy", "epic",
}

var nouns = []string{
	"adder", "divider", "counter", "abacus", "compass", "ruler", "prism", "cube",
	"dragon", "tiger", "panda", "fox", "owl", "rocket", "wizard", "robot",
	"comet", "explorer", "ranger", "captain", "genius", "pilot", "knight", "otter",
}

// Ambiguous characters (0/O, 1/l/I) are left out so children can read the secret back
const secretAlphabet = "abcdefghijkmnpqrstuvwxyzACDEFGHJKLMNPQRTUVWXYZ23456789"

// SecretLength is the length of a generated child secret
const SecretLength = 6

// GenerateChildUsername returns a name like "clever-abacus42"
func GenerateChildUsername() (string, error) {
	adjective, err := randomElement(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomElement(nouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s%d", adjective, noun, n.Int64()), nil
}

// GenerateChildSecret generates a random secret a guardian can hand to a child
func GenerateChildSecret() (string, error) {
	secret := make([]byte, SecretLength)
	for i := range secret {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(secretAlphabet))))
		if err != nil {
			return "", err
		}
		secret[i] = secretAlphabet[num.Int64()]
	}
	return string(secret), nil
}

func randomElement(slice []string) (string, error) {
	if len(slice) == 0 {
		return "", nil
	}
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}
	return slice[num.Int64()], nil
}
