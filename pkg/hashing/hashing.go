package hashing

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"
)

// Algorithm names a content hash function
type Algorithm string

const (
	AlgorithmSHA256    Algorithm = "sha256"
	AlgorithmKeccak256 Algorithm = "keccak256"
	AlgorithmBlake2b   Algorithm = "blake2b"
	AlgorithmBlake3    Algorithm = "blake3"
)

// DefaultAlgorithm matches the ledger's transaction hash
const DefaultAlgorithm = AlgorithmSHA256

// HashFunc hashes data into a 32 byte digest
type HashFunc func(data []byte) []byte

// ParseAlgorithm converts a configured name into an Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if a == "" {
		return DefaultAlgorithm, nil
	}
	if _, err := a.Func(); err != nil {
		return "", err
	}
	return a, nil
}

// SupportedAlgorithms lists every algorithm Func can resolve
func SupportedAlgorithms() []Algorithm {
	return []Algorithm{AlgorithmSHA256, AlgorithmKeccak256, AlgorithmBlake2b, AlgorithmBlake3}
}

// Func returns the hash function for the algorithm
func (a Algorithm) Func() (HashFunc, error) {
	switch a {
	case AlgorithmSHA256:
		return func(data []byte) []byte {
			sum := sha256.Sum256(data)
			return sum[:]
		}, nil
	case AlgorithmKeccak256:
		return func(data []byte) []byte {
			return crypto.Keccak256(data)
		}, nil
	case AlgorithmBlake2b:
		return func(data []byte) []byte {
			sum := blake2b.Sum256(data)
			return sum[:]
		}, nil
	case AlgorithmBlake3:
		return func(data []byte) []byte {
			sum := blake3.Sum256(data)
			return sum[:]
		}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", a)
	}
}

// Sum hashes data with the algorithm
func (a Algorithm) Sum(data []byte) ([]byte, error) {
	f, err := a.Func()
	if err != nil {
		return nil, err
	}
	return f(data), nil
}
