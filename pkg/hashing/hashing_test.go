package hashing

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgorithms_KnownVectors(t *testing.T) {
	tests := []struct {
		algo     Algorithm
		expected string
	}{
		{AlgorithmSHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{AlgorithmKeccak256, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{AlgorithmBlake2b, "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"},
		{AlgorithmBlake3, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			sum, err := tt.algo.Sum(nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, hex.EncodeToString(sum))
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, a)

	a, err = ParseAlgorithm(" Keccak256 ")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmKeccak256, a)

	_, err = ParseAlgorithm("md5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported hash algorithm")
}
