package merkle

import (
	"fmt"

	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// HistoryTree is a binary merkle tree over an account's transaction hashes, in the order
// the transactions were applied. The tree uses keccak256 hashing.
type HistoryTree struct {
	Leaves []types.Hash
	tree   *merkletree.MerkleTree
}

// HistoryProof proves that a transaction hash is part of an account history
type HistoryProof struct {
	// LeafIndex is the position of the transaction in the history
	LeafIndex uint64

	// Leaf is the transaction hash being proven
	Leaf types.Hash

	// Hashes are the sibling hashes from leaf to root
	Hashes [][]byte
}

// BuildHistoryTree creates a merkle tree from transaction hashes. Ordering is preserved,
// so the same history always yields the same root.
func BuildHistoryTree(history []types.Hash) (*HistoryTree, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty history")
	}

	data := make([][]byte, len(history))
	leaves := make([]types.Hash, len(history))
	for i, h := range history {
		if len(h) == 0 {
			return nil, fmt.Errorf("history entry %d is empty", i)
		}
		data[i] = append([]byte(nil), h...)
		leaves[i] = append(types.Hash(nil), h...)
	}

	tree, err := merkletree.NewTree(
		merkletree.WithData(data),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build merkle tree: %w", err)
	}

	return &HistoryTree{Leaves: leaves, tree: tree}, nil
}

// Root returns the merkle root of the history
func (ht *HistoryTree) Root() types.Hash {
	return append(types.Hash(nil), ht.tree.Root()...)
}

// GenerateProof creates a merkle proof for the transaction at leafIndex
func (ht *HistoryTree) GenerateProof(leafIndex int) (*HistoryProof, error) {
	if leafIndex < 0 || leafIndex >= len(ht.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(ht.Leaves))
	}

	leaf := ht.Leaves[leafIndex]
	proof, err := ht.tree.GenerateProof(leaf, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof: %w", err)
	}

	return &HistoryProof{
		LeafIndex: proof.Index,
		Leaf:      append(types.Hash(nil), leaf...),
		Hashes:    proof.Hashes,
	}, nil
}

// VerifyProof checks proof against a history root
func VerifyProof(proof *HistoryProof, root types.Hash) bool {
	if proof == nil || len(proof.Leaf) == 0 || len(root) == 0 {
		return false
	}
	ok, err := merkletree.VerifyProofUsing(
		proof.Leaf,
		false,
		&merkletree.Proof{Hashes: proof.Hashes, Index: proof.LeafIndex},
		[][]byte{root},
		keccak256.New(),
	)
	return err == nil && ok
}
