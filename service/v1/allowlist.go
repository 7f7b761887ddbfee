package service

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	mt "github.com/txaty/go-merkletree"
	"go.uber.org/zap"

	xcommon "github.com/locey/NFTDrop/common"
	"github.com/locey/NFTDrop/engine"
	"github.com/locey/NFTDrop/logger/xzap"
	"github.com/locey/NFTDrop/service/svc"
	"github.com/locey/NFTDrop/stores/gdb/drop"
	types "github.com/locey/NFTDrop/types/v1"
)

// allowlistLeaf 白名单叶子
// Serialize输出与引擎LeafHash的编码逐字节一致:
// uint256(leafIndex) ‖ wallet ‖ uint256(maxQuantity)
type allowlistLeaf struct {
	LeafIndex   *big.Int
	Wallet      common.Address
	MaxQuantity *big.Int
}

func (l *allowlistLeaf) Serialize() ([]byte, error) {
	var packed []byte
	packed = append(packed, math.U256Bytes(l.LeafIndex)...)
	packed = append(packed, l.Wallet.Bytes()...)
	packed = append(packed, math.U256Bytes(l.MaxQuantity)...)
	return packed, nil
}

func keccak256Wrapper(data []byte) ([]byte, error) {
	return crypto.Keccak256(data), nil
}

// BuildAllowlistTree 按叶子下标顺序建树，返回根和每个成员的证明
func BuildAllowlistTree(entries []types.AllowlistEntryParam) (common.Hash, [][]common.Hash, error) {
	if len(entries) == 0 {
		return common.Hash{}, nil, errors.New("empty allowlist")
	}

	// 单叶子不成树，根就是叶子哈希，证明为空
	if len(entries) == 1 {
		root := engine.LeafHash(0, common.HexToAddress(entries[0].Wallet), entries[0].MaxQuantity)
		return root, [][]common.Hash{{}}, nil
	}

	blocks := make([]mt.DataBlock, 0, len(entries))
	for i, e := range entries {
		blocks = append(blocks, &allowlistLeaf{
			LeafIndex:   big.NewInt(int64(i)),
			Wallet:      common.HexToAddress(e.Wallet),
			MaxQuantity: new(big.Int).SetUint64(e.MaxQuantity),
		})
	}

	tree, err := mt.New(&mt.Config{
		HashFunc:         keccak256Wrapper,
		Mode:             mt.ModeProofGen,
		SortSiblingPairs: true,
	}, blocks)
	if err != nil {
		return common.Hash{}, nil, errors.Wrap(err, "build merkle tree")
	}

	proofs := make([][]common.Hash, len(entries))
	for i := range entries {
		siblings := make([]common.Hash, 0, len(tree.Proofs[i].Siblings))
		for _, s := range tree.Proofs[i].Siblings {
			siblings = append(siblings, common.BytesToHash(s))
		}
		proofs[i] = siblings
	}
	return common.BytesToHash(tree.Root), proofs, nil
}

// SetAllowlist 重建某阶段的白名单并持久化成员证明
// 返回的根需要管理员通过安装条件列表写进对应阶段才会生效
func SetAllowlist(ctx context.Context, s *svc.ServerCtx, req *types.SetAllowlistRequest) (*types.SetAllowlistResponse, error) {
	seen := make(map[string]struct{}, len(req.Entries))
	for _, e := range req.Entries {
		key := strings.ToLower(e.Wallet)
		if _, ok := seen[key]; ok {
			return nil, errors.Errorf("duplicate wallet in allowlist: %s", e.Wallet)
		}
		seen[key] = struct{}{}
	}

	root, proofs, err := BuildAllowlistTree(req.Entries)
	if err != nil {
		return nil, err
	}

	rows := make([]*drop.DropAllowlistEntry, 0, len(req.Entries))
	for i, e := range req.Entries {
		proofJSON, err := proofToJSON(proofs[i])
		if err != nil {
			return nil, err
		}
		rows = append(rows, &drop.DropAllowlistEntry{
			PhaseId:     req.PhaseId,
			LeafIndex:   uint64(i),
			Wallet:      common.HexToAddress(e.Wallet).Hex(),
			MaxQuantity: e.MaxQuantity,
			Proof:       proofJSON,
		})
	}
	if err := s.Dao.SaveAllowlistEntries(ctx, req.PhaseId, rows); err != nil {
		return nil, errors.Wrap(err, "save allowlist entries")
	}

	xzap.WithContext(ctx).Info("allowlist installed",
		zap.Int64("phase_id", req.PhaseId),
		zap.Int("leaf_count", len(rows)),
		zap.String("merkle_root", root.Hex()))

	return &types.SetAllowlistResponse{
		PhaseId:    req.PhaseId,
		MerkleRoot: root.Hex(),
		LeafCount:  len(rows),
	}, nil
}

// GetAllowlistProof 查询钱包在某阶段的白名单证明
func GetAllowlistProof(ctx context.Context, s *svc.ServerCtx, phaseId int64, wallet string) (*types.AllowlistProofResponse, error) {
	addr, err := xcommon.UnifyAddress(wallet)
	if err != nil {
		return nil, err
	}
	entry, err := s.Dao.GetAllowlistEntry(ctx, phaseId, addr)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, engine.ErrNotInWhitelist
	}
	siblings, err := parseProofJSON(entry.Proof)
	if err != nil {
		return nil, err
	}
	proofHex := make([]string, 0, len(siblings))
	for _, h := range siblings {
		proofHex = append(proofHex, h.Hex())
	}
	return &types.AllowlistProofResponse{
		PhaseId:     entry.PhaseId,
		LeafIndex:   entry.LeafIndex,
		Wallet:      entry.Wallet,
		MaxQuantity: entry.MaxQuantity,
		Proof:       proofHex,
	}, nil
}

func proofToJSON(proof []common.Hash) (string, error) {
	hexStrings := make([]string, 0, len(proof))
	for _, h := range proof {
		hexStrings = append(hexStrings, h.Hex())
	}
	data, err := json.Marshal(hexStrings)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseProofJSON(proofJSON string) ([]common.Hash, error) {
	if proofJSON == "" {
		return nil, nil
	}
	var hexStrings []string
	if err := json.Unmarshal([]byte(proofJSON), &hexStrings); err != nil {
		return nil, errors.Wrap(err, "parse proof json")
	}
	return proofFromStrings(hexStrings)
}

func proofFromStrings(hexStrings []string) ([]common.Hash, error) {
	proof := make([]common.Hash, 0, len(hexStrings))
	for _, h := range hexStrings {
		raw := strings.TrimPrefix(h, "0x")
		if len(raw) != 64 {
			return nil, errors.Errorf("invalid proof element: %s", h)
		}
		proof = append(proof, common.HexToHash(h))
	}
	return proof, nil
}
