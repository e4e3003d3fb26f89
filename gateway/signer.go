package gateway

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	l1DomainName    = "Exchange"
	l1DomainVersion = "1"
	l1ChainID       = 1337
)

// Signature 交易所要求的 r/s/v 格式。
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer 对 L1 action 进行签名：
// keccak(msgpack(action) || nonce || vault) 作为 connectionId，再以 EIP-712 Agent 结构签名。
type Signer struct {
	key     *ecdsa.PrivateKey
	mainnet bool
}

// NewSigner 从十六进制私钥创建签名器（可带 0x 前缀）。
func NewSigner(hexKey string, mainnet bool) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return &Signer{key: key, mainnet: mainnet}, nil
}

// Address 签名地址。
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// ActionHash 计算 action 的 connectionId。
func ActionHash(action any, vault string, nonce int64) (common.Hash, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return common.Hash{}, errors.Wrap(err, "msgpack action")
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(nonce))
	buf.Write(n[:])
	if vault == "" {
		buf.WriteByte(0x00)
	} else {
		buf.WriteByte(0x01)
		buf.Write(common.HexToAddress(vault).Bytes())
	}
	return crypto.Keccak256Hash(buf.Bytes()), nil
}

func agentTypedData(connectionID common.Hash, mainnet bool) apitypes.TypedData {
	source := "b"
	if mainnet {
		source = "a"
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              l1DomainName,
			Version:           l1DomainVersion,
			ChainId:           math.NewHexOrDecimal256(l1ChainID),
			VerifyingContract: common.Address{}.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": connectionID.Bytes(),
		},
	}
}

// typedDataHash 计算 \x19\x01 || domainSeparator || hashStruct(message)。
func typedDataHash(td apitypes.TypedData) (common.Hash, error) {
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "hash domain")
	}
	msgHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "hash message")
	}
	raw := append([]byte("\x19\x01"), domainSeparator...)
	raw = append(raw, msgHash...)
	return crypto.Keccak256Hash(raw), nil
}

// SignL1Action 对 action 签名。
func (s *Signer) SignL1Action(action any, vault string, nonce int64) (Signature, error) {
	connID, err := ActionHash(action, vault, nonce)
	if err != nil {
		return Signature{}, err
	}
	digest, err := typedDataHash(agentTypedData(connID, s.mainnet))
	if err != nil {
		return Signature{}, err
	}
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return Signature{}, errors.Wrap(err, "sign")
	}
	return Signature{
		R: hexutil.EncodeBig(new(big.Int).SetBytes(sig[:32])),
		S: hexutil.EncodeBig(new(big.Int).SetBytes(sig[32:64])),
		V: int(sig[64]) + 27,
	}, nil
}

// RecoverL1Signer 根据签名恢复地址，用于测试与自检。
func RecoverL1Signer(action any, vault string, nonce int64, mainnet bool, sig Signature) (common.Address, error) {
	connID, err := ActionHash(action, vault, nonce)
	if err != nil {
		return common.Address{}, err
	}
	digest, err := typedDataHash(agentTypedData(connID, mainnet))
	if err != nil {
		return common.Address{}, err
	}
	r, err := hexutil.DecodeBig(sig.R)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "decode r")
	}
	sv, err := hexutil.DecodeBig(sig.S)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "decode s")
	}
	raw := make([]byte, 65)
	r.FillBytes(raw[:32])
	sv.FillBytes(raw[32:64])
	raw[64] = byte(sig.V - 27)
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recover")
	}
	return crypto.PubkeyToAddress(*pub), nil
}
