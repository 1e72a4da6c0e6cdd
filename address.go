package tss

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// BitcoinNetwork selects the address version bytes and bech32 prefix.
type BitcoinNetwork string

const (
	NetworkMainnet BitcoinNetwork = "mainnet"
	NetworkTestnet BitcoinNetwork = "testnet"
)

// AddressType identifies the encoding of a produced or decoded address.
type AddressType string

const (
	AddressP2PKH    AddressType = "p2pkh"
	AddressP2SH     AddressType = "p2sh"
	AddressP2WPKH   AddressType = "p2wpkh"
	AddressP2WSH    AddressType = "p2wsh"
	AddressEthereum AddressType = "ethereum"
)

type networkParams struct {
	p2pkhVersion byte
	p2shVersion  byte
	hrp          string
}

func paramsForNetwork(network BitcoinNetwork) (networkParams, error) {
	switch network {
	case NetworkMainnet:
		return networkParams{p2pkhVersion: 0x00, p2shVersion: 0x05, hrp: "bc"}, nil
	case NetworkTestnet:
		return networkParams{p2pkhVersion: 0x6f, p2shVersion: 0xc4, hrp: "tb"}, nil
	default:
		return networkParams{}, ErrInvalidTransaction.WithDetails("unknown network %q", network)
	}
}

// Address is a rendered address together with how it was encoded.
type Address struct {
	String  string
	Network BitcoinNetwork
	Type    AddressType
}

func validateCompressedPubKey(publicKey []byte) error {
	if len(publicKey) != 33 {
		return ErrInvalidPrivateKey.WithDetails(
			"compressed public key must be 33 bytes, got %d", len(publicKey))
	}
	if _, err := btcec.ParsePubKey(publicKey); err != nil {
		return ErrInvalidPrivateKey.WithDetails("public key is not on the curve").WithCause(err)
	}
	return nil
}

// NewP2PKHAddress derives a legacy pay-to-pubkey-hash address from a
// compressed secp256k1 public key.
func NewP2PKHAddress(publicKey []byte, network BitcoinNetwork) (*Address, error) {
	params, err := paramsForNetwork(network)
	if err != nil {
		return nil, err
	}
	if err := validateCompressedPubKey(publicKey); err != nil {
		return nil, err
	}
	encoded := base58.CheckEncode(Hash160(publicKey), params.p2pkhVersion)
	return &Address{String: encoded, Network: network, Type: AddressP2PKH}, nil
}

// NewP2SHAddress derives a pay-to-script-hash address from a redeem script.
func NewP2SHAddress(redeemScript []byte, network BitcoinNetwork) (*Address, error) {
	params, err := paramsForNetwork(network)
	if err != nil {
		return nil, err
	}
	if len(redeemScript) == 0 {
		return nil, ErrInvalidTransaction.WithDetails("empty redeem script")
	}
	encoded := base58.CheckEncode(Hash160(redeemScript), params.p2shVersion)
	return &Address{String: encoded, Network: network, Type: AddressP2SH}, nil
}

// NewP2WPKHAddress derives a native segwit v0 address from a compressed
// secp256k1 public key.
func NewP2WPKHAddress(publicKey []byte, network BitcoinNetwork) (*Address, error) {
	params, err := paramsForNetwork(network)
	if err != nil {
		return nil, err
	}
	if err := validateCompressedPubKey(publicKey); err != nil {
		return nil, err
	}
	encoded, err := encodeSegWit(params.hrp, 0, Hash160(publicKey))
	if err != nil {
		return nil, err
	}
	return &Address{String: encoded, Network: network, Type: AddressP2WPKH}, nil
}

// encodeSegWit packs a witness program into bech32 (version 0) or bech32m
// (version 1 and up) per BIP173/BIP350.
func encodeSegWit(hrp string, witnessVersion byte, program []byte) (string, error) {
	if witnessVersion > 16 {
		return "", ErrInvalidTransaction.WithDetails("witness version %d out of range", witnessVersion)
	}
	if len(program) < 2 || len(program) > 40 {
		return "", ErrInvalidTransaction.WithDetails(
			"witness program length %d out of range", len(program))
	}
	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", ErrInvalidTransaction.WithCause(err)
	}
	data := append([]byte{witnessVersion}, converted...)
	if witnessVersion == 0 {
		return bech32.Encode(hrp, data)
	}
	return bech32.EncodeM(hrp, data)
}

// DecodedAddress is the payload recovered from a Bitcoin address string.
type DecodedAddress struct {
	Type           AddressType
	Network        BitcoinNetwork
	Hash           []byte
	WitnessVersion byte
}

// DecodeBitcoinAddress parses a base58check or bech32 address, verifying
// its checksum and that it belongs to the given network.
func DecodeBitcoinAddress(addr string, network BitcoinNetwork) (*DecodedAddress, error) {
	params, err := paramsForNetwork(network)
	if err != nil {
		return nil, err
	}
	if addr == "" {
		return nil, ErrInvalidTransaction.WithDetails("empty address")
	}

	lowered := strings.ToLower(addr)
	if strings.HasPrefix(lowered, params.hrp+"1") {
		return decodeSegWit(addr, params.hrp, network)
	}

	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, ErrInvalidTransaction.WithDetails("base58 decode failed").WithCause(err)
	}
	if len(payload) != 20 {
		return nil, ErrInvalidTransaction.WithDetails(
			"base58 payload must be 20 bytes, got %d", len(payload))
	}
	switch version {
	case params.p2pkhVersion:
		return &DecodedAddress{Type: AddressP2PKH, Network: network, Hash: payload}, nil
	case params.p2shVersion:
		return &DecodedAddress{Type: AddressP2SH, Network: network, Hash: payload}, nil
	default:
		return nil, ErrInvalidTransaction.WithDetails(
			"version byte 0x%02x does not belong to %s", version, network)
	}
}

func decodeSegWit(addr, hrp string, network BitcoinNetwork) (*DecodedAddress, error) {
	// bech32.DecodeGeneric rejects mixed case and bad checksums itself.
	decodedHRP, data, bechVersion, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, ErrInvalidTransaction.WithDetails("bech32 decode failed").WithCause(err)
	}
	if decodedHRP != hrp {
		return nil, ErrInvalidTransaction.WithDetails(
			"prefix %q does not belong to %s", decodedHRP, network)
	}
	if len(data) < 1 {
		return nil, ErrInvalidTransaction.WithDetails("missing witness version")
	}
	witnessVersion := data[0]
	if witnessVersion > 16 {
		return nil, ErrInvalidTransaction.WithDetails(
			"witness version %d out of range", witnessVersion)
	}
	if witnessVersion == 0 && bechVersion != bech32.Version0 {
		return nil, ErrInvalidTransaction.WithDetails("witness v0 requires bech32 checksum")
	}
	if witnessVersion != 0 && bechVersion != bech32.VersionM {
		return nil, ErrInvalidTransaction.WithDetails("witness v1+ requires bech32m checksum")
	}
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, ErrInvalidTransaction.WithDetails("invalid witness program padding").WithCause(err)
	}
	if len(program) < 2 || len(program) > 40 {
		return nil, ErrInvalidTransaction.WithDetails(
			"witness program length %d out of range", len(program))
	}
	addrType := AddressType("")
	switch {
	case witnessVersion == 0 && len(program) == 20:
		addrType = AddressP2WPKH
	case witnessVersion == 0 && len(program) == 32:
		addrType = AddressP2WSH
	case witnessVersion == 0:
		return nil, ErrInvalidTransaction.WithDetails(
			"witness v0 program must be 20 or 32 bytes, got %d", len(program))
	default:
		addrType = AddressP2WSH
	}
	return &DecodedAddress{
		Type:           addrType,
		Network:        network,
		Hash:           program,
		WitnessVersion: witnessVersion,
	}, nil
}

// NewEthereumAddress derives the EIP-55 checksummed address for a
// secp256k1 public key, accepting either compressed or uncompressed form.
func NewEthereumAddress(publicKey []byte) (*Address, error) {
	raw, err := EthereumAddressBytes(publicKey)
	if err != nil {
		return nil, ErrInvalidPrivateKey.WithDetails("public key is not on the curve").WithCause(err)
	}
	return &Address{
		String: ChecksummedEthereumAddress(raw),
		Type:   AddressEthereum,
	}, nil
}

// ChecksummedEthereumAddress renders 20 address bytes with EIP-55 mixed
// case.
func ChecksummedEthereumAddress(addr []byte) string {
	lower := hex.EncodeToString(addr)
	hash := Keccak256([]byte(lower))
	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		ch := lower[i]
		if ch >= 'a' && ch <= 'f' {
			nibble := hash[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x0f >= 8 {
				ch = ch - 'a' + 'A'
			}
		}
		out[i] = ch
	}
	return "0x" + string(out)
}

// ValidateEthereumAddress checks length, hex validity, and the EIP-55
// checksum. All-lowercase and all-uppercase addresses carry no checksum
// and are accepted as-is.
func ValidateEthereumAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		return ErrInvalidTransaction.WithDetails("address must be 0x followed by 40 hex digits")
	}
	body := addr[2:]
	raw, err := hex.DecodeString(body)
	if err != nil {
		return ErrInvalidTransaction.WithDetails("address is not valid hex").WithCause(err)
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}
	if ChecksummedEthereumAddress(raw) != addr {
		return ErrInvalidTransaction.WithDetails("EIP-55 checksum mismatch")
	}
	return nil
}
