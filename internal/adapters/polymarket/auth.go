package polymarket

// auth.go — Polymarket CLOB authenticated client.
//
// Two-level authentication:
//   L1: EIP-712 signature with the wallet private key → derive API credentials
//   L2: HMAC-SHA256 signing of every authenticated request
//       (timestamp + METHOD + path + body canonical string)

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
)

const (
	polygonChainID = int64(137)

	clobDomainName    = "ClobAuthDomain"
	clobDomainVersion = "1"
	clobAuthMessage   = "This message attests that I control the given wallet"

	// Zero address as taker = open order anyone can fill.
	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// privateKeyPattern is the strict credential shape for live execution:
// exactly 64 hex characters, optional 0x prefix. Anything else is a
// hard failure, never silently downgraded to simulation.
var privateKeyPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// ValidPrivateKey reports whether s is a well-formed signing key.
func ValidPrivateKey(s string) bool {
	return privateKeyPattern.MatchString(s)
}

// apiCredentials holds the CLOB API credentials derived from a wallet.
type apiCredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// AuthClient signs and submits authenticated CLOB requests.
type AuthClient struct {
	http         *http.Client
	clobBase     string
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	orderBuilder builder.ExchangeOrderBuilder
	creds        *apiCredentials
}

// NewAuthClient creates an authenticated trading client from a private
// key in hex form (0x prefix tolerated).
func NewAuthClient(clobBase, privateKeyHex string) (*AuthClient, error) {
	if !ValidPrivateKey(privateKeyHex) {
		return nil, fmt.Errorf("auth: private key must be 64 hex characters")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("auth: invalid private key: %w", err)
	}

	if clobBase == "" {
		clobBase = defaultCLOBBase
	}

	return &AuthClient{
		http:         &http.Client{Timeout: 10 * time.Second},
		clobBase:     clobBase,
		privateKey:   key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		orderBuilder: builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil),
	}, nil
}

// Address returns the wallet address.
func (ac *AuthClient) Address() string {
	return ac.address.Hex()
}

// EnsureCreds derives (or re-derives) API credentials via L1 auth.
// Credentials are cached after the first successful call.
func (ac *AuthClient) EnsureCreds(ctx context.Context) error {
	if ac.creds != nil {
		return nil
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := ac.signClobAuth(ts, "0")
	if err != nil {
		return fmt.Errorf("auth: sign l1: %w", err)
	}

	url := ac.clobBase + "/auth/derive-api-key"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: derive-api-key request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", ac.address.Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_NONCE", "0")

	resp, err := ac.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth: derive-api-key: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: derive-api-key status %d: %s", resp.StatusCode, body)
	}

	var creds apiCredentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return fmt.Errorf("auth: parse creds: %w", err)
	}
	ac.creds = &creds
	return nil
}

// EIP-712 type hashes (computed once).
var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId)",
	))
	clobAuthTypeHash = crypto.Keccak256Hash([]byte(
		"ClobAuth(address address,string timestamp,uint256 nonce,string message)",
	))
)

func clobAuthDomainSeparator() common.Hash {
	var buf []byte
	buf = append(buf, eip712DomainTypeHash.Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainName)).Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainVersion)).Bytes()...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(polygonChainID).Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// signClobAuth signs the ClobAuth EIP-712 typed data for L1 auth.
func (ac *AuthClient) signClobAuth(timestamp, nonce string) (string, error) {
	nonceInt, ok := new(big.Int).SetString(nonce, 10)
	if !ok {
		return "", fmt.Errorf("invalid nonce: %s", nonce)
	}

	var structBuf []byte
	structBuf = append(structBuf, clobAuthTypeHash.Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(ac.address.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(timestamp)).Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(nonceInt.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(clobAuthMessage)).Bytes()...)
	structHash := crypto.Keccak256Hash(structBuf)

	var rawBuf []byte
	rawBuf = append(rawBuf, 0x19, 0x01)
	rawBuf = append(rawBuf, clobAuthDomainSeparator().Bytes()...)
	rawBuf = append(rawBuf, structHash.Bytes()...)
	msgHash := crypto.Keccak256Hash(rawBuf)

	sig, err := crypto.Sign(msgHash.Bytes(), ac.privateKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + fmt.Sprintf("%x", sig), nil
}

// l2Headers returns the authenticated headers for L2 API calls. The
// shared secret is usually base64, but some credential stores hand it
// over raw; tolerate both.
func (ac *AuthClient) l2Headers(method, path, body string) (map[string]string, error) {
	if ac.creds == nil {
		return nil, fmt.Errorf("auth: credentials not derived yet")
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	mac := hmac.New(sha256.New, secretBytes(ac.creds.Secret))
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    ac.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    ac.creds.APIKey,
		"POLY_PASSPHRASE": ac.creds.Passphrase,
	}, nil
}

// secretBytes decodes a base64(-url) secret, falling back to the raw
// string bytes when it is not valid base64.
func secretBytes(secret string) []byte {
	if b, err := base64.URLEncoding.DecodeString(secret); err == nil {
		return b
	}
	if b, err := base64.StdEncoding.DecodeString(secret); err == nil {
		return b
	}
	return []byte(secret)
}

// doL2 executes an authenticated L2 request. HMAC headers are rebuilt
// per call so the timestamp stays fresh.
func (ac *AuthClient) doL2(ctx context.Context, method, path string, reqBody, out any) error {
	var bodyStr string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyStr = string(b)
	}

	headers, err := ac.l2Headers(method, path, bodyStr)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if bodyStr != "" {
		bodyReader = strings.NewReader(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, ac.clobBase+path, bodyReader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ac.http.Do(req)
	if err != nil {
		return fmt.Errorf("l2 %s %s: %w", method, path, err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Upstream rejection text surfaces verbatim to the caller.
		return fmt.Errorf("l2 %s %s: status %d: %s", method, path, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
