// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package tapo

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" // #nosec G505 -- the device protocol prescribes SHA-1 for the username digest
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ImaSet/laptop-smart-power-manager/pkg/metrics"
)

const (
	sessionCookie = "TP_SESSIONID"

	requestTimeout          = 5 * time.Second
	breakerResetTimeout     = 2 * time.Second
	breakerFailureThreshold = 3
)

// request is the wire envelope shared by plain and passthrough calls.
type request struct {
	Method          string          `json:"method"`
	Params          json.RawMessage `json:"params,omitempty"`
	RequestTimeMils int64           `json:"requestTimeMils,omitempty"`
	TerminalUUID    string          `json:"terminalUUID,omitempty"`
}

type response struct {
	ErrorCode int             `json:"error_code"`
	Result    json.RawMessage `json:"result"`
}

type handshakeParams struct {
	Key string `json:"key"`
}

type handshakeResult struct {
	Key string `json:"key"`
}

type loginParams struct {
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginResult struct {
	Token string `json:"token"`
}

type passthroughParams struct {
	Request string `json:"request"`
}

type passthroughResult struct {
	Response string `json:"response"`
}

type deviceOnParams struct {
	DeviceOn bool `json:"device_on"`
}

// Error codes the device is known to answer with.
var errorCodes = map[int]string{
	-1010: "invalid public key length",
	-1012: "invalid terminal UUID",
	-1501: "invalid request or credentials",
	-1003: "JSON formatting error",
	1002:  "incorrect request",
	9999:  "session timeout",
}

// deviceError converts a non-zero error_code into an error.
func deviceError(code int) error {
	if code == 0 {
		return nil
	}
	if msg, ok := errorCodes[code]; ok {
		return fmt.Errorf("device error %d: %s", code, msg)
	}
	return fmt.Errorf("device error %d", code)
}

// session holds the AES material negotiated during the handshake.
type session struct {
	block cipher.Block
	iv    []byte
}

func newSession(material []byte) (*session, error) {
	if len(material) < 32 {
		return nil, fmt.Errorf("handshake key material is %d bytes, want 32", len(material))
	}
	block, err := aes.NewCipher(material[:16])
	if err != nil {
		return nil, err
	}
	return &session{block: block, iv: material[16:32]}, nil
}

// encrypt AES-CBC encrypts plaintext with PKCS#7 padding and base64 encodes it.
func (s *session) encrypt(plaintext []byte) string {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, s.iv).CryptBlocks(ciphertext, padded)
	return base64.StdEncoding.EncodeToString(ciphertext)
}

// decrypt reverses encrypt.
func (s *session) decrypt(encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(s.block, s.iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}

// hashedUsername encodes the account username the way the device expects it:
// base64 over the hex form of its SHA-1 digest.
func hashedUsername(username string) string {
	digest := sha1.Sum([]byte(username)) // #nosec G401
	hexDigest := hex.EncodeToString(digest[:])
	return base64.StdEncoding.EncodeToString([]byte(hexDigest))
}

// transport posts JSON envelopes to the device. A circuit breaker fast-fails
// requests while the device keeps timing out, so the 100 ms verification
// poll does not pile up connections against a dead plug.
type transport struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
	cookie  string
}

func newTransport(address string) *transport {
	return &transport{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: "http://" + address + "/app",
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "tapo " + address,
			MaxRequests: 1,
			Timeout:     breakerResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailureThreshold
			},
		}),
	}
}

type wireResult struct {
	resp    *response
	cookies []*http.Cookie
}

// roundTrip posts one envelope and decodes the outer response. token is
// empty before login.
func (t *transport) roundTrip(req request, token string) (*response, []*http.Cookie, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}

	url := t.baseURL
	if token != "" {
		url += "?token=" + token
	}

	result, err := t.breaker.Execute(func() (interface{}, error) {
		httpReq, reqErr := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if t.cookie != "" {
			httpReq.Header.Set("Cookie", t.cookie)
		}

		httpResp, doErr := t.client.Do(httpReq)
		if doErr != nil {
			return nil, doErr
		}
		defer func() { _ = httpResp.Body.Close() }()

		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", httpResp.Status)
		}

		data, readErr := io.ReadAll(httpResp.Body)
		if readErr != nil {
			return nil, readErr
		}

		var decoded response
		if unmarshalErr := json.Unmarshal(data, &decoded); unmarshalErr != nil {
			return nil, unmarshalErr
		}
		return &wireResult{resp: &decoded, cookies: httpResp.Cookies()}, nil
	})
	if err != nil {
		metrics.PlugRequestsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	metrics.PlugRequestsTotal.WithLabelValues("success").Inc()

	wire := result.(*wireResult)
	return wire.resp, wire.cookies, nil
}
