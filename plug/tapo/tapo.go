// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package tapo implements the driver for TP-Link Tapo smart plugs.
//
// Tapo devices expose an HTTP endpoint speaking the "secure passthrough"
// protocol: a handshake exchanges an RSA-encrypted AES session key, the
// account then logs in through the encrypted channel for a request token,
// and every subsequent command travels AES-CBC encrypted inside a
// passthrough envelope.
package tapo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
	"github.com/ImaSet/laptop-smart-power-manager/plug"
)

func init() {
	plug.Register(registryConnect, "P100", "P105", "P110", "P115")
}

func registryConnect(model, address string, account plug.Account) (plug.Driver, error) {
	return Connect(model, address, account)
}

// Plug is an authenticated session with one Tapo device.
type Plug struct {
	model    string
	addr     string
	wire     *transport
	sess     *session
	token    string
	terminal string
}

var _ plug.Driver = (*Plug)(nil)

// Connect opens an authenticated session with the plug at address. It fails
// with a ConnectionError when the device is unreachable or rejects the
// handshake or login.
func Connect(model, address string, account plug.Account) (*Plug, error) {
	username, err := account.Username()
	if err != nil {
		return nil, err
	}
	password, err := account.Password()
	if err != nil {
		return nil, err
	}

	p := &Plug{
		model:    model,
		addr:     address,
		wire:     newTransport(address),
		terminal: uuid.NewString(),
	}
	if err := p.handshake(); err != nil {
		return nil, apperrors.NewConnectionError("handshake", address, err)
	}
	if err := p.login(username, password); err != nil {
		return nil, apperrors.NewConnectionError("login", address, err)
	}

	logger.Debug().
		Str("model", model).
		Str("address", address).
		Msg("Smart plug session established")
	return p, nil
}

// handshake sends our RSA public key and recovers the AES session material
// from the encrypted reply.
func (p *Plug) handshake() error {
	// The device firmware only accepts 1024-bit keys.
	priv, err := rsa.GenerateKey(rand.Reader, 1024) // #nosec G403
	if err != nil {
		return err
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return err
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	params, err := json.Marshal(handshakeParams{Key: string(pemKey)})
	if err != nil {
		return err
	}
	resp, cookies, err := p.wire.roundTrip(request{
		Method:          "handshake",
		Params:          params,
		RequestTimeMils: time.Now().UnixMilli(),
	}, "")
	if err != nil {
		return err
	}
	if err := deviceError(resp.ErrorCode); err != nil {
		return err
	}

	for _, cookie := range cookies {
		if cookie.Name == sessionCookie {
			p.wire.cookie = sessionCookie + "=" + cookie.Value
		}
	}
	if p.wire.cookie == "" {
		return fmt.Errorf("handshake response carries no %s cookie", sessionCookie)
	}

	var result handshakeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return err
	}
	sealed, err := base64.StdEncoding.DecodeString(result.Key)
	if err != nil {
		return err
	}
	material, err := rsa.DecryptPKCS1v15(rand.Reader, priv, sealed)
	if err != nil {
		return err
	}
	p.sess, err = newSession(material)
	return err
}

// login authenticates the Tapo account over the encrypted channel and keeps
// the token the device hands back.
func (p *Plug) login(username, password string) error {
	params, err := json.Marshal(loginParams{
		Username: hashedUsername(username),
		Password: base64.StdEncoding.EncodeToString([]byte(password)),
	})
	if err != nil {
		return err
	}
	result, err := p.passthrough("login_device", params, false)
	if err != nil {
		return err
	}
	var login loginResult
	if err := json.Unmarshal(result, &login); err != nil {
		return err
	}
	if login.Token == "" {
		return fmt.Errorf("login response carries no token")
	}
	p.token = login.Token
	return nil
}

// passthrough sends an encrypted inner request and returns the decrypted
// inner result. withToken appends the login token, required for every
// method except login_device itself.
func (p *Plug) passthrough(method string, params json.RawMessage, withToken bool) (json.RawMessage, error) {
	inner := request{
		Method:          method,
		Params:          params,
		RequestTimeMils: time.Now().UnixMilli(),
	}
	token := ""
	if withToken {
		token = p.token
		inner.TerminalUUID = p.terminal
	}
	innerBody, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}

	outerParams, err := json.Marshal(passthroughParams{Request: p.sess.encrypt(innerBody)})
	if err != nil {
		return nil, err
	}
	resp, _, err := p.wire.roundTrip(request{Method: "securePassthrough", Params: outerParams}, token)
	if err != nil {
		return nil, err
	}
	if err := deviceError(resp.ErrorCode); err != nil {
		return nil, err
	}

	var sealed passthroughResult
	if err := json.Unmarshal(resp.Result, &sealed); err != nil {
		return nil, err
	}
	plaintext, err := p.sess.decrypt(sealed.Response)
	if err != nil {
		return nil, err
	}

	var innerResp response
	if err := json.Unmarshal(plaintext, &innerResp); err != nil {
		return nil, err
	}
	if err := deviceError(innerResp.ErrorCode); err != nil {
		return nil, err
	}
	return innerResp.Result, nil
}

// Model returns the device model this session was opened for.
func (p *Plug) Model() string {
	return p.model
}

func (p *Plug) deviceInfo() (json.RawMessage, error) {
	result, err := p.passthrough("get_device_info", nil, true)
	if err != nil {
		return nil, apperrors.NewConnectionError("get device info", p.addr, err)
	}
	return result, nil
}

// IsOn reports whether the relay is currently on.
func (p *Plug) IsOn() (bool, error) {
	result, err := p.deviceInfo()
	if err != nil {
		return false, err
	}
	var info struct {
		DeviceOn bool `json:"device_on"`
	}
	if err := json.Unmarshal(result, &info); err != nil {
		return false, apperrors.NewConnectionError("get device info", p.addr, err)
	}
	return info.DeviceOn, nil
}

// Name returns the nickname assigned to the device in the Tapo app. The
// device reports it base64 encoded.
func (p *Plug) Name() (string, error) {
	result, err := p.deviceInfo()
	if err != nil {
		return "", err
	}
	var info struct {
		Nickname string `json:"nickname"`
	}
	if err := json.Unmarshal(result, &info); err != nil {
		return "", apperrors.NewConnectionError("get device info", p.addr, err)
	}
	name, err := base64.StdEncoding.DecodeString(info.Nickname)
	if err != nil {
		return "", fmt.Errorf("decode nickname: %w", err)
	}
	return string(name), nil
}

// Info returns the raw device metadata as reported by get_device_info.
func (p *Plug) Info() (map[string]any, error) {
	result, err := p.deviceInfo()
	if err != nil {
		return nil, err
	}
	var info map[string]any
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, apperrors.NewConnectionError("get device info", p.addr, err)
	}
	return info, nil
}

// TurnOn requests the relay on. The device acknowledges the command before
// the relay state settles, so callers verify with IsOn.
func (p *Plug) TurnOn() error {
	return p.setDeviceOn(true)
}

// TurnOff requests the relay off.
func (p *Plug) TurnOff() error {
	return p.setDeviceOn(false)
}

func (p *Plug) setDeviceOn(on bool) error {
	params, err := json.Marshal(deviceOnParams{DeviceOn: on})
	if err != nil {
		return err
	}
	if _, err := p.passthrough("set_device_info", params, true); err != nil {
		action := "off"
		if on {
			action = "on"
		}
		return apperrors.NewConnectionError("turn "+action, p.addr, err)
	}
	return nil
}
