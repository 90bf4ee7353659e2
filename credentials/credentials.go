// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package credentials stores the smart plug account in the OS secret store
// (Keychain on macOS, Credential Manager on Windows, Secret Service on
// Linux) so the password never touches the configuration file.
//
// The username lives under a fixed entry name and the password lives under
// the username itself, so renaming the account migrates the stored password
// to the new entry.
package credentials

import (
	"errors"

	"github.com/zalando/go-keyring"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
)

const (
	service     = "SmartPowerManager"
	usernameKey = "PlugCredentials"
)

// Store reads and writes the smart plug account in the OS secret store.
// The zero value is ready to use.
type Store struct{}

// NewStore returns a Store backed by the OS secret store.
func NewStore() *Store {
	return &Store{}
}

// Username returns the stored account username. It fails with a
// CredentialsError wrapping ErrNoUsername when none is stored.
func (s *Store) Username() (string, error) {
	username, err := keyring.Get(service, usernameKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", apperrors.NewCredentialsError("get username", apperrors.ErrNoUsername)
	}
	if err != nil {
		return "", apperrors.NewCredentialsError("get username", err)
	}
	return username, nil
}

// SetUsername stores or updates the account username. When a password is
// already stored under the previous username, it is moved to the new one.
func (s *Store) SetUsername(value string) error {
	old, err := keyring.Get(service, usernameKey)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		old = ""
	case err != nil:
		return apperrors.NewCredentialsError("set username", err)
	}

	password := ""
	hasPassword := false
	if old != "" && old != value {
		password, err = keyring.Get(service, old)
		switch {
		case err == nil:
			hasPassword = true
		case !errors.Is(err, keyring.ErrNotFound):
			return apperrors.NewCredentialsError("set username", err)
		}
	}

	if err := keyring.Set(service, usernameKey, value); err != nil {
		return apperrors.NewCredentialsError("set username", err)
	}
	if hasPassword {
		if err := keyring.Delete(service, old); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return apperrors.NewCredentialsError("set username", err)
		}
		if err := keyring.Set(service, value, password); err != nil {
			return apperrors.NewCredentialsError("set username", err)
		}
	}
	return nil
}

// DeleteUsername removes the stored username and any password associated
// with it. It fails with ErrNoUsername when none is stored.
func (s *Store) DeleteUsername() error {
	if err := s.DeletePassword(); err != nil && !errors.Is(err, apperrors.ErrNoPassword) {
		return err
	}
	err := keyring.Delete(service, usernameKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return apperrors.NewCredentialsError("delete username", apperrors.ErrNoUsername)
	}
	if err != nil {
		return apperrors.NewCredentialsError("delete username", err)
	}
	return nil
}

// Password returns the password stored for the current username.
func (s *Store) Password() (string, error) {
	username, err := s.Username()
	if err != nil {
		return "", err
	}
	password, err := keyring.Get(service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", apperrors.NewCredentialsError("get password", apperrors.ErrNoPassword)
	}
	if err != nil {
		return "", apperrors.NewCredentialsError("get password", err)
	}
	return password, nil
}

// SetPassword stores or updates the account password. A username must be
// stored first, since the password entry is keyed by it.
func (s *Store) SetPassword(value string) error {
	username, err := s.Username()
	if err != nil {
		if errors.Is(err, apperrors.ErrNoUsername) {
			return apperrors.NewCredentialsError("set password", apperrors.ErrPasswordBeforeUsername)
		}
		return err
	}
	if err := keyring.Set(service, username, value); err != nil {
		return apperrors.NewCredentialsError("set password", err)
	}
	return nil
}

// DeletePassword removes the stored password. It fails with ErrNoPassword
// when none is stored.
func (s *Store) DeletePassword() error {
	username, err := s.Username()
	if err != nil {
		if errors.Is(err, apperrors.ErrNoUsername) {
			return apperrors.NewCredentialsError("delete password", apperrors.ErrNoPassword)
		}
		return err
	}
	err = keyring.Delete(service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return apperrors.NewCredentialsError("delete password", apperrors.ErrNoPassword)
	}
	if err != nil {
		return apperrors.NewCredentialsError("delete password", err)
	}
	return nil
}

// Clear removes both the username and the password, ignoring entries that
// are already absent.
func (s *Store) Clear() error {
	if err := s.DeleteUsername(); err != nil && !errors.Is(err, apperrors.ErrNoUsername) {
		return err
	}
	return nil
}
