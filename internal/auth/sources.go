package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"

	"github.com/autopeer-io/cartrack/pkg/log"
)

// Anonymous never holds a credential; the agent stays signed out.
type Anonymous struct{}

func (Anonymous) FetchToken(context.Context) (*Token, error) { return nil, nil }

// FileSource reads an identity token written by an external sign-in helper.
// A missing or empty file means signed out.
type FileSource struct {
	Path string
}

func (s *FileSource) FetchToken(context.Context) (*Token, error) {
	raw, err := readTrimmed(s.Path)
	if err != nil || raw == "" {
		return nil, err
	}
	return NewToken(raw), nil
}

// RefreshSource exchanges a stored OAuth2 refresh token for a fresh identity
// token on every fetch. The refresh token lives in RefreshTokenFile; a
// rotated refresh token is written back.
type RefreshSource struct {
	Config           *oauth2.Config
	RefreshTokenFile string
}

func (s *RefreshSource) FetchToken(ctx context.Context) (*Token, error) {
	refresh, err := readTrimmed(s.RefreshTokenFile)
	if err != nil || refresh == "" {
		return nil, err
	}

	tok, err := s.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh identity token: %w", err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != refresh {
		if err := writeAtomic(s.RefreshTokenFile, tok.RefreshToken); err != nil {
			log.Warn("Failed to persist rotated refresh token", "path", s.RefreshTokenFile, "error", err)
		}
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		idToken = tok.AccessToken
	}
	if idToken == "" {
		return nil, errors.New("token endpoint returned neither id_token nor access_token")
	}

	t := NewToken(idToken)
	if t.Expiry.IsZero() {
		t.Expiry = tok.Expiry
	}
	return t, nil
}

func readTrimmed(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".token-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content + "\n"); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
