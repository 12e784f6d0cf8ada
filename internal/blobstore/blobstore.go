// Package blobstore stores recorded answers and hands out time limited
// read links for them.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	ErrOutsidePrefix = errors.New("blobstore: reference outside authorized prefix")
	ErrTokenExpired  = errors.New("blobstore: read token expired")
	ErrNoObject      = errors.New("blobstore: object not found")
)

// Token authorizes reads of every object under Prefix until ExpiresAt.
type Token struct {
	Prefix    string    `json:"prefix"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t Token) allows(ref string, now time.Time) error {
	if !strings.HasPrefix(ref, t.Prefix) {
		return ErrOutsidePrefix
	}
	if !now.Before(t.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

type Store interface {
	// PutObject stores data under key and returns the reference to persist.
	PutObject(ctx context.Context, data []byte, key, contentType string) (string, error)
	// GetObject reads back an object stored by PutObject.
	GetObject(ctx context.Context, ref string) ([]byte, error)
	AuthorizeRead(ctx context.Context, prefix string, ttl time.Duration) (Token, error)
	SignedURL(ctx context.Context, ref string, tok Token) (string, error)
}

const defaultAudioExt = "webm"

// SessionPrefix is the key prefix shared by every recording of one
// response session.
func SessionPrefix(ownerID, formID, sessionID int64) string {
	return fmt.Sprintf("%d/%d/responses/%d/", ownerID, formID, sessionID)
}

// AudioKey builds {owner}/{form}/responses/{session}/{question}.{ext}. The
// extension comes from the uploaded file name, webm when it has none.
func AudioKey(ownerID, formID, sessionID int64, questionNumber int, audioName string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(audioName)), ".")
	if ext == "" {
		ext = defaultAudioExt
	}
	return fmt.Sprintf("%s%d.%s", SessionPrefix(ownerID, formID, sessionID), questionNumber, ext)
}
