package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
)

// SchemaVersion is bumped whenever the payload layout changes. Stores written
// with another version are rejected as StoreErrors.
const SchemaVersion = 1

// Payload is the decoded content of one store.
type Payload struct {
	Schema       int                   `json:"schema"`
	Kind         schema.DocKind        `json:"kind"`
	Key          string                `json:"key"`
	Digest       string                `json:"digest"`
	Instructions []*schema.Instruction `json:"instructions,omitempty"`
	Registers    []*schema.Register    `json:"registers,omitempty"`
	Directives   []*schema.Directive   `json:"directives,omitempty"`
}

// body is the digested part of a payload.
type body struct {
	Instructions []*schema.Instruction `json:"instructions,omitempty"`
	Registers    []*schema.Register    `json:"registers,omitempty"`
	Directives   []*schema.Directive   `json:"directives,omitempty"`
}

// NewPayload wraps records for key. Records of the wrong kind are ignored.
func NewPayload(key schema.StoreKey, recs schema.Records) *Payload {
	p := &Payload{Schema: SchemaVersion, Kind: key.Kind, Key: key.Key}
	switch key.Kind {
	case schema.KindInstruction:
		p.Instructions = recs.Instructions
	case schema.KindRegister:
		p.Registers = recs.Registers
	case schema.KindDirective:
		p.Directives = recs.Directives
	}
	return p
}

// StoreKey returns the key the payload was written for.
func (p *Payload) StoreKey() schema.StoreKey {
	return schema.StoreKey{Kind: p.Kind, Key: p.Key}
}

// Records returns the payload's records.
func (p *Payload) Records() schema.Records {
	return schema.Records{Instructions: p.Instructions, Registers: p.Registers, Directives: p.Directives}
}

// Len returns the number of records in the payload.
func (p *Payload) Len() int {
	return len(p.Instructions) + len(p.Registers) + len(p.Directives)
}

func (p *Payload) computeDigest() (string, error) {
	data, err := json.Marshal(body{Instructions: p.Instructions, Registers: p.Registers, Directives: p.Directives})
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// A single-threaded encoder at a fixed level produces identical bytes for
// identical input. EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithZeroFrames(true))
	})
	decoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
)

// Encode stamps the payload's schema version and digest and returns the
// compressed store bytes.
func Encode(p *Payload) ([]byte, error) {
	if err := p.StoreKey().Validate(); err != nil {
		return nil, err
	}
	p.Schema = SchemaVersion
	digest, err := p.computeDigest()
	if err != nil {
		return nil, fmt.Errorf("failed to digest payload: %w", err)
	}
	p.Digest = digest

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	enc, err := encoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// Decode decompresses and validates store bytes. When want is non-zero the
// payload must have been written for that key.
func Decode(data []byte, want schema.StoreKey) (*Payload, error) {
	name := want.String()
	dec, err := decoder()
	if err != nil {
		return nil, asmerrors.NewStoreError(name, "zstd decoder unavailable", err)
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, asmerrors.NewStoreError(name, "not a compressed store", err)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, asmerrors.NewStoreError(name, "malformed payload", err)
	}
	if p.Schema != SchemaVersion {
		return nil, asmerrors.NewStoreError(name,
			fmt.Sprintf("schema version %d, want %d", p.Schema, SchemaVersion), nil)
	}
	if want != (schema.StoreKey{}) && p.StoreKey() != want {
		return nil, asmerrors.NewStoreError(name,
			fmt.Sprintf("payload was written for %s", p.StoreKey()), nil)
	}
	if err := p.StoreKey().Validate(); err != nil {
		return nil, asmerrors.NewStoreError(name, "invalid key", err)
	}
	if err := p.checkKind(); err != nil {
		return nil, asmerrors.NewStoreError(name, err.Error(), nil)
	}

	digest, err := p.computeDigest()
	if err != nil {
		return nil, asmerrors.NewStoreError(name, "failed to digest payload", err)
	}
	if digest != p.Digest {
		return nil, asmerrors.NewStoreError(name, "digest mismatch", nil)
	}
	return &p, nil
}

func (p *Payload) checkKind() error {
	switch p.Kind {
	case schema.KindInstruction:
		if len(p.Registers) > 0 || len(p.Directives) > 0 {
			return fmt.Errorf("instruction store carries foreign records")
		}
	case schema.KindRegister:
		if len(p.Instructions) > 0 || len(p.Directives) > 0 {
			return fmt.Errorf("register store carries foreign records")
		}
		for _, r := range p.Registers {
			if string(r.Arch) != p.Key {
				return fmt.Errorf("register %s belongs to %s", r.Name, r.Arch)
			}
		}
	case schema.KindDirective:
		if len(p.Instructions) > 0 || len(p.Registers) > 0 {
			return fmt.Errorf("directive store carries foreign records")
		}
	}
	return nil
}
