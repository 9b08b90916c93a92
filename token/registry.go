// Package token provides the in-process IdentityRegistry backend: unique
// item tokens with tracked ownership and metadata references. Ids are never
// reused; a mint for an existing id fails.
package token

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Registry is an in-process implementation of core.IdentityRegistry.
type Registry struct {
	mu     sync.Mutex
	owners map[string]string
	meta   map[string]string

	// TransferHook, when set, runs before a transfer is applied and can
	// refuse it. Used to inject failures in tests.
	TransferHook func(from, to, id string) error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		owners: make(map[string]string),
		meta:   make(map[string]string),
	}
}

// Mint creates the token for a new item id, owned by owner.
func (r *Registry) Mint(ctx context.Context, owner, id, metadataRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if owner == "" || id == "" {
		return fmt.Errorf("mint requires owner and id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[id]; ok {
		return fmt.Errorf("token %s already minted", id)
	}
	r.owners[id] = owner
	r.meta[id] = metadataRef
	return nil
}

// Transfer re-points ownership of an existing token. The from account must
// be the current owner.
func (r *Registry) Transfer(ctx context.Context, from, to, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("transfer of token %s to empty account", id)
	}
	if hook := r.TransferHook; hook != nil {
		if err := hook(from, to, id); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[id]
	if !ok {
		return fmt.Errorf("token %s not minted", id)
	}
	if owner != from {
		return fmt.Errorf("token %s owned by %s, not %s", id, owner, from)
	}
	r.owners[id] = to
	return nil
}

// Burn destroys an existing token. The owner must be the current owner.
func (r *Registry) Burn(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.owners[id]
	if !ok {
		return fmt.Errorf("token %s not minted", id)
	}
	if cur != owner {
		return fmt.Errorf("token %s owned by %s, not %s", id, cur, owner)
	}
	delete(r.owners, id)
	delete(r.meta, id)
	return nil
}

// registrySnapshot is the CBOR shape of the registry's durable state. Tokens
// backing restored items must survive a restart or their auctions can never
// settle.
type registrySnapshot struct {
	Owners map[string]string `cbor:"owners"`
	Meta   map[string]string `cbor:"meta"`
}

// WriteSnapshot serializes token ownership and metadata to w.
func (r *Registry) WriteSnapshot(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := registrySnapshot{
		Owners: make(map[string]string, len(r.owners)),
		Meta:   make(map[string]string, len(r.meta)),
	}
	for id, owner := range r.owners {
		snap.Owners[id] = owner
	}
	for id, ref := range r.meta {
		snap.Meta[id] = ref
	}

	if err := cbor.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("encode token registry snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot replaces the registry's state with a previously written
// snapshot.
func (r *Registry) ReadSnapshot(rd io.Reader) error {
	var snap registrySnapshot
	if err := cbor.NewDecoder(rd).Decode(&snap); err != nil {
		return fmt.Errorf("decode token registry snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = make(map[string]string, len(snap.Owners))
	r.meta = make(map[string]string, len(snap.Meta))
	for id, owner := range snap.Owners {
		r.owners[id] = owner
	}
	for id, ref := range snap.Meta {
		r.meta[id] = ref
	}
	return nil
}

// Owner reports the current owner of a token.
func (r *Registry) Owner(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[id]
	return owner, ok
}

// MetadataRef reports the metadata reference recorded at mint time.
func (r *Registry) MetadataRef(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.meta[id]
	return ref, ok
}
