package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"sync"

	"github.com/cosmosfle/fle/internal/fle/domain"
	"github.com/cosmosfle/fle/internal/fle/service"
)

// Processor is a policy-driven JSON-tree rewriter. It is constructed
// with a container handle and an encryption-aware client façade (the
// DatabaseMetadataSource + SettingsCache pair is injected rather than
// owned, breaking the cyclic collaboration that would otherwise exist
// between processor, client façade and settings cache).
type Processor struct {
	container string
	metadata  DatabaseMetadataSource
	settings  *SettingsCache
	codec     *service.ValueCodec

	mu           sync.Mutex
	policyLoaded bool
	policy       *domain.ClientEncryptionPolicy
}

// NewProcessor constructs a Processor for one container. settings must
// be scoped to the same container.
func NewProcessor(container string, metadata DatabaseMetadataSource, settings *SettingsCache) *Processor {
	return &Processor{
		container: container,
		metadata:  metadata,
		settings:  settings,
		codec:     service.NewValueCodec(),
	}
}

// Encrypt walks a JSON document and encrypts every path named by the
// container's policy. On success the input is consumed and, if it
// implements io.Closer, closed; the returned reader is a fresh handle
// positioned at the start of the encrypted output. On failure the
// input is left un-closed — it has already been fully read and is
// positioned at end-of-stream.
func (p *Processor) Encrypt(ctx context.Context, r io.Reader) (io.Reader, error) {
	return p.transform(ctx, r, p.encryptWalk)
}

// Decrypt walks a JSON document and decrypts every path named by the
// container's policy, symmetric to Encrypt.
func (p *Processor) Decrypt(ctx context.Context, r io.Reader) (io.Reader, error) {
	return p.transform(ctx, r, p.decryptWalk)
}

type walkFunc func(ctx context.Context, root *domain.Node, policy *domain.ClientEncryptionPolicy) error

func (p *Processor) transform(ctx context.Context, r io.Reader, walk walkFunc) (io.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	policy, err := p.ensurePolicy(ctx)
	if err != nil {
		return nil, err
	}

	if policy == nil {
		closeIfCloser(r)
		return bytes.NewReader(data), nil
	}

	root, err := service.DecodeTree(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if err := walk(ctx, root, policy); err != nil {
		return nil, err
	}

	out, err := service.EncodeTree(root)
	if err != nil {
		return nil, err
	}

	closeIfCloser(r)
	return bytes.NewReader(out), nil
}

func closeIfCloser(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}

// ensurePolicy lazily fetches and validates the container's policy,
// and bootstraps a settings-cache entry for every distinct key id it
// references before returning. A nil, nil return means the container
// has no policy — callers must treat encrypt/decrypt as identity
// transforms.
func (p *Processor) ensurePolicy(ctx context.Context) (*domain.ClientEncryptionPolicy, error) {
	p.mu.Lock()
	if p.policyLoaded {
		policy := p.policy
		p.mu.Unlock()
		return policy, nil
	}
	p.mu.Unlock()

	policy, err := p.metadata.GetClientEncryptionPolicy(ctx, p.container, false)
	if err != nil {
		return nil, err
	}

	if policy != nil {
		if err := policy.Validate(); err != nil {
			return nil, err
		}
		for _, keyID := range policy.KeyIDs() {
			if _, err := p.settings.EnsureEntry(ctx, keyID); err != nil {
				return nil, err
			}
		}
	}

	p.mu.Lock()
	p.policy = policy
	p.policyLoaded = true
	p.mu.Unlock()

	return policy, nil
}

func (p *Processor) encryptWalk(ctx context.Context, root *domain.Node, policy *domain.ClientEncryptionPolicy) error {
	for _, path := range policy.IncludedPaths {
		name := path.PropertyName()
		val := root.Get(name)
		if val == nil || val.IsNull() {
			continue
		}

		setting, err := p.settings.GetForProperty(ctx, name, path)
		if err != nil {
			return err
		}

		encrypted, err := p.encryptNode(val, setting)
		if err != nil {
			return err
		}
		root.Set(name, encrypted)
	}
	return nil
}

func (p *Processor) decryptWalk(ctx context.Context, root *domain.Node, policy *domain.ClientEncryptionPolicy) error {
	for _, path := range policy.IncludedPaths {
		name := path.PropertyName()
		val := root.Get(name)
		if val == nil || val.IsNull() {
			continue
		}

		setting, err := p.settings.GetForProperty(ctx, name, path)
		if err != nil {
			return err
		}

		decrypted, err := p.decryptNode(val, setting)
		if err != nil {
			return err
		}
		root.Set(name, decrypted)
	}
	return nil
}

// encryptNode dispatches on the property value's JSON type.
func (p *Processor) encryptNode(n *domain.Node, setting *domain.EncryptionSetting) (*domain.Node, error) {
	switch n.Kind {
	case domain.KindNull:
		return n, nil
	case domain.KindBool, domain.KindInt, domain.KindFloat, domain.KindString:
		return p.encryptScalar(n, setting)
	case domain.KindObject:
		for el := n.ObjectValue.Front(); el != nil; el = el.Next() {
			encrypted, err := p.encryptNode(el.Value, setting)
			if err != nil {
				return nil, err
			}
			n.ObjectValue.Set(el.Key, encrypted)
		}
		return n, nil
	case domain.KindArray:
		return p.encryptArray(n, setting)
	default:
		return nil, domain.UnsupportedValue
	}
}

func (p *Processor) encryptArray(n *domain.Node, setting *domain.EncryptionSetting) (*domain.Node, error) {
	if len(n.ArrayValue) == 0 {
		return n, nil
	}
	if err := checkHomogeneous(n.ArrayValue); err != nil {
		return nil, err
	}
	for i, item := range n.ArrayValue {
		encrypted, err := p.encryptNode(item, setting)
		if err != nil {
			return nil, err
		}
		n.ArrayValue[i] = encrypted
	}
	return n, nil
}

// decryptNode is symmetric to encryptNode. Any leaf that is not itself
// an Object, Array or Null is assumed to be an encrypted leaf —
// encryption always rewrites scalar leaves to KindString ciphertext,
// so the shape alone disambiguates container from leaf on the way
// back.
func (p *Processor) decryptNode(n *domain.Node, setting *domain.EncryptionSetting) (*domain.Node, error) {
	switch n.Kind {
	case domain.KindNull:
		return n, nil
	case domain.KindObject:
		for el := n.ObjectValue.Front(); el != nil; el = el.Next() {
			decrypted, err := p.decryptNode(el.Value, setting)
			if err != nil {
				return nil, err
			}
			n.ObjectValue.Set(el.Key, decrypted)
		}
		return n, nil
	case domain.KindArray:
		return p.decryptArray(n, setting)
	case domain.KindString:
		return p.decryptScalar(n, setting)
	default:
		return nil, domain.CryptoIntegrity
	}
}

func (p *Processor) decryptArray(n *domain.Node, setting *domain.EncryptionSetting) (*domain.Node, error) {
	if len(n.ArrayValue) == 0 {
		return n, nil
	}
	if err := checkHomogeneous(n.ArrayValue); err != nil {
		return nil, err
	}
	for i, item := range n.ArrayValue {
		decrypted, err := p.decryptNode(item, setting)
		if err != nil {
			return nil, err
		}
		n.ArrayValue[i] = decrypted
	}
	return n, nil
}

// checkHomogeneous rejects arrays mixing containers (object/array)
// with scalars or nulls as UnsupportedValue, rather than classifying
// the array element-by-element from the shape of its first item.
func checkHomogeneous(items []*domain.Node) error {
	firstIsContainer := isContainer(items[0])
	for _, item := range items[1:] {
		if isContainer(item) != firstIsContainer {
			return domain.UnsupportedValue
		}
	}
	return nil
}

func isContainer(n *domain.Node) bool {
	return n.Kind == domain.KindObject || n.Kind == domain.KindArray
}

func (p *Processor) encryptScalar(n *domain.Node, setting *domain.EncryptionSetting) (*domain.Node, error) {
	marker, raw, err := p.codec.Serialize(n)
	if err != nil {
		return nil, err
	}

	ciphertext, err := setting.Entry.Cipher.Encrypt(raw, setting.EncryptionType)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, 1+len(ciphertext))
	payload = append(payload, byte(marker))
	payload = append(payload, ciphertext...)

	return domain.NewString(base64.StdEncoding.EncodeToString(payload)), nil
}

func (p *Processor) decryptScalar(n *domain.Node, setting *domain.EncryptionSetting) (*domain.Node, error) {
	payload, err := base64.StdEncoding.DecodeString(n.StringValue)
	if err != nil || len(payload) < 1 {
		return nil, domain.CryptoIntegrity
	}

	marker := domain.TypeMarker(payload[0])
	if !marker.Valid() {
		return nil, domain.CryptoIntegrity
	}

	plaintext, err := setting.Entry.Cipher.Decrypt(payload[1:])
	if err != nil {
		return nil, err
	}

	return p.codec.Deserialize(marker, plaintext)
}
