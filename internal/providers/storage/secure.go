package storage

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

var secureMagic = []byte("TNX1")

const (
	saltSize   = 16
	scryptN    = 1 << 15
	scryptR    = 8
	scryptP    = 1
	derivedLen = chacha20poly1305.KeySize
)

var errInvalidDocument = errors.New("storage: invalid document")

// Secure is the durable store: a single document file, zstd-compressed and
// sealed with XChaCha20-Poly1305 under a key derived from the configured
// passphrase. The file is re-read on every operation so edits made by other
// processes are observed. An unreadable file is reset to the defaults.
type Secure struct {
	path       string
	passphrase []byte
	defaults   map[string][]byte
	logger     *zap.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu          sync.Mutex
	salt        []byte
	key         []byte
	lastWritten [sha256.Size]byte
	closed      bool

	watchMu  sync.Mutex
	watchers []*fsnotify.Watcher
	wg       sync.WaitGroup
}

type document map[string]json.RawMessage

// NewSecure opens the durable store at path, applying defaults for keys the
// file does not have yet.
func NewSecure(path string, opts Options) (*Secure, error) {
	if path == "" {
		return nil, ErrInvalidInput
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}

	s := &Secure{
		path:       path,
		passphrase: []byte(opts.EncryptionKey),
		defaults:   opts.Defaults,
		logger:     opts.logger(),
		enc:        enc,
		dec:        dec,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	changed := false
	for k, v := range s.defaults {
		if _, ok := doc[k]; !ok {
			doc[k] = json.RawMessage(v)
			changed = true
		}
	}
	if changed {
		if err := s.writeLocked(doc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Secure) Name() string { return "secure" }

// Path returns the backing file.
func (s *Secure) Path() string { return s.path }

func (s *Secure) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (s *Secure) Set(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: value for %q is not JSON", ErrInvalidInput, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	doc, err := s.readLocked()
	if err != nil {
		return err
	}
	doc[key] = json.RawMessage(value)
	return s.writeLocked(doc)
}

func (s *Secure) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	doc, err := s.readLocked()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return s.writeLocked(doc)
}

// Clear resets the store to its defaults.
func (s *Secure) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.writeLocked(s.defaultDocument())
}

func (s *Secure) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.watchMu.Lock()
	for _, w := range s.watchers {
		_ = w.Close()
	}
	s.watchers = nil
	s.watchMu.Unlock()
	s.wg.Wait()

	s.enc.Close()
	s.dec.Close()
	return nil
}

// Watch reports writes to the backing file made by anyone but this
// instance until ctx is done or the store is closed.
func (s *Secure) Watch(ctx context.Context, fn func(Change)) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	s.watchMu.Lock()
	s.watchers = append(s.watchers, watcher)
	s.watchMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchLoop(ctx, watcher, fn)
	}()
	return nil
}

func (s *Secure) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, fn func(Change)) {
	defer watcher.Close()
	base := filepath.Base(s.path)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !s.externalChange() {
				continue
			}
			fn(Change{Backend: s.Name(), Path: s.path, At: time.Now()})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Debug("durable store watcher error", zap.Error(err))
		}
	}
}

func (s *Secure) externalChange() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sum != s.lastWritten
}

func (s *Secure) defaultDocument() document {
	doc := make(document, len(s.defaults))
	for k, v := range s.defaults {
		doc[k] = json.RawMessage(v)
	}
	return doc
}

// readLocked loads the document. A missing file is empty; an undecodable
// one is replaced by the defaults.
func (s *Secure) readLocked() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, err
	}

	doc, err := s.decode(data)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, errInvalidDocument) {
		return nil, err
	}

	s.logger.Warn("Durable store unreadable, resetting to defaults",
		zap.String("path", s.path),
		zap.Error(err),
	)
	doc = s.defaultDocument()
	if err := s.writeLocked(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Secure) writeLocked(doc document) error {
	plain, err := sonic.ConfigStd.Marshal(doc)
	if err != nil {
		return err
	}
	data, err := s.encode(plain)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		return err
	}
	s.lastWritten = sha256.Sum256(data)
	return nil
}

func (s *Secure) encode(plain []byte) ([]byte, error) {
	if len(s.passphrase) == 0 {
		return plain, nil
	}
	if s.salt == nil {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		s.salt = salt
		s.key = nil
	}
	aead, err := s.aead(s.salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	compressed := s.enc.EncodeAll(plain, nil)

	out := make([]byte, 0, len(secureMagic)+saltSize+len(nonce)+len(compressed)+aead.Overhead())
	out = append(out, secureMagic...)
	out = append(out, s.salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, compressed, secureMagic)
	return out, nil
}

func (s *Secure) decode(data []byte) (document, error) {
	var plain []byte
	switch {
	case len(data) == 0:
		return document{}, nil
	case bytes.HasPrefix(data, secureMagic):
		if len(s.passphrase) == 0 {
			return nil, fmt.Errorf("%w: encrypted file but no key configured", errInvalidDocument)
		}
		rest := data[len(secureMagic):]
		if len(rest) < saltSize+chacha20poly1305.NonceSizeX {
			return nil, fmt.Errorf("%w: truncated header", errInvalidDocument)
		}
		salt := rest[:saltSize]
		aead, err := s.aead(salt)
		if err != nil {
			return nil, err
		}
		nonce := rest[saltSize : saltSize+aead.NonceSize()]
		compressed, err := aead.Open(nil, nonce, rest[saltSize+aead.NonceSize():], secureMagic)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidDocument, err)
		}
		plain, err = s.dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidDocument, err)
		}
	default:
		plain = data
	}

	doc := document{}
	if err := sonic.ConfigStd.Unmarshal(plain, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidDocument, err)
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

// aead returns the cipher for salt, deriving the key only when the salt
// differs from the cached one.
func (s *Secure) aead(salt []byte) (cipher.AEAD, error) {
	if s.key == nil || !bytes.Equal(s.salt, salt) {
		key, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, derivedLen)
		if err != nil {
			return nil, err
		}
		s.salt = append([]byte(nil), salt...)
		s.key = key
	}
	return chacha20poly1305.NewX(s.key)
}
