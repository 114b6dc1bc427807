package bindings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/cryptox"
	"github.com/dmitrijs2005/typerank/internal/filex"
)

// fileDoc is the persisted layout: a forward index keyed by username and a
// reverse index keyed by credential digest. The whole document is rewritten
// on every mutation.
type fileDoc struct {
	Users  map[string]string `json:"users"`
	Hashes map[string]string `json:"hashes"`
}

// FileRepository keeps the bindings in one JSON document. A mutex
// serializes every read-modify-write cycle, so concurrent handlers cannot
// lose each other's updates; the rewrite itself is temp-file + rename.
type FileRepository struct {
	mu   sync.Mutex
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) load() (*fileDoc, error) {
	doc := &fileDoc{Users: map[string]string{}, Hashes: map[string]string{}}

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			// first use, empty structure
			return doc, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	if err := json.Unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	if doc.Users == nil {
		doc.Users = map[string]string{}
	}
	if doc.Hashes == nil {
		doc.Hashes = map[string]string{}
	}
	return doc, nil
}

func (r *FileRepository) save(doc *fileDoc) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bindings: %w", err)
	}
	if err := filex.WriteFileAtomic(r.path, b, 0o660); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	return nil
}

func (r *FileRepository) Upsert(ctx context.Context, username, credential string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}

	// Rebinding to a new credential retracts the stale reverse entry so it
	// never lingers past this call.
	if old, ok := doc.Users[username]; ok && old != credential {
		delete(doc.Hashes, cryptox.CredentialDigest(old))
	}

	// If the credential is currently bound to a different username, that
	// forward entry goes too; a digest resolves to exactly one username.
	digest := cryptox.CredentialDigest(credential)
	if owner, ok := doc.Hashes[digest]; ok && owner != username {
		delete(doc.Users, owner)
	}

	doc.Users[username] = credential
	doc.Hashes[digest] = username

	return r.save(doc)
}

func (r *FileRepository) GetCredential(ctx context.Context, username string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return "", err
	}

	credential, ok := doc.Users[username]
	if !ok {
		return "", common.ErrNotFound
	}
	return credential, nil
}

func (r *FileRepository) FindUsernameByDigest(ctx context.Context, digest string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return "", err
	}

	username, ok := doc.Hashes[digest]
	if !ok {
		return "", common.ErrNotFound
	}
	return username, nil
}

func (r *FileRepository) Delete(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}

	credential, ok := doc.Users[username]
	if !ok {
		return common.ErrNotFound
	}

	delete(doc.Users, username)

	// Guard: only remove the reverse entry if it still points at this
	// username. It may have been rebound since.
	digest := cryptox.CredentialDigest(credential)
	if doc.Hashes[digest] == username {
		delete(doc.Hashes, digest)
	}

	return r.save(doc)
}

func (r *FileRepository) List(ctx context.Context) ([]Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	list := make([]Binding, 0, len(doc.Users))
	for username, credential := range doc.Users {
		list = append(list, Binding{
			Username:   username,
			Credential: credential,
			Digest:     cryptox.CredentialDigest(credential),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })

	return list, nil
}
