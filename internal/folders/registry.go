// Package folders caches the folder tree of one test-management project.
package folders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
)

// PathSeparator joins folder names in a display path
const PathSeparator = " / "

// Source is the remote side of the registry
type Source interface {
	Folders(ctx context.Context, projectID int) ([]schema.Folder, error)
	CreateFolder(ctx context.Context, projectID int, name string, parentID *int) (schema.Folder, error)
}

// Registry holds the folder tree of the current project. It is replaced
// wholesale by Refresh and grows by one entry on Create.
type Registry struct {
	source Source

	mu        sync.RWMutex
	projectID int
	loaded    bool
	folders   []schema.Folder
	byID      map[int]int
}

// NewRegistry creates an empty registry
func NewRegistry(source Source) *Registry {
	return &Registry{source: source, byID: make(map[int]int)}
}

// Refresh reloads the tree of projectID. On error the previous tree is kept.
func (r *Registry) Refresh(ctx context.Context, projectID int) ([]schema.Folder, error) {
	if projectID <= 0 {
		return nil, client.Validationf("project id must be positive, got %d", projectID)
	}

	remote, err := r.source.Folders(ctx, projectID)
	if err != nil {
		return nil, err
	}

	tree, err := BuildTree(remote)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.projectID = projectID
	r.loaded = true
	r.folders = tree
	r.byID = index(tree)
	r.mu.Unlock()

	return cloneFolders(tree), nil
}

// Create adds a folder below parentID (nil for the root) and appends it to
// the cached tree
func (r *Registry) Create(ctx context.Context, projectID int, name string, parentID *int) (schema.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return schema.Folder{}, client.Validationf("folder name is required")
	}
	if projectID <= 0 {
		return schema.Folder{}, client.Validationf("project id must be positive, got %d", projectID)
	}
	if parentID != nil && *parentID <= 0 {
		parentID = nil
	}

	var parentPath string
	if parentID != nil {
		r.mu.RLock()
		parent, ok := r.lookup(projectID, *parentID)
		r.mu.RUnlock()
		if !ok {
			return schema.Folder{}, client.Validationf("parent folder %d does not exist in project %d", *parentID, projectID)
		}
		parentPath = parent.DisplayPath
	}

	created, err := r.source.CreateFolder(ctx, projectID, name, parentID)
	if err != nil {
		return schema.Folder{}, err
	}
	if created.Name == "" {
		created.Name = name
	}
	if created.ParentID == nil && parentID != nil {
		p := *parentID
		created.ParentID = &p
	}
	created.DisplayPath = created.Name
	if parentPath != "" {
		created.DisplayPath = parentPath + PathSeparator + created.Name
	}

	r.mu.Lock()
	if r.projectID != projectID {
		// The cache belongs to another project; start a partial one
		r.projectID = projectID
		r.loaded = false
		r.folders = nil
		r.byID = make(map[int]int)
	}
	r.byID[created.ID] = len(r.folders)
	r.folders = append(r.folders, created)
	r.mu.Unlock()

	return created, nil
}

// lookup expects r.mu to be held
func (r *Registry) lookup(projectID, id int) (schema.Folder, bool) {
	if r.projectID != projectID {
		return schema.Folder{}, false
	}
	i, ok := r.byID[id]
	if !ok {
		return schema.Folder{}, false
	}
	return r.folders[i], true
}

// Folders returns a copy of the cached tree in display-path order
func (r *Registry) Folders() []schema.Folder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneFolders(r.folders)
}

// Get returns the cached folder with id
func (r *Registry) Get(id int) (schema.Folder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.projectID, id)
}

// Contains reports whether folder id is cached for projectID
func (r *Registry) Contains(projectID, id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lookup(projectID, id)
	return ok
}

// Loaded reports whether a full tree of projectID has been fetched
func (r *Registry) Loaded(projectID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded && r.projectID == projectID
}

// ProjectID returns the project the cache belongs to
func (r *Registry) ProjectID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projectID
}

// BuildTree validates parent links and fills in display paths. Folders are
// returned sorted by display path. Unknown parents are treated as roots; a
// cycle is a validation error.
func BuildTree(in []schema.Folder) ([]schema.Folder, error) {
	byID := make(map[int]schema.Folder, len(in))
	for _, f := range in {
		if f.ID <= 0 {
			return nil, client.Validationf("folder %q has invalid id %d", f.Name, f.ID)
		}
		byID[f.ID] = f
	}

	out := make([]schema.Folder, 0, len(in))
	for _, f := range in {
		path, err := displayPath(f, byID)
		if err != nil {
			return nil, err
		}
		f.DisplayPath = path
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayPath) < strings.ToLower(out[j].DisplayPath)
	})
	return out, nil
}

func displayPath(f schema.Folder, byID map[int]schema.Folder) (string, error) {
	names := []string{f.Name}
	visited := map[int]bool{f.ID: true}
	cur := f
	for !cur.IsRoot() {
		parent, ok := byID[*cur.ParentID]
		if !ok {
			break
		}
		if visited[parent.ID] {
			return "", client.Validationf("folder %d has a cyclic parent chain", f.ID)
		}
		visited[parent.ID] = true
		names = append(names, parent.Name)
		cur = parent
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, PathSeparator), nil
}

func index(folders []schema.Folder) map[int]int {
	m := make(map[int]int, len(folders))
	for i, f := range folders {
		m[f.ID] = i
	}
	return m
}

func cloneFolders(in []schema.Folder) []schema.Folder {
	out := make([]schema.Folder, len(in))
	copy(out, in)
	return out
}

// String renders a folder for selection lists
func String(f schema.Folder) string {
	return fmt.Sprintf("%s (#%d)", f.DisplayPath, f.ID)
}
