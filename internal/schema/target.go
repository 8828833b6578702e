package schema

// SyncTarget is the destination of a sync operation
type SyncTarget struct {
	ProjectID int `json:"project_id" validate:"gt=0"`
	FolderID  int `json:"folder_id" validate:"required,gt=0"`
}

// Folder is one node of the test-management folder tree
type Folder struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ParentID    *int   `json:"parent_id,omitempty"`
	DisplayPath string `json:"display_path"`
}

// IsRoot reports whether the folder has no parent
func (f Folder) IsRoot() bool {
	return f.ParentID == nil || *f.ParentID == 0
}
