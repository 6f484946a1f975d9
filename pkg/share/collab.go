package share

import (
	"context"
)

// Directory is the user/group lookup collaborator. Lookups are best
// effort on the read path; DisplayName falls back to the raw identifier.
type Directory interface {
	UserExists(ctx context.Context, uid string) bool
	GroupExists(ctx context.Context, gid string) bool
	UserGroups(ctx context.Context, uid string) ([]string, error)
	GroupMembers(ctx context.Context, gid string) ([]string, error)
	DisplayName(ctx context.Context, uid string) string
}

// MountResolver maps file-cache sources to paths and answers storage
// reachability questions for a given viewer.
type MountResolver interface {
	// FilePath returns the owner-relative path of fileSource.
	FilePath(ctx context.Context, owner string, fileSource int64) (string, error)

	// FileSource resolves an owner-relative path to a file-cache id.
	FileSource(ctx context.Context, owner, path string) (int64, error)

	// Reachable reports whether the storage backing fileSource resolves
	// for viewer. Home storage must live under a "files/" prefix;
	// external and object storage is always reachable.
	Reachable(ctx context.Context, viewer string, fileSource int64) bool

	// ContainsSharedMount reports whether any descendant mount under the
	// owner-relative path is storage that was shared into the owner.
	// Sharing such a folder onward would re-share somebody else's data
	// as if it were owned.
	ContainsSharedMount(ctx context.Context, owner, path string) (bool, error)
}
