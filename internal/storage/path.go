package storage

import (
	"path/filepath"
)

// Two levels of two-character shard directories keep any single
// directory from accumulating an unbounded number of files.
const (
	shardLevels = 2
	shardWidth  = 2
)

// ComputePath generates the storage path for a content hash.
//
// Example:
//
//	hash: "abcdef1234..."
//	basePath: "/data/uploads"
//	result: "/data/uploads/ab/cd/abcdef1234..."
func ComputePath(basePath, contentHash string) string {
	if len(contentHash) < shardLevels*shardWidth {
		return filepath.Join(basePath, contentHash)
	}

	components := make([]string, 0, shardLevels+2)
	components = append(components, basePath)

	offset := 0
	for i := 0; i < shardLevels; i++ {
		components = append(components, contentHash[offset:offset+shardWidth])
		offset += shardWidth
	}
	components = append(components, contentHash)

	return filepath.Join(components...)
}

// ShardDir returns the directory path for a hash without the filename.
func ShardDir(basePath, contentHash string) string {
	return filepath.Dir(ComputePath(basePath, contentHash))
}
