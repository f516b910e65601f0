package memdb

import (
	"encoding/json"
	"os"

	"linkshare/pkg/storage"
)

// LoadTestPosts reads a JSON array of posts, used as fixtures by tests of
// this and other packages.
func LoadTestPosts(path string) ([]storage.Post, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var posts []storage.Post
	if err := json.Unmarshal(b, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}
