package manifest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) Fetch(_ context.Context, key string) (io.ReadCloser, int64, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, -1, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *fakeStore) Check(context.Context) error { return nil }

func TestLoad(t *testing.T) {
	good := `{
		"version": "2024.08.1",
		"images": [
			{"name": "boot", "object": "boot.img.gz", "size": 1024, "sha256": "ab"},
			{"name": "system", "object": "system.img.gz", "size": 4096, "sha256": "cd"}
		]
	}`

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid manifest", good, false},
		{"empty image list", `{"version": "1", "images": []}`, true},
		{"missing images key", `{"version": "1"}`, true},
		{"garbage", `not json`, true},
		{"image without name", `{"images": [{"object": "x.gz"}]}`, true},
		{"image without object", `{"images": [{"name": "boot"}]}`, true},
		{"duplicate image name", `{"images": [{"name": "boot", "object": "a"}, {"name": "boot", "object": "b"}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeStore{objects: map[string][]byte{"manifest.json": []byte(tt.payload)}}
			m, err := Load(context.Background(), st, "manifest.json")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(m.Images) != 2 || m.Images[0].Name != "boot" || m.Images[1].Name != "system" {
				t.Errorf("unexpected manifest order: %+v", m.Images)
			}
		})
	}
}

func TestLoadMissingObject(t *testing.T) {
	st := &fakeStore{objects: map[string][]byte{}}
	if _, err := Load(context.Background(), st, "manifest.json"); err == nil {
		t.Fatal("expected error for missing manifest object")
	}
}
